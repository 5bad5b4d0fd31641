// Package media retrieves the best available audio stream of a video URL
// into a local file.
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/fmueller/semisizer/internal/config"
	"go.uber.org/zap"
)

var (
	ErrNoBackendAvailable = errors.New("no fetch backend available")
	ErrEmptyURL           = errors.New("video URL is required")
	// ErrInvalidURL is returned when every backend that tried the URL
	// rejected it as malformed or unsupported.
	ErrInvalidURL = errors.New("video URL is not supported")
)

// rejectedURLError marks a backend failure caused by the URL itself rather
// than by the network or the tool.
type rejectedURLError struct {
	err error
}

func (e *rejectedURLError) Error() string { return e.err.Error() }

func (e *rejectedURLError) Unwrap() error { return e.err }

func rejectURL(err error) error {
	return &rejectedURLError{err: err}
}

// Request describes where one run wants its audio artifact. The backend
// picks the extension; the file is always named BaseName.<ext> inside Dir.
type Request struct {
	URL      string
	Dir      string
	BaseName string
}

// Artifact is the audio file a backend actually produced.
type Artifact struct {
	Path    string
	Backend string
}

type Backend interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context, req Request) (string, error)
}

func DefaultBackends(cfg config.FetchConfig, logger *zap.Logger) []Backend {
	return []Backend{
		newYtDlpBackend(cfg.YtDlpPath, cfg.Format, logger),
		newNativeBackend(logger),
	}
}

type Fetcher struct {
	backends  []Backend
	preferred string
	logger    *zap.Logger
}

func NewFetcher(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		backends:  DefaultBackends(cfg, logger),
		preferred: cfg.Backend,
		logger:    logger,
	}
}

// NewFetcherWithBackends is used by tests and callers that bring their own
// backend list.
func NewFetcherWithBackends(backends []Backend, preferred string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{backends: backends, preferred: preferred, logger: logger}
}

func (f *Fetcher) Backends() []Backend {
	return f.backends
}

// Fetch downloads the audio of url into dir. The preferred backend is tried
// first, the remaining available ones act as fallbacks.
func (f *Fetcher) Fetch(ctx context.Context, url, dir, baseName string) (Artifact, error) {
	if strings.TrimSpace(url) == "" {
		return Artifact{}, ErrEmptyURL
	}
	if strings.TrimSpace(dir) == "" {
		return Artifact{}, errors.New("output directory is required")
	}
	if baseName == "" {
		baseName = "audio"
	}

	req := Request{URL: strings.TrimSpace(url), Dir: dir, BaseName: baseName}
	return fetchWithFallback(ctx, f.backends, f.preferred, req, f.logger)
}

// SelectBackend returns the backend Fetch will try first: the preferred one
// when it is available, otherwise the first available fallback.
func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	ordered, err := orderBackends(backends, preferred)
	if err != nil {
		return nil, err
	}
	for _, backend := range ordered {
		if backend.Available() {
			return backend, nil
		}
	}
	return nil, ErrNoBackendAvailable
}

func fetchWithFallback(ctx context.Context, backends []Backend, preferred string, req Request, logger *zap.Logger) (Artifact, error) {
	orderedBackends, err := orderBackends(backends, preferred)
	if err != nil {
		return Artifact{}, err
	}

	var errs []error
	attempted, rejected := 0, 0
	for _, backend := range orderedBackends {
		if !backend.Available() {
			errs = append(errs, fmt.Errorf("%s: backend is not available", backend.Name()))
			continue
		}

		logger.Debug("fetching audio", zap.String("backend", backend.Name()), zap.String("url", req.URL))
		attempted++
		path, err := backend.Fetch(ctx, req)
		if err == nil {
			return Artifact{Path: path, Backend: backend.Name()}, nil
		}
		var rejectedErr *rejectedURLError
		if errors.As(err, &rejectedErr) {
			rejected++
		}

		if cleanupErr := removePartialDownloads(req); cleanupErr != nil {
			errs = append(errs, fmt.Errorf("%s: cleanup partial download: %w", backend.Name(), cleanupErr))
		}

		err = fmt.Errorf("%s: %w", backend.Name(), err)
		errs = append(errs, err)
		logger.Warn("fetch backend failed", zap.String("backend", backend.Name()), zap.Error(err))

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Artifact{}, err
		}
	}

	if len(errs) == 0 {
		return Artifact{}, ErrNoBackendAvailable
	}

	if attempted > 0 && rejected == attempted {
		return Artifact{}, fmt.Errorf("%w: %w", ErrInvalidURL, errors.Join(errs...))
	}
	return Artifact{}, fmt.Errorf("fetch audio with available backends: %w", errors.Join(errs...))
}

func orderBackends(backends []Backend, preferred string) ([]Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred == "" || preferred == "auto" {
		return backends, nil
	}

	preferredIndex := -1
	for i, backend := range backends {
		if backend.Name() == preferred {
			preferredIndex = i
			break
		}
	}
	if preferredIndex == -1 {
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	ordered := make([]Backend, 0, len(backends))
	ordered = append(ordered, backends[preferredIndex])
	for i, backend := range backends {
		if i != preferredIndex {
			ordered = append(ordered, backend)
		}
	}
	return ordered, nil
}

// removePartialDownloads deletes whatever BaseName.* a failed backend left
// behind, so the next backend starts clean.
func removePartialDownloads(req Request) error {
	matches, err := filepath.Glob(filepath.Join(req.Dir, req.BaseName+".*"))
	if err != nil {
		return err
	}

	var errs []error
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func commandAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
