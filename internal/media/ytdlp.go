package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lrstanley/go-ytdlp"
	"go.uber.org/zap"
)

type ytdlpBackend struct {
	executable string
	format     string
	logger     *zap.Logger
}

func newYtDlpBackend(executable, format string, logger *zap.Logger) Backend {
	if executable == "" {
		executable = "yt-dlp"
	}
	if format == "" {
		format = "bestaudio/best"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ytdlpBackend{executable: executable, format: format, logger: logger}
}

func (b *ytdlpBackend) Name() string {
	return "yt-dlp"
}

func (b *ytdlpBackend) Available() bool {
	return commandAvailable(b.executable)
}

func (b *ytdlpBackend) Fetch(ctx context.Context, req Request) (string, error) {
	template := filepath.Join(req.Dir, req.BaseName+".%(ext)s")

	cmd := ytdlp.New().
		SetExecutable(b.executable).
		Format(b.format).
		NoPlaylist().
		Quiet().
		NoWarnings().
		NoProgress().
		Output(template).
		Print("after_move:filepath")

	b.logger.Debug("running yt-dlp", zap.String("executable", b.executable), zap.String("format", b.format), zap.String("output", template))
	result, err := cmd.Run(ctx, req.URL)
	if err != nil {
		if result != nil {
			if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
				err = fmt.Errorf("yt-dlp failed: %w (%s)", err, stderr)
				if rejectsURL(stderr) {
					return "", rejectURL(err)
				}
				return "", err
			}
		}
		return "", fmt.Errorf("yt-dlp failed: %w", err)
	}

	return producedPath(result.Stdout, req)
}

// rejectsURL reports whether yt-dlp refused the URL before downloading.
func rejectsURL(stderr string) bool {
	return strings.Contains(stderr, "is not a valid URL") ||
		strings.Contains(stderr, "Unsupported URL") ||
		strings.Contains(stderr, "Incomplete YouTube ID")
}

// producedPath picks the file yt-dlp reported via --print after_move:filepath
// and makes sure it really landed inside the run directory.
func producedPath(stdout string, req Request) (string, error) {
	var reported string
	for _, line := range strings.Split(stdout, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			reported = trimmed
		}
	}

	if reported == "" {
		return "", errors.New("yt-dlp did not report an output file")
	}

	if !filepath.IsAbs(reported) {
		reported = filepath.Join(req.Dir, reported)
	}
	reported = filepath.Clean(reported)

	rel, err := filepath.Rel(filepath.Clean(req.Dir), reported)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("yt-dlp wrote %s outside of %s", reported, req.Dir)
	}

	info, err := os.Stat(reported)
	if err != nil {
		return "", fmt.Errorf("yt-dlp output missing: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("yt-dlp output %s is a directory", reported)
	}

	return reported, nil
}
