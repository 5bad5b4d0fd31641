// Package audio turns downloaded media into the mono 16 kHz PCM WAV the
// speech model expects, and inspects WAV files for the silence gate.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fmueller/semisizer/internal/config"
	"go.uber.org/zap"
)

const TargetExt = ".wav"

// ConversionError carries ffmpeg's diagnostics verbatim so they can be shown
// to the user.
type ConversionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ConversionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Stderr == "" {
		return fmt.Sprintf("ffmpeg conversion failed (exit %d): %v", e.ExitCode, e.Err)
	}
	return fmt.Sprintf("ffmpeg conversion failed (exit %d):\n%s", e.ExitCode, e.Stderr)
}

func (e *ConversionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

type Normalizer struct {
	ffmpegPath string
	sampleRate int
	channels   int
	runner     Runner
	logger     *zap.Logger
}

func NewNormalizer(cfg config.AudioConfig, runner Runner, logger *zap.Logger) *Normalizer {
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &Normalizer{
		ffmpegPath: cfg.FFmpegPath,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		runner:     runner,
		logger:     logger,
	}
	if n.ffmpegPath == "" {
		n.ffmpegPath = "ffmpeg"
	}
	if n.sampleRate <= 0 {
		n.sampleRate = config.DefaultSampleRate
	}
	if n.channels <= 0 {
		n.channels = config.DefaultChannels
	}
	return n
}

// NeedsConversion is decided by extension alone; a .wav input is handed to
// the engine as is.
func NeedsConversion(path string) bool {
	return !strings.EqualFold(filepath.Ext(path), TargetExt)
}

// Normalize converts inputPath into outputDir and returns the new path, or
// returns inputPath untouched when it already is a WAV file.
func (n *Normalizer) Normalize(ctx context.Context, inputPath, outputDir string) (string, error) {
	if strings.TrimSpace(inputPath) == "" {
		return "", errors.New("input path is required")
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	if !NeedsConversion(inputPath) {
		n.logger.Debug("audio already in target format; skipping conversion", zap.String("path", inputPath))
		return inputPath, nil
	}

	if outputDir == "" {
		outputDir = filepath.Dir(inputPath)
	}
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, "converted-"+base+TargetExt)

	args := n.Args(inputPath, outputPath)
	n.logger.Debug("converting audio", zap.String("ffmpeg", n.ffmpegPath), zap.Strings("args", args))

	result, err := n.runner.Run(ctx, n.ffmpegPath, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &ConversionError{ExitCode: result.ExitCode, Stderr: strings.TrimSpace(result.Stderr), Err: err}
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("ffmpeg reported success but produced no output: %w", err)
	}

	return outputPath, nil
}

// Args is the fixed ffmpeg argument shape: input, forced channel count,
// forced sample rate, output, overwrite.
func (n *Normalizer) Args(inputPath, outputPath string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", inputPath,
		"-ac", strconv.Itoa(n.channels),
		"-ar", strconv.Itoa(n.sampleRate),
		outputPath,
		"-y",
	}
}
