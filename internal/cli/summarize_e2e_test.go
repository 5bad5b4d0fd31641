//go:build e2e

package cli

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	e2eWhisperPathEnv = "SEMISIZER_E2E_WHISPER_PATH"
	e2eModelDirEnv    = "SEMISIZER_E2E_MODEL_DIR"
	e2eVideoURLEnv    = "SEMISIZER_E2E_VIDEO_URL"
)

// TestSummarizeEndToEnd needs whisper-cli, ffmpeg, yt-dlp or network access
// for the native backend, and a running Ollama with the default model.
func TestSummarizeEndToEnd(t *testing.T) {
	whisperPath := strings.TrimSpace(os.Getenv(e2eWhisperPathEnv))
	videoURL := strings.TrimSpace(os.Getenv(e2eVideoURLEnv))
	if whisperPath == "" || videoURL == "" {
		t.Skip("set SEMISIZER_E2E_WHISPER_PATH and SEMISIZER_E2E_VIDEO_URL to run e2e test")
	}

	modelDir := strings.TrimSpace(os.Getenv(e2eModelDirEnv))
	if modelDir == "" {
		modelDir = t.TempDir()
	}
	scratch := t.TempDir()

	t.Setenv("SEMISIZER_WHISPER_PATH", whisperPath)

	_, setupStderr, err := runRootCommand(context.Background(), []string{
		"setup",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--no-progress",
	})
	require.NoErrorf(t, err, "setup command failed: %s", setupStderr)

	stdout, stderr, err := runRootCommand(context.Background(), []string{
		"summarize",
		"--model", "tiny",
		"--model-dir", modelDir,
		"--scratch-dir", scratch,
		"--no-progress",
		"--transcript",
		videoURL,
	})
	require.NoErrorf(t, err, "summarize command failed: %s", stderr)
	require.Contains(t, stdout, "Transcript:")
	require.Contains(t, stdout, "Processing Time:")

	entries, err := os.ReadDir(scratch)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch directory should be empty after the run")
}

func runRootCommand(ctx context.Context, args []string) (stdout string, stderr string, err error) {
	cmd := NewRootCmd()
	var outBuf, errBuf strings.Builder

	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetContext(ctx)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}
