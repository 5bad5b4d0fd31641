package cli

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fmueller/semisizer/internal/clipboard"
	"github.com/fmueller/semisizer/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func doneResult() pipeline.Result {
	return pipeline.Result{
		RunID:      "abc",
		State:      pipeline.StageDone,
		Transcript: "the whole talk",
		Summary:    "A talk about Go.",
		Elapsed:    1500 * time.Millisecond,
		Events: []pipeline.Event{
			{Stage: pipeline.StageDownloading, Level: pipeline.LevelInfo, Message: "Downloading audio..."},
			{Stage: pipeline.StageSummarizing, Level: pipeline.LevelSuccess, Message: "Summary ready."},
		},
	}
}

func TestSummarizeCommandPrintsSummaryAndTime(t *testing.T) {
	t.Parallel()

	var calls []string
	app := newAppState()
	app.runFn = fixedRun(doneResult(), &calls)
	app.copyFn = func(context.Context, string) error {
		calls = append(calls, "copy")
		return nil
	}

	stdout, _, err := runAppCommand(t, app, []string{"summarize", "--no-progress", "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	require.Equal(t, "A talk about Go.\n\nProcessing Time: 1.50 seconds\n", stdout)
	require.Equal(t, []string{"run:https://youtu.be/dQw4w9WgXcQ"}, calls)
}

func TestSummarizeCommandCopiesAndShowsTranscript(t *testing.T) {
	t.Parallel()

	var calls []string
	app := newAppState()
	app.runFn = fixedRun(doneResult(), &calls)
	app.copyFn = func(_ context.Context, value string) error {
		calls = append(calls, "copy:"+value)
		return nil
	}

	stdout, _, err := runAppCommand(t, app, []string{"summarize", "--no-progress", "--copy", "--transcript", "https://youtu.be/dQw4w9WgXcQ"})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stdout, "Transcript:\nthe whole talk\n\nA talk about Go.\n"))
	require.Equal(t, []string{"run:https://youtu.be/dQw4w9WgXcQ", "copy:A talk about Go."}, calls)
}

func TestSummarizeCommandClipboardFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	var calls []string
	app := newAppState()
	app.runFn = fixedRun(doneResult(), &calls)
	app.copyFn = func(context.Context, string) error {
		return clipboard.ErrUnavailable
	}

	stdout, _, err := runAppCommand(t, app, []string{"summarize", "--no-progress", "--copy", "https://youtu.be/x"})
	require.NoError(t, err)
	require.Contains(t, stdout, "A talk about Go.")
}

func TestSummarizeCommandReturnsStageError(t *testing.T) {
	t.Parallel()

	var calls []string
	res := pipeline.Result{
		State: pipeline.StageAborted,
		Err:   &pipeline.StageError{Stage: pipeline.StageDownloading, Err: errors.New("video unavailable")},
	}
	app := newAppState()
	app.runFn = fixedRun(res, &calls)

	stdout, _, err := runAppCommand(t, app, []string{"summarize", "--no-progress", "https://youtu.be/x"})
	require.Error(t, err)

	var stageErr *pipeline.StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, pipeline.StageDownloading, stageErr.Stage)
	require.Empty(t, stdout)
}

func TestSummarizeCommandReportsSummaryFailure(t *testing.T) {
	t.Parallel()

	var calls []string
	res := doneResult()
	res.Summary = ""
	res.Err = &pipeline.StageError{Stage: pipeline.StageSummarizing, Err: errors.New("model crashed")}

	copied := false
	app := newAppState()
	app.runFn = fixedRun(res, &calls)
	app.copyFn = func(context.Context, string) error {
		copied = true
		return nil
	}

	_, _, err := runAppCommand(t, app, []string{"summarize", "--no-progress", "--copy", "https://youtu.be/x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "summary generation failed: model crashed")
	require.False(t, copied)
}

func TestSummarizeCommandPassesFlagsToConfig(t *testing.T) {
	t.Parallel()

	var calls []string
	app := newAppState()
	app.runFn = fixedRun(doneResult(), &calls)

	_, _, err := runAppCommand(t, app, []string{
		"summarize", "--no-progress",
		"--backend", "native",
		"--model", "tiny",
		"--llm-url", "http://ollama.internal:11434/v1",
		"https://youtu.be/x",
	})
	require.NoError(t, err)
	require.Equal(t, "native", app.cfg.Fetch.Backend)
	require.Equal(t, "tiny", app.cfg.Whisper.Model)
	require.Equal(t, "http://ollama.internal:11434/v1", app.cfg.LLM.BaseURL)
}
