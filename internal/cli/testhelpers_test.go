package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/fmueller/semisizer/internal/pipeline"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	return runAppCommand(t, newAppState(), args)
}

// runAppCommand executes the root command around a prepared app, so tests
// can swap the pipeline, server and clipboard hooks.
func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	app.envFile = ""
	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func fixedRun(res pipeline.Result, calls *[]string) func(context.Context, string, func(string, pipeline.Event)) (pipeline.Result, error) {
	return func(_ context.Context, url string, onEvent func(string, pipeline.Event)) (pipeline.Result, error) {
		*calls = append(*calls, "run:"+url)
		for _, ev := range res.Events {
			onEvent(res.RunID, ev)
		}
		res.URL = url
		return res, nil
	}
}
