package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/fmueller/semisizer/internal/pipeline"
	"github.com/fmueller/semisizer/internal/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSummarizeCmd(app *appState) *cobra.Command {
	var (
		copySummary    bool
		showTranscript bool
	)

	cmd := &cobra.Command{
		Use:   "summarize <url>",
		Short: "Summarize a YouTube video in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runFn := app.runFn
			if runFn == nil {
				runFn = app.runPipeline
			}

			spin := startSpinner(app.progressEnabled(), "Starting")
			res, err := runFn(cmd.Context(), args[0], func(_ string, ev pipeline.Event) {
				if ev.Level == pipeline.LevelInfo {
					spin.Describe(ev.Message)
				}
				app.log().Debug(ev.Message, zap.String("stage", string(ev.Stage)), zap.String("level", string(ev.Level)))
			})
			spin.Stop()
			if err != nil {
				return err
			}

			if res.State == pipeline.StageAborted && res.Err != nil {
				return res.Err
			}

			out := cmd.OutOrStdout()
			if showTranscript && res.Transcript != "" {
				fmt.Fprintln(out, "Transcript:")
				fmt.Fprintln(out, res.Transcript)
				fmt.Fprintln(out)
			}

			if res.Summary == "" {
				if res.Err != nil {
					return fmt.Errorf("summary generation failed: %w", res.Err.Err)
				}
				return errors.New("summary generation failed")
			}

			fmt.Fprintln(out, res.Summary)
			fmt.Fprintf(out, "\nProcessing Time: %s seconds\n", web.FormatSeconds(res.Elapsed))

			if copySummary {
				app.copyToClipboard(cmd.Context(), res.Summary, "summary")
			}
			return nil
		},
	}

	bindModelFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	bindLLMFlags(cmd, app)
	bindFetchFlags(cmd, app)
	cmd.Flags().BoolVar(&copySummary, "copy", false, "Copy the summary to the clipboard")
	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Also print the full transcript")
	return cmd
}

func (a *appState) runPipeline(ctx context.Context, url string, onEvent func(string, pipeline.Event)) (pipeline.Result, error) {
	root, err := a.scratchRoot()
	if err != nil {
		return pipeline.Result{}, err
	}
	p, registry, err := a.buildPipeline(root)
	if err != nil {
		return pipeline.Result{}, err
	}
	defer func() {
		_ = registry.Close(context.Background())
	}()

	return p.RunWithEvents(ctx, url, onEvent), nil
}
