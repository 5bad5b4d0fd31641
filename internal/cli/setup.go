package cli

import (
	"fmt"

	"github.com/fmueller/semisizer/internal/platform"
	"github.com/fmueller/semisizer/internal/summarize"
	"github.com/fmueller/semisizer/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSetupCmd(app *appState) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Download and verify speech model assets and check the chat model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			modelDir, err := platform.ResolveModelDir(app.cfg.Whisper.ModelDir)
			if err != nil {
				return err
			}

			resolved, err := whisper.ResolveModel(app.cfg.Whisper.Model, modelDir)
			if err != nil {
				return err
			}
			if resolved.IsCustomPath {
				return fmt.Errorf("setup expects a named model; got custom path %s", resolved.Path)
			}
			if !resolved.NeedsDownload {
				app.log().Info("verifying existing model", zap.String("model", resolved.Name), zap.String("path", resolved.Path))
			}

			resolved, err = whisper.EnsureModel(cmd.Context(), whisper.EnsureOptions{
				Model:      app.cfg.Whisper.Model,
				ModelDir:   modelDir,
				Verify:     true,
				NoProgress: app.noProgress,
				Logger:     app.log(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Model %s ready at %s\n", resolved.Name, resolved.Path)

			if skipLLM {
				return nil
			}

			client := summarize.NewClient(app.cfg.LLM, app.log())
			if err := client.Greet(cmd.Context()); err != nil {
				return fmt.Errorf("%w\nIs Ollama running at %s? Try `ollama pull %s`", err, app.cfg.LLM.BaseURL, client.Model())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Chat model %s responded at %s\n", client.Model(), app.cfg.LLM.BaseURL)
			return nil
		},
	}

	bindModelFlags(cmd, app)
	bindLLMFlags(cmd, app)
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Only prepare the whisper model")
	return cmd
}
