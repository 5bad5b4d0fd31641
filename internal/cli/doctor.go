package cli

import (
	"fmt"
	"io"
	"os/exec"
	"text/tabwriter"

	"github.com/fmueller/semisizer/internal/media"
	"github.com/fmueller/semisizer/internal/platform"
	"github.com/fmueller/semisizer/internal/summarize"
	"github.com/fmueller/semisizer/internal/whisper"
	"github.com/spf13/cobra"
)

func newDoctorCmd(app *appState) *cobra.Command {
	var checkLLM bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check external tools, download backends and models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "== tools ==")
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			reportTool(tw, "ffmpeg", app.cfg.Audio.FFmpegPath)
			reportTool(tw, "yt-dlp", app.cfg.Fetch.YtDlpPath)
			if engine, err := whisper.NewBundledEngine(app.cfg.Whisper.EnginePath, app.log()); err != nil {
				fmt.Fprintf(tw, "whisper-cli\tmissing\t%v\n", err)
			} else {
				fmt.Fprintf(tw, "whisper-cli\tok\t%s\n", engine.Executable)
			}
			_ = tw.Flush()
			fmt.Fprintln(out)

			fmt.Fprintln(out, "== fetch backends ==")
			tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			backends := media.NewFetcher(app.cfg.Fetch, app.log()).Backends()
			for _, backend := range backends {
				status := "not available"
				if backend.Available() {
					status = "available"
				}
				marker := ""
				if backend.Name() == app.cfg.Fetch.Backend {
					marker = "preferred"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", backend.Name(), status, marker)
			}
			_ = tw.Flush()
			if first, err := media.SelectBackend(backends, app.cfg.Fetch.Backend); err != nil {
				fmt.Fprintf(out, "downloads will fail: %v\n", err)
			} else {
				fmt.Fprintf(out, "downloads start with %s\n", first.Name())
			}
			fmt.Fprintln(out)

			fmt.Fprintln(out, "== whisper model ==")
			reportModel(out, app)
			fmt.Fprintln(out)

			fmt.Fprintln(out, "== chat model ==")
			client := summarize.NewClient(app.cfg.LLM, app.log())
			if !checkLLM {
				fmt.Fprintf(out, "%s at %s (use --check-llm to send a greeting)\n", client.Model(), app.cfg.LLM.BaseURL)
				return nil
			}
			if err := client.Greet(cmd.Context()); err != nil {
				fmt.Fprintf(out, "%s at %s: not responding: %v\n", client.Model(), app.cfg.LLM.BaseURL, err)
				return nil
			}
			fmt.Fprintf(out, "%s at %s: ok\n", client.Model(), app.cfg.LLM.BaseURL)
			return nil
		},
	}

	bindModelFlags(cmd, app)
	bindLLMFlags(cmd, app)
	bindFetchFlags(cmd, app)
	cmd.Flags().BoolVar(&checkLLM, "check-llm", false, "Send a greeting to the chat model")
	return cmd
}

func reportTool(w io.Writer, name, executable string) {
	if executable == "" {
		executable = name
	}
	path, err := exec.LookPath(executable)
	if err != nil {
		fmt.Fprintf(w, "%s\tmissing\tnot found on PATH\n", name)
		return
	}
	fmt.Fprintf(w, "%s\tok\t%s\n", name, path)
}

func reportModel(w io.Writer, app *appState) {
	modelDir, err := platform.ResolveModelDir(app.cfg.Whisper.ModelDir)
	if err != nil {
		fmt.Fprintf(w, "model directory: %v\n", err)
		return
	}

	resolved, err := whisper.ResolveModel(app.cfg.Whisper.Model, modelDir)
	switch {
	case err != nil:
		fmt.Fprintf(w, "%v\n", err)
	case resolved.IsCustomPath:
		fmt.Fprintf(w, "custom model at %s\n", resolved.Path)
	case resolved.NeedsDownload:
		fmt.Fprintf(w, "%s missing at %s (run `semisizer setup --model %s`)\n", resolved.Name, resolved.Path, resolved.Name)
	default:
		fmt.Fprintf(w, "%s present at %s\n", resolved.Name, resolved.Path)
	}
}
