package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fmueller/semisizer/internal/audio"
	"github.com/fmueller/semisizer/internal/whisper"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a local audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcribeFn := app.transcribeFn
			if transcribeFn == nil {
				transcribeFn = app.transcribeAudio
			}

			transcript, err := transcribeFn(cmd.Context(), args[0])
			if errors.Is(err, whisper.ErrNoSpeech) || errors.Is(err, whisper.ErrNoTranscript) {
				app.log().Warn(noSpeechHint())
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if copyToClipboard {
				app.copyToClipboard(cmd.Context(), transcript, "transcript")
			}
			return nil
		},
	}

	bindModelFlags(cmd, app)
	bindTranscriptionFlags(cmd, app)
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}

// transcribeAudio normalizes the file into a private scratch directory and
// runs the whisper engine on it.
func (a *appState) transcribeAudio(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	root, err := a.scratchRoot()
	if err != nil {
		return "", err
	}
	workDir, err := os.MkdirTemp(root, "run-")
	if err != nil {
		return "", fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			a.log().Warn("failed to remove scratch directory", zap.String("dir", workDir), zap.Error(err))
		}
	}()

	wavPath, err := audio.NewNormalizer(a.cfg.Audio, nil, a.log()).Normalize(ctx, audioPath, workDir)
	if err != nil {
		return "", err
	}

	transcriber := a.newTranscriber()
	if _, err := transcriber.Prepare(ctx); err != nil {
		return "", err
	}

	spin := startSpinner(a.progressEnabled(), "Transcribing")
	defer spin.Stop()
	return transcriber.Transcribe(ctx, wavPath, workDir)
}

func noSpeechHint() string {
	return "No speech detected in the audio. Check that the video has a spoken track, then try again."
}
