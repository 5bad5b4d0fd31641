package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fmueller/semisizer/internal/whisper"
	"github.com/stretchr/testify/require"
)

func TestTranscribeCommandPrintsAndCopies(t *testing.T) {
	t.Parallel()

	out := new(bytes.Buffer)
	var copied []string

	app := &appState{
		transcribeFn: func(_ context.Context, path string) (string, error) {
			require.Equal(t, "/tmp/talk.m4a", path)
			return "hello from the talk", nil
		},
		copyFn: func(_ context.Context, value string) error {
			copied = append(copied, value)
			return nil
		},
	}

	cmd := newTranscribeCmd(app)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--copy", "/tmp/talk.m4a"})

	require.NoError(t, cmd.Execute())
	require.Equal(t, "hello from the talk\n", out.String())
	require.Equal(t, []string{"hello from the talk"}, copied)
}

func TestTranscribeCommandNoSpeechIsNotAnError(t *testing.T) {
	t.Parallel()

	for _, cause := range []error{whisper.ErrNoSpeech, whisper.ErrNoTranscript} {
		out := new(bytes.Buffer)
		copyCalls := 0

		app := &appState{
			transcribeFn: func(context.Context, string) (string, error) {
				return "", cause
			},
			copyFn: func(context.Context, string) error {
				copyCalls++
				return nil
			},
		}

		cmd := newTranscribeCmd(app)
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs([]string{"--copy", "/tmp/audio.wav"})

		require.NoError(t, cmd.Execute())
		require.Equal(t, 0, copyCalls)
		require.Empty(t, out.String())
	}
}

func TestTranscribeCommandPropagatesFailures(t *testing.T) {
	t.Parallel()

	boom := errors.New("ffmpeg conversion failed (exit 1):\nInvalid data")
	app := &appState{
		transcribeFn: func(context.Context, string) (string, error) {
			return "", boom
		},
	}

	cmd := newTranscribeCmd(app)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"/tmp/audio.webm"})

	require.ErrorIs(t, cmd.Execute(), boom)
}
