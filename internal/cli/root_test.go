package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersCoreSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	require.Subset(t, names, []string{"serve", "summarize", "transcribe", "setup", "doctor", "version"})

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("json"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("no-progress"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("scratch-dir"))
	require.NotNil(t, cmd.Flags().Lookup("addr"))
	require.Equal(t, "127.0.0.1:8501", cmd.Flags().Lookup("addr").DefValue)
	require.Equal(t, "small", cmd.Flags().Lookup("model").DefValue)
	require.Equal(t, "llama3.2:latest", cmd.Flags().Lookup("llm-model").DefValue)
	require.Equal(t, "auto", cmd.Flags().Lookup("backend").DefValue)
	require.Equal(t, "true", cmd.Flags().Lookup("auto-download").DefValue)
	require.Equal(t, "true", cmd.Flags().Lookup("silence-gate").DefValue)
	require.Equal(t, "-65", cmd.Flags().Lookup("silence-threshold-dbfs").DefValue)
}

func TestRootHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--help"})

	err := cmd.Execute()
	require.NoError(t, err)
	require.Contains(t, out.String(), "serve")
	require.Contains(t, out.String(), "summarize")
	require.Contains(t, out.String(), "transcribe")
	require.Contains(t, out.String(), "setup")
	require.Contains(t, out.String(), "doctor")
}

func TestSubcommandHelpParsesSuccessfully(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		args     []string
		contains string
	}{
		{name: "serve", args: []string{"serve", "--help"}, contains: "Start the web UI"},
		{name: "summarize", args: []string{"summarize", "--help"}, contains: "Summarize a YouTube video in the terminal"},
		{name: "transcribe", args: []string{"transcribe", "--help"}, contains: "Transcribe a local audio file"},
		{name: "setup", args: []string{"setup", "--help"}, contains: "Download and verify speech model assets"},
		{name: "doctor", args: []string{"doctor", "--help"}, contains: "Check external tools"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewRootCmd()
			out := new(bytes.Buffer)
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.NoError(t, err)
			require.Contains(t, out.String(), tt.contains)
		})
	}
}

func TestRootWithoutSubcommandServes(t *testing.T) {
	t.Parallel()

	app := newAppState()
	served := 0
	app.serveFn = func(context.Context) error {
		served++
		return nil
	}

	_, _, err := runAppCommand(t, app, []string{"--config", writeConfig(t, "")})
	require.NoError(t, err)
	require.Equal(t, 1, served)
}

func TestConfigLayeringFileThenFlags(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  addr: 0.0.0.0:9000
  runs_per_minute: 3
llm:
  model: mistral:latest
whisper:
  model: base
`)

	app := newAppState()
	app.serveFn = func(context.Context) error { return nil }

	_, _, err := runAppCommand(t, app, []string{"serve", "--config", path, "--llm-model", "qwen2.5:7b"})
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", app.cfg.Server.Addr)
	require.Equal(t, 3, app.cfg.Server.RunsPerMinute)
	require.Equal(t, "base", app.cfg.Whisper.Model)
	require.Equal(t, "qwen2.5:7b", app.cfg.LLM.Model)
	require.Equal(t, "http://localhost:11434/v1", app.cfg.LLM.BaseURL)
}

func TestConfigEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("SEMISIZER_LLM_MODEL", "phi3:mini")
	t.Setenv("SEMISIZER_FETCH_BACKEND", "native")

	path := writeConfig(t, "llm:\n  model: mistral:latest\n")
	app := newAppState()
	app.serveFn = func(context.Context) error { return nil }

	_, _, err := runAppCommand(t, app, []string{"serve", "--config", path})
	require.NoError(t, err)
	require.Equal(t, "phi3:mini", app.cfg.LLM.Model)
	require.Equal(t, "native", app.cfg.Fetch.Backend)
}

func TestConfigRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	app := newAppState()
	app.serveFn = func(context.Context) error {
		t.Fatal("serve must not start with invalid config")
		return nil
	}

	_, _, err := runAppCommand(t, app, []string{"serve", "--config", writeConfig(t, "fetch:\n  backend: curl\n")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch.backend")
}

func TestConfigExplicitPathMustExist(t *testing.T) {
	t.Parallel()

	_, _, err := runCommand(t, []string{"version", "--config", filepath.Join(t.TempDir(), "missing.yaml")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing.yaml")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
