package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 16000, cfg.Audio.SampleRate)
	require.Equal(t, 1, cfg.Audio.Channels)
	require.Equal(t, "small", cfg.Whisper.Model)
	require.Equal(t, "llama3.2:latest", cfg.LLM.Model)
	require.Equal(t, "Summarize this: ", cfg.LLM.PromptPrefix)
	require.Equal(t, "bestaudio/best", cfg.Fetch.Format)
}

func TestLoadMissingOptionalFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadMissingRequiredFileFails(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), true)
	require.Error(t, err)
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
scratch_dir: /tmp/semisizer-runs
fetch:
  backend: native
whisper:
  model: tiny
llm:
  model: mistral:latest
  timeout: 45s
server:
  runs_per_minute: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	require.Equal(t, "/tmp/semisizer-runs", cfg.ScratchDir)
	require.Equal(t, "native", cfg.Fetch.Backend)
	require.Equal(t, "tiny", cfg.Whisper.Model)
	require.Equal(t, "mistral:latest", cfg.LLM.Model)
	require.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 10, cfg.Server.RunsPerMinute)
	require.Equal(t, 16000, cfg.Audio.SampleRate)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("whisper:\n  modle: tiny\n"), 0o644))

	_, err := Load(path, true)
	require.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"SEMISIZER_LLM_MODEL":       "qwen2.5:7b",
		"OPENAI_API_KEY":            "sk-fallback",
		"SEMISIZER_LLM_API_KEY":     "sk-explicit",
		"SEMISIZER_FFMPEG_PATH":     "/opt/ffmpeg/bin/ffmpeg",
		"SEMISIZER_LLM_TIMEOUT":     "90s",
		"SEMISIZER_RUNS_PER_MINUTE": "3",
		"SEMISIZER_LANGUAGE":        "  ",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, lookup))
	require.Equal(t, "qwen2.5:7b", cfg.LLM.Model)
	require.Equal(t, "sk-explicit", cfg.LLM.APIKey)
	require.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.Audio.FFmpegPath)
	require.Equal(t, 90*time.Second, cfg.LLM.Timeout)
	require.Equal(t, 3, cfg.Server.RunsPerMinute)
	require.Equal(t, "auto", cfg.Whisper.Language)
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	t.Parallel()

	cfg := Default()
	err := ApplyEnv(&cfg, func(key string) (string, bool) {
		if key == "SEMISIZER_LLM_TIMEOUT" {
			return "soon", true
		}
		return "", false
	})
	require.Error(t, err)
}

func TestValidateCollectsAllProblems(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Fetch.Backend = "curl"
	cfg.Audio.SampleRate = 0
	cfg.LLM.BaseURL = "localhost"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "fetch.backend")
	require.Contains(t, err.Error(), "audio.sample_rate")
	require.Contains(t, err.Error(), "llm.base_url")
}

func TestLoadDotEnvSkipsMissingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SEMISIZER_TEST_DOTENV=loaded\n"), 0o644))
	t.Setenv("SEMISIZER_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("SEMISIZER_TEST_DOTENV"))

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	require.Equal(t, "loaded", os.Getenv("SEMISIZER_TEST_DOTENV"))
}
