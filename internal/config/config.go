// Package config holds the explicit settings every pipeline component is
// constructed with. Values are layered: defaults, an optional YAML file,
// environment variables (a .env file is honoured) and finally CLI flags.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultSampleRate   = 16000
	DefaultChannels     = 1
	DefaultWhisperModel = "small"
	DefaultLLMModel     = "llama3.2:latest"
	DefaultLLMBaseURL   = "http://localhost:11434/v1"
	DefaultPromptPrefix = "Summarize this: "
	DefaultGreeting     = "Hello!"
	DefaultAddr         = "127.0.0.1:8501"
)

var fetchBackends = []string{"auto", "yt-dlp", "native"}

type Config struct {
	ScratchDir string        `yaml:"scratch_dir"`
	Fetch      FetchConfig   `yaml:"fetch"`
	Audio      AudioConfig   `yaml:"audio"`
	Whisper    WhisperConfig `yaml:"whisper"`
	LLM        LLMConfig     `yaml:"llm"`
	Server     ServerConfig  `yaml:"server"`
}

type FetchConfig struct {
	Backend   string `yaml:"backend"`
	Format    string `yaml:"format"`
	YtDlpPath string `yaml:"ytdlp_path"`
}

type AudioConfig struct {
	FFmpegPath  string  `yaml:"ffmpeg_path"`
	SampleRate  int     `yaml:"sample_rate"`
	Channels    int     `yaml:"channels"`
	SilenceGate bool    `yaml:"silence_gate"`
	SilenceDBFS float64 `yaml:"silence_threshold_dbfs"`
}

type WhisperConfig struct {
	Model        string `yaml:"model"`
	ModelDir     string `yaml:"model_dir"`
	Language     string `yaml:"language"`
	AutoDownload bool   `yaml:"auto_download"`
	EnginePath   string `yaml:"engine_path"`
}

type LLMConfig struct {
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"api_key"`
	Model        string        `yaml:"model"`
	PromptPrefix string        `yaml:"prompt_prefix"`
	Greeting     string        `yaml:"greeting"`
	Timeout      time.Duration `yaml:"timeout"`
}

type ServerConfig struct {
	Addr          string `yaml:"addr"`
	RunsPerMinute int    `yaml:"runs_per_minute"`
	Burst         int    `yaml:"burst"`
}

func Default() Config {
	return Config{
		Fetch: FetchConfig{
			Backend:   "auto",
			Format:    "bestaudio/best",
			YtDlpPath: "yt-dlp",
		},
		Audio: AudioConfig{
			FFmpegPath:  "ffmpeg",
			SampleRate:  DefaultSampleRate,
			Channels:    DefaultChannels,
			SilenceGate: true,
			SilenceDBFS: -65,
		},
		Whisper: WhisperConfig{
			Model:        DefaultWhisperModel,
			Language:     "auto",
			AutoDownload: true,
		},
		LLM: LLMConfig{
			BaseURL:      DefaultLLMBaseURL,
			APIKey:       "ollama",
			Model:        DefaultLLMModel,
			PromptPrefix: DefaultPromptPrefix,
			Greeting:     DefaultGreeting,
			Timeout:      5 * time.Minute,
		},
		Server: ServerConfig{
			Addr:          DefaultAddr,
			RunsPerMinute: 6,
			Burst:         2,
		},
	}
}

// Load reads a YAML file on top of the defaults. A missing file is only an
// error when required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := decodeYAML(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

func decodeYAML(content []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads the given .env files into the process environment,
// skipping files that do not exist. Existing variables are not overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %s: %w", path, err)
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg from SEMISIZER_* variables. lookup is os.LookupEnv
// outside of tests.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("SEMISIZER_SCRATCH_DIR", &cfg.ScratchDir)
	str("SEMISIZER_FETCH_BACKEND", &cfg.Fetch.Backend)
	str("SEMISIZER_YTDLP_PATH", &cfg.Fetch.YtDlpPath)
	str("SEMISIZER_FFMPEG_PATH", &cfg.Audio.FFmpegPath)
	str("SEMISIZER_WHISPER_MODEL", &cfg.Whisper.Model)
	str("SEMISIZER_MODEL_DIR", &cfg.Whisper.ModelDir)
	str("SEMISIZER_LANGUAGE", &cfg.Whisper.Language)
	str("SEMISIZER_WHISPER_PATH", &cfg.Whisper.EnginePath)
	str("SEMISIZER_LLM_BASE_URL", &cfg.LLM.BaseURL)
	str("OPENAI_API_KEY", &cfg.LLM.APIKey)
	str("SEMISIZER_LLM_API_KEY", &cfg.LLM.APIKey)
	str("SEMISIZER_LLM_MODEL", &cfg.LLM.Model)
	str("SEMISIZER_ADDR", &cfg.Server.Addr)

	if v, ok := lookup("SEMISIZER_LLM_TIMEOUT"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SEMISIZER_LLM_TIMEOUT: %w", err)
		}
		cfg.LLM.Timeout = d
	}

	if v, ok := lookup("SEMISIZER_RUNS_PER_MINUTE"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("SEMISIZER_RUNS_PER_MINUTE: %w", err)
		}
		cfg.Server.RunsPerMinute = n
	}

	return nil
}

func (c Config) Validate() error {
	var errs []error

	if !contains(fetchBackends, c.Fetch.Backend) {
		errs = append(errs, fmt.Errorf("fetch.backend must be one of %s, got %q", strings.Join(fetchBackends, "|"), c.Fetch.Backend))
	}
	if strings.TrimSpace(c.Fetch.Format) == "" {
		errs = append(errs, errors.New("fetch.format must not be empty"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	if c.Audio.Channels <= 0 {
		errs = append(errs, fmt.Errorf("audio.channels must be positive, got %d", c.Audio.Channels))
	}
	if strings.TrimSpace(c.Audio.FFmpegPath) == "" {
		errs = append(errs, errors.New("audio.ffmpeg_path must not be empty"))
	}
	if strings.TrimSpace(c.Whisper.Model) == "" {
		errs = append(errs, errors.New("whisper.model must not be empty"))
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		errs = append(errs, errors.New("llm.model must not be empty"))
	}
	if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("llm.base_url must be an absolute URL, got %q", c.LLM.BaseURL))
	}
	if c.LLM.Timeout < 0 {
		errs = append(errs, errors.New("llm.timeout must not be negative"))
	}
	if c.Server.RunsPerMinute < 0 || c.Server.Burst < 0 {
		errs = append(errs, errors.New("server rate limits must not be negative"))
	}

	return errors.Join(errs...)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
