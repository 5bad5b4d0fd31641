package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fmueller/semisizer/internal/audio"
	"github.com/fmueller/semisizer/internal/clipboard"
	"github.com/fmueller/semisizer/internal/config"
	"github.com/fmueller/semisizer/internal/logging"
	"github.com/fmueller/semisizer/internal/media"
	"github.com/fmueller/semisizer/internal/pipeline"
	"github.com/fmueller/semisizer/internal/platform"
	"github.com/fmueller/semisizer/internal/summarize"
	"github.com/fmueller/semisizer/internal/version"
	"github.com/fmueller/semisizer/internal/whisper"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type appState struct {
	verbose    bool
	jsonLogs   bool
	noProgress bool
	configPath string
	envFile    string

	// Flag values; they only override the loaded config when set explicitly.
	scratchDir   string
	model        string
	modelDir     string
	language     string
	autoDownload bool
	backend      string
	llmModel     string
	llmURL       string
	addr         string
	silenceGate  bool
	silenceDBFS  float64

	cfg    config.Config
	logger *zap.Logger
	out    io.Writer

	serveFn      func(ctx context.Context) error
	runFn        func(ctx context.Context, url string, onEvent func(string, pipeline.Event)) (pipeline.Result, error)
	transcribeFn func(ctx context.Context, audioPath string) (string, error)
	copyFn       func(ctx context.Context, value string) error
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newAppState())
}

func newAppState() *appState {
	defaults := config.Default()
	app := &appState{
		cfg:          defaults,
		envFile:      ".env",
		model:        defaults.Whisper.Model,
		language:     defaults.Whisper.Language,
		autoDownload: defaults.Whisper.AutoDownload,
		backend:      defaults.Fetch.Backend,
		llmModel:     defaults.LLM.Model,
		llmURL:       defaults.LLM.BaseURL,
		addr:         defaults.Server.Addr,
		silenceGate:  defaults.Audio.SilenceGate,
		silenceDBFS:  defaults.Audio.SilenceDBFS,
		out:          os.Stdout,
	}
	app.serveFn = app.serve
	app.runFn = app.runPipeline
	app.transcribeFn = app.transcribeAudio
	app.copyFn = clipboard.CopyText
	return app
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "semisizer",
		Short:         "Summarize YouTube videos with a local whisper model and an Ollama chat model",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := logging.New(logging.Options{Verbose: app.verbose, JSON: app.jsonLogs})
			if err != nil {
				return fmt.Errorf("initialize logger: %w", err)
			}
			app.logger = logger
			return app.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serveFn(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindGlobalFlags(cmd, app)
	bindServeFlags(cmd, app)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newSummarizeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindGlobalFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.configPath, "config", app.configPath, "Path to a YAML config file (default: <config dir>/semisizer/config.yaml when present)")
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.scratchDir, "scratch-dir", app.scratchDir, "Directory for per-run scratch files")
}

// loadConfig layers defaults, the YAML file, .env plus environment and
// finally the flags the user actually set.
func (a *appState) loadConfig(cmd *cobra.Command) error {
	path := a.configPath
	required := path != ""
	if !required {
		resolved, err := platform.ResolveConfigPath()
		if err != nil {
			a.log().Debug("no default config path", zap.Error(err))
		}
		path = resolved
	}

	cfg, err := config.Load(path, required)
	if err != nil {
		return err
	}

	if a.envFile != "" {
		if err := config.LoadDotEnv(a.envFile); err != nil {
			return err
		}
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return err
	}

	a.applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	a.cfg = cfg
	a.log().Debug("configuration loaded", zap.String("config", path), zap.String("llm_model", cfg.LLM.Model), zap.String("whisper_model", cfg.Whisper.Model))
	return nil
}

func (a *appState) applyFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("scratch-dir") {
		cfg.ScratchDir = a.scratchDir
	}
	if changed("model") {
		cfg.Whisper.Model = a.model
	}
	if changed("model-dir") {
		cfg.Whisper.ModelDir = a.modelDir
	}
	if changed("language") {
		cfg.Whisper.Language = a.language
	}
	if changed("auto-download") {
		cfg.Whisper.AutoDownload = a.autoDownload
	}
	if changed("backend") {
		cfg.Fetch.Backend = a.backend
	}
	if changed("llm-model") {
		cfg.LLM.Model = a.llmModel
	}
	if changed("llm-url") {
		cfg.LLM.BaseURL = a.llmURL
	}
	if changed("addr") {
		cfg.Server.Addr = a.addr
	}
	if changed("silence-gate") {
		cfg.Audio.SilenceGate = a.silenceGate
	}
	if changed("silence-threshold-dbfs") {
		cfg.Audio.SilenceDBFS = a.silenceDBFS
	}
}

func (a *appState) scratchRoot() (string, error) {
	dir, err := platform.ResolveScratchDir(a.cfg.ScratchDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch directory %s: %w", dir, err)
	}
	return dir, nil
}

func (a *appState) newTranscriber() *whisper.Transcriber {
	return whisper.NewTranscriber(a.cfg, a.log(), whisper.WithNoProgress(!a.progressEnabled()))
}

// buildPipeline wires the production components with runs placed under
// root. The caller owns the returned registry and must close it.
func (a *appState) buildPipeline(root string) (*pipeline.Pipeline, *summarize.Registry, error) {
	registry := summarize.NewRegistry(a.cfg.LLM, a.log())
	p, err := pipeline.New(pipeline.Options{
		ScratchRoot: root,
		Fetcher:     media.NewFetcher(a.cfg.Fetch, a.log()),
		Normalizer:  audio.NewNormalizer(a.cfg.Audio, nil, a.log()),
		Transcriber: a.newTranscriber(),
		Models:      pipeline.RegistryModels(registry, a.cfg.LLM.Model),
		Logger:      a.log(),
	})
	if err != nil {
		_ = registry.Close(context.Background())
		return nil, nil, err
	}
	return p, registry, nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func (a *appState) outWriter() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}

func (a *appState) copyToClipboard(ctx context.Context, value, what string) {
	copyFn := a.copyFn
	if copyFn == nil {
		copyFn = clipboard.CopyText
	}

	if err := copyFn(ctx, value); err != nil {
		if errors.Is(err, clipboard.ErrUnavailable) {
			a.log().Warn("clipboard tool unavailable; " + what + " left on stdout")
			return
		}
		a.log().Warn("failed to copy "+what+" to clipboard; "+what+" left on stdout", zap.Error(err))
		return
	}
	a.log().Info(what + " copied to clipboard")
}
