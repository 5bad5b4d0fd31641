package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fmueller/semisizer/internal/audio"
	"github.com/fmueller/semisizer/internal/config"
	"github.com/fmueller/semisizer/internal/platform"
	"go.uber.org/zap"
)

// BlankAudioToken is what whisper.cpp emits for audio without speech.
const BlankAudioToken = "[BLANK_AUDIO]"

// whisper.cpp reads 16 kHz mono PCM16 only.
const (
	engineSampleRate = 16000
	engineChannels   = 1
)

var (
	// ErrNoTranscript means the engine ran but produced no usable text.
	ErrNoTranscript = errors.New("transcription produced no text")
	// ErrNoSpeech means the silence gate rejected the audio before the
	// engine was started.
	ErrNoSpeech = errors.New("audio is silent; no speech to transcribe")
)

func IsBlankTranscript(transcript string) bool {
	trimmed := strings.TrimSpace(transcript)
	if trimmed == "" {
		return true
	}
	return strings.EqualFold(trimmed, BlankAudioToken)
}

// Transcriber turns a normalized WAV file into text with a fixed model tier.
// The engine and the model are resolved once and reused across runs.
type Transcriber struct {
	cfg         config.WhisperConfig
	silenceGate bool
	silenceDBFS float64
	noProgress  bool
	logger      *zap.Logger

	newEngine func() (Engine, error)
	ensure    func(ctx context.Context, opts EnsureOptions) (ResolvedModel, error)

	mu     sync.Mutex
	engine Engine
	model  *ResolvedModel
}

type TranscriberOption func(*Transcriber)

// WithEngine injects a ready engine instead of resolving whisper-cli.
func WithEngine(engine Engine) TranscriberOption {
	return func(t *Transcriber) {
		t.newEngine = func() (Engine, error) { return engine, nil }
	}
}

// WithModelResolver replaces EnsureModel, mainly for tests.
func WithModelResolver(fn func(ctx context.Context, opts EnsureOptions) (ResolvedModel, error)) TranscriberOption {
	return func(t *Transcriber) {
		t.ensure = fn
	}
}

func WithNoProgress(noProgress bool) TranscriberOption {
	return func(t *Transcriber) {
		t.noProgress = noProgress
	}
}

func NewTranscriber(cfg config.Config, logger *zap.Logger, opts ...TranscriberOption) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Transcriber{
		cfg:         cfg.Whisper,
		silenceGate: cfg.Audio.SilenceGate,
		silenceDBFS: cfg.Audio.SilenceDBFS,
		logger:      logger,
		ensure:      EnsureModel,
	}
	t.newEngine = func() (Engine, error) {
		return NewBundledEngine(t.cfg.EnginePath, t.logger)
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Prepare resolves the engine and makes sure the model file is present.
func (t *Transcriber) Prepare(ctx context.Context) (ResolvedModel, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.engine == nil {
		engine, err := t.newEngine()
		if err != nil {
			return ResolvedModel{}, err
		}
		t.engine = engine
	}

	if t.model != nil {
		return *t.model, nil
	}

	modelDir := t.cfg.ModelDir
	if !looksLikePath(t.cfg.Model) {
		dir, err := platform.ResolveModelDir(modelDir)
		if err != nil {
			return ResolvedModel{}, err
		}
		modelDir = dir
	}

	resolved, err := t.ensure(ctx, EnsureOptions{
		Model:        t.cfg.Model,
		ModelDir:     modelDir,
		AutoDownload: t.cfg.AutoDownload,
		NoProgress:   t.noProgress,
		Logger:       t.logger,
	})
	if err != nil {
		return ResolvedModel{}, err
	}

	t.model = &resolved
	return resolved, nil
}

// Transcribe runs the engine on wavPath. workDir receives the engine's
// intermediate files.
func (t *Transcriber) Transcribe(ctx context.Context, wavPath, workDir string) (string, error) {
	if _, err := os.Stat(wavPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	if t.silenceGate {
		info, err := audio.Inspect(wavPath)
		if err != nil {
			t.logger.Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", wavPath))
		} else if info.IsSilent(t.silenceDBFS) {
			t.logger.Info("audio considered silent; skipping transcription",
				zap.String("audio", wavPath),
				zap.Float64("rms_dbfs", info.RMSdBFS),
				zap.Float64("peak_dbfs", info.PeakdBFS),
				zap.Float64("threshold_dbfs", t.silenceDBFS),
			)
			return "", ErrNoSpeech
		} else if !info.MatchesTarget(engineSampleRate, engineChannels) {
			t.logger.Warn("audio is not 16 kHz mono PCM16; whisper-cli may reject it",
				zap.String("audio", wavPath),
				zap.Int("sample_rate", info.SampleRate),
				zap.Int("channels", info.Channels),
				zap.Int("bits_per_sample", info.BitsPerSample),
			)
		}
	}

	model, err := t.Prepare(ctx)
	if err != nil {
		return "", err
	}

	t.logger.Info("transcribing...", zap.String("audio", wavPath), zap.String("model", model.Path), zap.String("language", t.cfg.Language))
	started := time.Now()

	transcript, err := t.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: wavPath,
		ModelPath: model.Path,
		Language:  SanitizeLanguage(t.cfg.Language),
		OutputDir: workDir,
	})
	if err != nil {
		t.logger.Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", err
	}
	t.logger.Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	if IsBlankTranscript(transcript) {
		return "", ErrNoTranscript
	}
	return strings.TrimSpace(transcript), nil
}

func SanitizeLanguage(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return "auto"
	}
	return trimmed
}
