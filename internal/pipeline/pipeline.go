// Package pipeline runs one video through fetch, normalization,
// transcription and summarization, owning the scratch files of each run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fmueller/semisizer/internal/logging"
	"github.com/fmueller/semisizer/internal/media"
	"github.com/fmueller/semisizer/internal/summarize"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Stage string

const (
	StageIdle         Stage = "idle"
	StageDownloading  Stage = "downloading"
	StageInitializing Stage = "initializing_model"
	StageTranscribing Stage = "transcribing"
	StageSummarizing  Stage = "summarizing"
	StageDone         Stage = "done"
	StageAborted      Stage = "aborted"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event is a user-facing status message emitted while a run progresses.
type Event struct {
	Stage   Stage  `json:"stage"`
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// StageError records the step a run failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Result struct {
	RunID        string
	URL          string
	State        Stage
	AudioBackend string
	Transcript   string
	Summary      string
	Elapsed      time.Duration
	Err          *StageError
	Events       []Event
}

// Succeeded reports whether the run produced a summary.
func (r Result) Succeeded() bool {
	return r.State == StageDone && r.Err == nil && r.Summary != ""
}

type Fetcher interface {
	Fetch(ctx context.Context, url, dir, baseName string) (media.Artifact, error)
}

type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputDir string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, wavPath, workDir string) (string, error)
}

// Summarizer is an initialized summarization model held for one run.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
	Release()
}

// Models initializes the summarization model, greeting it if needed.
type Models interface {
	Acquire(ctx context.Context) (Summarizer, error)
}

type Options struct {
	ScratchRoot string
	Fetcher     Fetcher
	Normalizer  Normalizer
	Transcriber Transcriber
	Models      Models
	Logger      *zap.Logger
	// OnEvent, when set, receives every status event as it happens.
	OnEvent func(runID string, ev Event)
}

type Pipeline struct {
	scratchRoot string
	fetcher     Fetcher
	normalizer  Normalizer
	transcriber Transcriber
	models      Models
	logger      *zap.Logger
	onEvent     func(string, Event)
	now         func() time.Time
}

func New(opts Options) (*Pipeline, error) {
	var errs []error
	if opts.ScratchRoot == "" {
		errs = append(errs, errors.New("scratch root is required"))
	}
	if opts.Fetcher == nil {
		errs = append(errs, errors.New("fetcher is required"))
	}
	if opts.Normalizer == nil {
		errs = append(errs, errors.New("normalizer is required"))
	}
	if opts.Transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if opts.Models == nil {
		errs = append(errs, errors.New("summarization models are required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &Pipeline{
		scratchRoot: opts.ScratchRoot,
		fetcher:     opts.Fetcher,
		normalizer:  opts.Normalizer,
		transcriber: opts.Transcriber,
		models:      opts.Models,
		logger:      logging.OrNop(opts.Logger),
		onEvent:     opts.OnEvent,
		now:         time.Now,
	}, nil
}

type run struct {
	p      *Pipeline
	res    *Result
	logger *zap.Logger
	extra  func(string, Event)
}

func (r *run) emit(level Level, msg string) {
	ev := Event{Stage: r.res.State, Level: level, Message: msg}
	r.res.Events = append(r.res.Events, ev)
	if r.p.onEvent != nil {
		r.p.onEvent(r.res.RunID, ev)
	}
	if r.extra != nil {
		r.extra(r.res.RunID, ev)
	}
}

func (r *run) enter(stage Stage, msg string) {
	r.res.State = stage
	r.logger.Debug("stage", zap.String("stage", string(stage)))
	r.emit(LevelInfo, msg)
}

func (r *run) abort(err error) {
	r.res.Err = &StageError{Stage: r.res.State, Err: err}
	r.logger.Warn("run aborted", zap.String("stage", string(r.res.State)), zap.Error(err))
	r.emit(LevelError, err.Error())
	r.res.State = StageAborted
}

// Run processes url end to end. It never returns an error directly: the
// outcome, including the failing stage, is carried by the Result.
func (p *Pipeline) Run(ctx context.Context, url string) Result {
	return p.RunWithEvents(ctx, url, nil)
}

// RunWithEvents is Run with an extra per-call event callback.
func (p *Pipeline) RunWithEvents(ctx context.Context, url string, onEvent func(runID string, ev Event)) (res Result) {
	res = Result{RunID: uuid.NewString(), URL: url, State: StageIdle}
	r := &run{p: p, res: &res, logger: logging.ForRun(p.logger, res.RunID, url), extra: onEvent}

	dir := filepath.Join(p.scratchRoot, scratchPrefix+res.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		r.abort(fmt.Errorf("create scratch directory: %w", err))
		return res
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("failed to remove scratch directory", zap.String("dir", dir), zap.Error(err))
		}
	}()

	started := p.now()
	defer func() {
		if recovered := recover(); recovered != nil {
			r.abort(fmt.Errorf("internal error: %v", recovered))
		}
		if elapsed := p.now().Sub(started); elapsed > 0 {
			res.Elapsed = elapsed
		}
	}()

	r.enter(StageDownloading, "Downloading audio...")
	artifact, err := p.fetcher.Fetch(ctx, url, dir, "audio-"+res.RunID)
	if err != nil {
		r.abort(fmt.Errorf("download audio: %w", err))
		return res
	}
	res.AudioBackend = artifact.Backend
	r.logger.Info("audio downloaded", zap.String("path", artifact.Path), zap.String("backend", artifact.Backend))

	r.enter(StageInitializing, "Initializing AI model...")
	model, err := p.models.Acquire(ctx)
	if err != nil {
		r.abort(err)
		return res
	}
	defer model.Release()
	r.emit(LevelSuccess, "Model loaded successfully!")

	r.enter(StageTranscribing, "Transcribing audio...")
	wavPath, err := p.normalizer.Normalize(ctx, artifact.Path, dir)
	if err != nil {
		r.abort(err)
		return res
	}
	transcript, err := p.transcriber.Transcribe(ctx, wavPath, dir)
	if err != nil {
		r.abort(err)
		return res
	}
	if strings.TrimSpace(transcript) == "" {
		r.abort(summarize.ErrEmptyTranscript)
		return res
	}
	res.Transcript = transcript
	r.emit(LevelSuccess, "Transcription complete!")

	r.enter(StageSummarizing, "Generating summary...")
	summary, err := model.Summarize(ctx, transcript)
	res.State = StageDone
	if err != nil {
		res.Err = &StageError{Stage: StageSummarizing, Err: err}
		r.logger.Warn("summary generation failed", zap.Error(err))
		r.emit(LevelError, "Failed to summarize: "+err.Error())
		return res
	}
	res.Summary = summary
	r.emit(LevelSuccess, "Summary ready.")
	return res
}
