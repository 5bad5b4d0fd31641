package summarize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fmueller/semisizer/internal/config"
	"go.uber.org/zap"
)

var (
	ErrRegistryClosed = errors.New("model registry is closed")
	ErrHandleReleased = errors.New("model handle already released")
)

// Greeter is the part of Client the registry needs; tests swap it out.
type Greeter interface {
	Greet(ctx context.Context) error
	Summarize(ctx context.Context, transcript string) (string, error)
}

type entry struct {
	client Greeter
	init   sync.Mutex
	ready  bool
	refs   int
}

// Registry hands out initialized model handles. A model is greeted once, on
// its first successful Acquire, and shared by all later callers.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry
	active  int
	closed  bool
	drained chan struct{}
	factory func(model string) Greeter
	logger  *zap.Logger
}

func NewRegistry(cfg config.LLMConfig, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return NewRegistryWithFactory(func(model string) Greeter {
		modelCfg := cfg
		modelCfg.Model = model
		return NewClient(modelCfg, logger)
	}, logger)
}

func NewRegistryWithFactory(factory func(model string) Greeter, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries: make(map[string]*entry),
		drained: make(chan struct{}),
		factory: factory,
		logger:  logger,
	}
}

// Acquire returns a handle for model, greeting the model first if no earlier
// greeting succeeded. Every handle must be released.
func (r *Registry) Acquire(ctx context.Context, model string) (*Handle, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRegistryClosed
	}
	e, ok := r.entries[model]
	if !ok {
		e = &entry{client: r.factory(model)}
		r.entries[model] = e
	}
	r.mu.Unlock()

	e.init.Lock()
	if !e.ready {
		r.logger.Info("initializing model", zap.String("model", model))
		if err := e.client.Greet(ctx); err != nil {
			e.init.Unlock()
			return nil, err
		}
		e.ready = true
	}
	e.init.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	e.refs++
	r.active++
	return &Handle{registry: r, entry: e}, nil
}

// Refs reports how many handles for model are currently held.
func (r *Registry) Refs(model string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[model]; ok {
		return e.refs
	}
	return 0
}

// Close stops new acquires and waits until every outstanding handle has been
// released or ctx is done. Handles keep working until they are released.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		if r.active == 0 {
			close(r.drained)
		} else {
			r.logger.Info("waiting for model handles to be released", zap.Int("active", r.active))
		}
	}
	r.mu.Unlock()

	select {
	case <-r.drained:
		return r.drop()
	default:
	}

	select {
	case <-r.drained:
		return r.drop()
	case <-ctx.Done():
		r.mu.Lock()
		active := r.active
		r.mu.Unlock()
		return fmt.Errorf("close model registry with %d handle(s) in use: %w", active, ctx.Err())
	}
}

func (r *Registry) drop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = map[string]*entry{}
	return nil
}

func (r *Registry) release(e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	r.active--
	if r.closed && r.active == 0 {
		close(r.drained)
	}
}

type Handle struct {
	registry *Registry
	entry    *entry
	release  sync.Once
	released atomic.Bool
}

func (h *Handle) Summarize(ctx context.Context, transcript string) (string, error) {
	if h.released.Load() {
		return "", ErrHandleReleased
	}
	return h.entry.client.Summarize(ctx, transcript)
}

// Release is safe to call more than once.
func (h *Handle) Release() {
	h.release.Do(func() {
		h.released.Store(true)
		h.registry.release(h.entry)
	})
}
