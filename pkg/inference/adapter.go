package inference

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-pupil/pkg/mask"
)

// Adapter owns the bound model and serializes access to it. At most one
// model call is in flight at any time, including calls whose caller has
// already given up.
type Adapter struct {
	res    int
	logger *slog.Logger

	mu    sync.RWMutex // Protects model
	model Model

	flight chan struct{} // One slot: held for the duration of a model call
}

// NewAdapter creates an adapter with no model bound.
func NewAdapter(opts ...Option) *Adapter {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	return &Adapter{
		res:    cfg.Resolution,
		logger: cfg.Logger,
		flight: make(chan struct{}, 1),
	}
}

// Resolution returns the model grid resolution.
func (a *Adapter) Resolution() int {
	return a.res
}

// Load resolves ref through loader and binds the result. Failures are
// reported as *SetupError, matching ErrSetupFailed.
func (a *Adapter) Load(ctx context.Context, loader Loader, ref string) error {
	if loader == nil {
		return &SetupError{Ref: ref, Err: errors.New("no loader configured")}
	}

	start := time.Now()
	m, err := loader(ctx, ref)
	if err != nil {
		return &SetupError{Ref: ref, Err: err}
	}
	if m == nil {
		return &SetupError{Ref: ref, Err: errors.New("loader returned no model")}
	}

	a.Bind(m)
	a.logger.Info("model loaded", "ref", ref, "elapsed", time.Since(start))
	return nil
}

// Bind attaches a loaded model, closing any previously bound one.
func (a *Adapter) Bind(m Model) {
	a.mu.Lock()
	prev := a.model
	a.model = m
	a.mu.Unlock()

	if prev != nil && prev != m {
		prev.Close()
	}
}

// Ready reports whether a model is bound.
func (a *Adapter) Ready() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.model != nil
}

type result struct {
	outputs []Tensor
	err     error
}

// Infer runs the model once on tile and resolves its outputs.
//
// If ctx ends while the model is running, Infer returns ctx.Err() right
// away; the late result is dropped and the flight slot is released only
// once the model call actually returns.
func (a *Adapter) Infer(ctx context.Context, tile *mask.Grid) (Output, error) {
	a.mu.RLock()
	m := a.model
	a.mu.RUnlock()
	if m == nil {
		return Output{}, ErrNotReady
	}

	select {
	case a.flight <- struct{}{}:
	case <-ctx.Done():
		return Output{}, ctx.Err()
	}

	done := make(chan result, 1)
	go func() {
		defer func() { <-a.flight }()
		outputs, err := m.Run(ctx, tile)
		done <- result{outputs: outputs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Output{}, r.err
		}
		return Resolve(r.outputs, a.res)
	case <-ctx.Done():
		return Output{}, ctx.Err()
	}
}

// Close waits for any in-flight model call, then releases the bound model.
func (a *Adapter) Close() error {
	a.flight <- struct{}{}
	defer func() { <-a.flight }()

	a.mu.Lock()
	m := a.model
	a.model = nil
	a.mu.Unlock()

	if m == nil {
		return nil
	}
	return m.Close()
}
