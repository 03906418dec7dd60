// Package inference - Inference engine interface and implementations.
package inference

import (
	"context"
	log "log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Engine defines the interface for ML inference engines.
type Engine interface {
	// Predict evaluates the model on a preprocessed image and returns the
	// output in anchor-major, normalized form.
	Predict(ctx context.Context, input *preprocess.Result) (*postprocess.RawOutput, error)
	// Config returns the model configuration the engine was built with.
	Config() model.Config
	// Stats returns the inference timings so far.
	Stats() Stats
	// Close releases the model. Later Predict calls fail with ErrModelNotLoaded.
	Close() error
}

// EngineBuilder builds an Engine with a fluent API.
type EngineBuilder struct {
	openers map[model.EngineType]Opener
	config  *model.Config
	err     error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{openers: make(map[model.EngineType]Opener)}
}

// WithOpener registers the loader for an engine type.
//
// Arguments:
//   - engine: The engine type the opener serves.
//   - opener: The function that loads a model file into a Backend.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithOpener(engine model.EngineType, opener Opener) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if opener == nil {
		b.err = errors.Errorf("nil opener for engine %q", engine)
		return b
	}
	b.openers[engine] = opener
	return b
}

// WithModel sets the model configuration for the engine.
//
// Arguments:
//   - cfg: The model configuration. It is validated here.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithModel(cfg model.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if err := cfg.Validate(); err != nil {
		b.err = err
		return b
	}
	b.config = &cfg
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build loads the model and builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The first builder error, ErrConfiguration for a missing model or
//     opener, or the opener's error wrapped with ErrModelNotLoaded.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.config == nil {
		return nil, errors.Wrap(postprocess.ErrConfiguration, "model not configured")
	}

	opener, ok := b.openers[b.config.Engine]
	if !ok {
		return nil, errors.Wrapf(postprocess.ErrConfiguration, "no opener registered for engine %q", b.config.Engine)
	}

	start := time.Now()
	backend, err := opener(*b.config)
	if err != nil {
		return nil, withCause(ErrModelNotLoaded, errors.Wrap(err, b.config.Path))
	}

	log.Info("model loaded",
		"name", b.config.Name,
		"engine", b.config.Engine,
		"path", b.config.Path,
		"duration", time.Since(start),
	)

	return &engine{
		config:  *b.config,
		backend: backend,
	}, nil
}

// engine implements the Engine interface over a Backend.
type engine struct {
	config model.Config

	mu       sync.Mutex
	backend  Backend
	profiler profiler
}

// Predict runs the backend and converts its output per the model layout
// and box units.
//
// Arguments:
//   - ctx: The context for the prediction.
//   - input: The preprocessed image.
//
// Returns:
//   - *postprocess.RawOutput: The anchor-major output with normalized geometry.
//   - error: ErrModelNotLoaded, ErrInference or ErrShapeMismatch.
func (e *engine) Predict(ctx context.Context, input *preprocess.Result) (*postprocess.RawOutput, error) {
	if input == nil {
		return nil, errors.Wrap(ErrInference, "input is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend == nil {
		return nil, ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return nil, withCause(ErrInference, err)
	}

	start := time.Now()
	out, err := e.backend.Run(ctx, Tensor{Data: input.Data, Shape: input.Shape})
	e.profiler.record(time.Since(start), err)
	if err != nil {
		return nil, withCause(ErrInference, err)
	}

	raw, err := postprocess.NewRawOutput(out.Data, out.Shape, e.config.Layout)
	if err != nil {
		return nil, err
	}
	if e.config.BoxUnits == postprocess.BoxUnitsPixels {
		raw.NormalizeGeometry(e.config.InputSize, e.config.InputSize)
	}

	log.Debug("inference finished",
		"model", e.config.Name,
		"shape", out.Shape,
		"anchors", raw.Anchors,
		"duration", time.Since(start),
	)

	return raw, nil
}

func (e *engine) Config() model.Config {
	return e.config
}

func (e *engine) Stats() Stats {
	return e.profiler.snapshot()
}

func (e *engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.backend == nil {
		return nil
	}
	err := e.backend.Close()
	e.backend = nil
	if err != nil {
		return errors.Wrap(err, "failed to close model")
	}
	return nil
}
