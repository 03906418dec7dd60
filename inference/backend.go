package inference

import (
	"context"

	"github.com/nvr-ai/go-detect/models/model"
)

// Tensor is a flat float32 tensor and its shape.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// Backend evaluates one loaded model. Implementations wrap a native runtime
// and need not be safe for concurrent use; the engine serializes calls.
type Backend interface {
	// Run evaluates the model on one input tensor and returns its single
	// detection output. The returned data must not alias runtime memory.
	Run(ctx context.Context, input Tensor) (Tensor, error)
	// Close releases the native resources.
	Close() error
}

// Opener loads the model described by cfg into a Backend.
type Opener func(cfg model.Config) (Backend, error)
