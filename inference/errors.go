package inference

import "github.com/pkg/errors"

var (
	// ErrInference reports a transient failure while evaluating the model.
	// The run produced no output and may be retried.
	ErrInference = errors.New("inference failed")

	// ErrModelNotLoaded reports a Predict call on an engine without a model,
	// either never built or already closed.
	ErrModelNotLoaded = errors.New("model not loaded")
)

// causeError tags a failure with one of the sentinels above while keeping
// the underlying error matchable.
type causeError struct {
	kind  error
	cause error
}

func (e *causeError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

// Cause returns the underlying error for errors.Cause.
func (e *causeError) Cause() error { return e.cause }

// Unwrap lets errors.Is match both the sentinel and the cause.
func (e *causeError) Unwrap() []error { return []error{e.kind, e.cause} }

// withCause wraps cause under kind, with a stack trace.
func withCause(kind, cause error) error {
	return errors.WithStack(&causeError{kind: kind, cause: cause})
}
