package postprocess

import "github.com/pkg/errors"

var (
	// ErrConfiguration reports an invalid class list, threshold or output cap.
	// It is raised at construction time and the caller must not proceed.
	ErrConfiguration = errors.New("invalid post-processing configuration")

	// ErrShapeMismatch reports raw model output that does not match the
	// [N, 4+C] contract. It aborts only the invocation that observed it.
	ErrShapeMismatch = errors.New("raw output shape mismatch")
)

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConfiguration, format, args...)
}

func shapeErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}
