package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// boxChannels is the number of leading values per anchor that encode geometry.
const boxChannels = 4

// Layout names the memory order in which an engine emits the detection tensor.
// It is resolved once when the model is loaded, never per inference.
type Layout string

const (
	// LayoutAnchorMajor is [1, N, 4+C]: one contiguous row per anchor.
	LayoutAnchorMajor Layout = "anchor_major"
	// LayoutChannelMajor is [1, 4+C, N]: one contiguous plane per channel, as
	// exported by YOLOv8-style heads.
	LayoutChannelMajor Layout = "channel_major"
)

// Validate reports whether the layout is one of the known constants.
func (l Layout) Validate() error {
	switch l {
	case LayoutAnchorMajor, LayoutChannelMajor:
		return nil
	default:
		return configErrorf("unknown output layout %q", l)
	}
}

// BoxUnits names the unit of the geometry channels in the raw output.
type BoxUnits string

const (
	// BoxUnitsNormalized means cx, cy, w and h are already fractions of the input.
	BoxUnitsNormalized BoxUnits = "normalized"
	// BoxUnitsPixels means cx, cy, w and h are in model-input pixels.
	BoxUnitsPixels BoxUnits = "pixels"
)

// Validate reports whether the units are one of the known constants.
func (u BoxUnits) Validate() error {
	switch u {
	case BoxUnitsNormalized, BoxUnitsPixels:
		return nil
	default:
		return configErrorf("unknown box units %q", u)
	}
}

// RawOutput is one inference result in anchor-major order: Anchors rows of
// Stride values each, where Stride is 4 + C.
type RawOutput struct {
	// Data holds Anchors*Stride values, row i at Data[i*Stride : (i+1)*Stride].
	Data []float32
	// Anchors is the number of candidate slots N.
	Anchors int
	// Stride is the number of values per anchor (4 box values + C scores).
	Stride int
}

// Row returns the values of anchor i without copying.
func (r *RawOutput) Row(i int) []float32 {
	return r.Data[i*r.Stride : (i+1)*r.Stride]
}

// NewRawOutput wraps an engine output tensor as anchor-major RawOutput.
//
// The shape may carry a leading batch dimension, which must be 1. Channel-major
// tensors are transposed into a fresh buffer; anchor-major data is used as is.
//
// Arguments:
//   - data: The flat tensor values. Ownership passes to the returned value.
//   - shape: The tensor shape, [rows, cols] or [1, rows, cols].
//   - layout: How rows and cols map onto anchors and channels.
//
// Returns:
//   - *RawOutput: The anchor-major output.
//   - error: ErrShapeMismatch for bad ranks, batch sizes or lengths;
//     ErrConfiguration for an unknown layout.
func NewRawOutput(data []float32, shape []int64, layout Layout) (*RawOutput, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}

	switch len(shape) {
	case 2:
	case 3:
		if shape[0] != 1 {
			return nil, shapeErrorf("batch dimension must be 1, got %d", shape[0])
		}
		shape = shape[1:]
	default:
		return nil, shapeErrorf("expected rank 2 or 3 output, got shape %v", shape)
	}

	rows, cols := int(shape[0]), int(shape[1])
	if rows < 0 || cols < 0 {
		return nil, shapeErrorf("negative dimension in shape %v", shape)
	}
	if len(data) != rows*cols {
		return nil, shapeErrorf("shape %v needs %d values, got %d", shape, rows*cols, len(data))
	}

	if layout == LayoutAnchorMajor {
		return &RawOutput{Data: data, Anchors: rows, Stride: cols}, nil
	}

	if rows*cols == 0 {
		return &RawOutput{Data: []float32{}, Anchors: cols, Stride: rows}, nil
	}

	planes := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(data))
	transposed, err := tensor.Transpose(planes, 1, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to transpose channel-major output")
	}
	values, ok := transposed.Data().([]float32)
	if !ok {
		return nil, shapeErrorf("transposed output has unexpected element type %T", transposed.Data())
	}

	return &RawOutput{Data: values, Anchors: cols, Stride: rows}, nil
}

// NormalizeGeometry divides the geometry channels by the model input size so
// that pixel-unit exports follow the normalized contract.
//
// Arguments:
//   - width: The model input width, dividing cx and w.
//   - height: The model input height, dividing cy and h.
func (r *RawOutput) NormalizeGeometry(width, height int) {
	if width <= 0 || height <= 0 || r.Stride < boxChannels {
		return
	}
	sx := 1 / float32(width)
	sy := 1 / float32(height)
	for i := 0; i < r.Anchors; i++ {
		row := r.Row(i)
		row[0] *= sx
		row[1] *= sy
		row[2] *= sx
		row[3] *= sy
	}
}
