// Package images - Geometry and image containers shared by the detection stages.
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Box is a bounding box in normalized image-fraction coordinates.
//
// The field order follows the (y1, x1, y2, x2) convention used by the model
// post-processing. Well-formed boxes satisfy Y1 <= Y2 and X1 <= X2, but the
// type does not enforce it: decoding passes degenerate boxes through unchanged.
type Box struct {
	Y1 float32 `json:"y1" yaml:"y1"`
	X1 float32 `json:"x1" yaml:"x1"`
	Y2 float32 `json:"y2" yaml:"y2"`
	X2 float32 `json:"x2" yaml:"x2"`
}

// Width returns X2 - X1, which may be negative for malformed boxes.
func (b Box) Width() float32 {
	return b.X2 - b.X1
}

// Height returns Y2 - Y1, which may be negative for malformed boxes.
func (b Box) Height() float32 {
	return b.Y2 - b.Y1
}

// Canon returns the box with its corners ordered so that Y1 <= Y2 and X1 <= X2.
func (b Box) Canon() Box {
	return Box{
		Y1: math32.Min(b.Y1, b.Y2),
		X1: math32.Min(b.X1, b.X2),
		Y2: math32.Max(b.Y1, b.Y2),
		X2: math32.Max(b.X1, b.X2),
	}
}

// Area returns the area of the canonical box.
func (b Box) Area() float32 {
	c := b.Canon()
	return c.Width() * c.Height()
}

// Scale maps the normalized box onto a width x height pixel grid.
//
// Arguments:
//   - width: The pixel width that X coordinates are fractions of.
//   - height: The pixel height that Y coordinates are fractions of.
//
// Returns:
//   - image.Rectangle: The truncated pixel rectangle (not canonicalized).
func (b Box) Scale(width, height int) image.Rectangle {
	w := float32(width)
	h := float32(height)
	return image.Rect(int(b.X1*w), int(b.Y1*h), int(b.X2*w), int(b.Y2*h))
}

func (b Box) String() string {
	return fmt.Sprintf("(y1=%.4f, x1=%.4f, y2=%.4f, x2=%.4f)", b.Y1, b.X1, b.Y2, b.X2)
}

// CalculateIoU measures the overlap of two boxes as intersection area over
// union area, a value in [0, 1].
//
// Both boxes are canonicalized first, so swapped corners are tolerated. Boxes
// with zero or negative area never overlap anything and produce 0, which also
// keeps the division safe.
//
//	IoU = Area(A ∩ B) / (Area(A) + Area(B) - Area(A ∩ B))
//
// Arguments:
//   - r: The first box.
//   - o: The other box to compare against.
//
// Returns:
//   - float32: The IoU score. Symmetric in its arguments.
//
// Example Usage:
// ```go
//
//	a := Box{Y1: 0, X1: 0, Y2: 0.5, X2: 0.5}
//	b := Box{Y1: 0.25, X1: 0.25, Y2: 0.75, X2: 0.75}
//	iou := CalculateIoU(a, b) // 0.0625 / (0.25 + 0.25 - 0.0625) = 0.142857
//
// ```
func CalculateIoU(r, o Box) float32 {
	r = r.Canon()
	o = o.Canon()

	areaR := r.Width() * r.Height()
	areaO := o.Width() * o.Height()
	if areaR <= 0 || areaO <= 0 {
		return 0
	}

	iy1 := math32.Max(r.Y1, o.Y1)
	ix1 := math32.Max(r.X1, o.X1)
	iy2 := math32.Min(r.Y2, o.Y2)
	ix2 := math32.Min(r.X2, o.X2)

	interW := math32.Max(ix2-ix1, 0)
	interH := math32.Max(iy2-iy1, 0)
	interArea := interW * interH

	return interArea / (areaR + areaO - interArea)
}
