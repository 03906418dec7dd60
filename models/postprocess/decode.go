package postprocess

import "github.com/nvr-ai/go-detect/images"

// DecodeBoxes converts the center/size encoding of every anchor into corner
// boxes.
//
// For anchor i with (cx, cy, w, h): x1 = cx - w/2, y1 = cy - h/2,
// x2 = x1 + w, y2 = y1 + h. Values are not clamped, so boxes that leave the
// unit square or have negative size come through untouched.
//
// Arguments:
//   - raw: The anchor-major model output. Stride must be at least 4.
//
// Returns:
//   - []images.Box: One box per anchor, in anchor order.
func DecodeBoxes(raw *RawOutput) []images.Box {
	boxes := make([]images.Box, raw.Anchors)
	decodeBoxes(raw, boxes)
	return boxes
}

func decodeBoxes(raw *RawOutput, dst []images.Box) {
	for i := range dst {
		row := raw.Row(i)
		cx, cy, w, h := row[0], row[1], row[2], row[3]

		x1 := cx - w/2
		y1 := cy - h/2
		dst[i] = images.Box{
			Y1: y1,
			X1: x1,
			Y2: y1 + h,
			X2: x1 + w,
		}
	}
}
