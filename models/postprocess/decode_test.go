package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

func TestDecodeBoxes(t *testing.T) {
	tests := []struct {
		name     string
		anchor   anchor
		expected images.Box
	}{
		{
			name:     "centered box",
			anchor:   anchor{cx: 0.5, cy: 0.5, w: 0.2, h: 0.4, scores: []float32{1}},
			expected: images.Box{Y1: 0.3, X1: 0.4, Y2: 0.7, X2: 0.6},
		},
		{
			name:     "box leaving the image is not clamped",
			anchor:   anchor{cx: 0.05, cy: 0.98, w: 0.2, h: 0.1, scores: []float32{1}},
			expected: images.Box{Y1: 0.93, X1: -0.05, Y2: 1.03, X2: 0.15},
		},
		{
			name:     "negative size passes through",
			anchor:   anchor{cx: 0.5, cy: 0.5, w: -0.2, h: 0, scores: []float32{1}},
			expected: images.Box{Y1: 0.5, X1: 0.6, Y2: 0.5, X2: 0.4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boxes := DecodeBoxes(newAnchorMajor(1, tt.anchor))
			require.Len(t, boxes, 1)
			assert.InDelta(t, tt.expected.Y1, boxes[0].Y1, 1e-6)
			assert.InDelta(t, tt.expected.X1, boxes[0].X1, 1e-6)
			assert.InDelta(t, tt.expected.Y2, boxes[0].Y2, 1e-6)
			assert.InDelta(t, tt.expected.X2, boxes[0].X2, 1e-6)
		})
	}
}

// TestDecodeBoxesRoundTrip checks that corner form preserves the encoded size.
func TestDecodeBoxesRoundTrip(t *testing.T) {
	anchors := []anchor{
		{cx: 0.5, cy: 0.5, w: 0.2, h: 0.2, scores: []float32{0.1}},
		{cx: 0.123, cy: 0.877, w: 0.011, h: 0.3, scores: []float32{0.1}},
		{cx: 0.999, cy: 0.001, w: 0.75, h: 0.66, scores: []float32{0.1}},
		{cx: 0, cy: 0, w: 1, h: 1, scores: []float32{0.1}},
	}

	boxes := DecodeBoxes(newAnchorMajor(1, anchors...))
	require.Len(t, boxes, len(anchors))

	for i, a := range anchors {
		assert.InDelta(t, a.w, boxes[i].X2-boxes[i].X1, 1e-6, "anchor %d width", i)
		assert.InDelta(t, a.h, boxes[i].Y2-boxes[i].Y1, 1e-6, "anchor %d height", i)
		assert.InDelta(t, a.cx, (boxes[i].X1+boxes[i].X2)/2, 1e-6, "anchor %d center x", i)
		assert.InDelta(t, a.cy, (boxes[i].Y1+boxes[i].Y2)/2, 1e-6, "anchor %d center y", i)
	}
}

func TestDecodeBoxesEmpty(t *testing.T) {
	boxes := DecodeBoxes(&RawOutput{Stride: 6})
	assert.Empty(t, boxes)
}
