package tflite

import (
	"math"

	"github.com/mattn/go-tflite"
)

// quantize maps [0, 1] floats into uint8 with the tensor's affine parameters.
// A zero scale falls back to v*255.
func quantize(dst []uint8, src []float32, q tflite.QuantizationParams) {
	for i, v := range src {
		var f float64
		if q.Scale == 0 {
			f = float64(v) * 255
		} else {
			f = float64(v)/q.Scale + float64(q.ZeroPoint)
		}
		dst[i] = uint8(math.Max(0, math.Min(255, math.Round(f))))
	}
}

// dequantize maps uint8 values back to floats. A zero scale falls back to v/255.
func dequantize(src []uint8, q tflite.QuantizationParams) []float32 {
	out := make([]float32, len(src))
	for i, v := range src {
		if q.Scale == 0 {
			out[i] = float32(v) / 255
			continue
		}
		out[i] = float32((float64(v) - float64(q.ZeroPoint)) * q.Scale)
	}
	return out
}
