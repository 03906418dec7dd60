package tflite

import (
	"testing"

	"github.com/mattn/go-tflite"
	"github.com/stretchr/testify/assert"
)

func TestQuantize(t *testing.T) {
	dst := make([]uint8, 4)
	quantize(dst, []float32{0, 0.5, 1, 2}, tflite.QuantizationParams{Scale: 1.0 / 255})
	assert.Equal(t, []uint8{0, 128, 255, 255}, dst)

	quantize(dst, []float32{0, 0.5, 1, -1}, tflite.QuantizationParams{Scale: 0.01, ZeroPoint: 10})
	assert.Equal(t, []uint8{10, 60, 110, 0}, dst)

	quantize(dst, []float32{0, 0.2, 1, 0.5}, tflite.QuantizationParams{})
	assert.Equal(t, []uint8{0, 51, 255, 128}, dst)
}

func TestDequantize(t *testing.T) {
	got := dequantize([]uint8{0, 10, 110, 255}, tflite.QuantizationParams{Scale: 0.01, ZeroPoint: 10})
	assert.InDeltaSlice(t, []float32{-0.1, 0, 1, 2.45}, got, 1e-6)

	got = dequantize([]uint8{0, 51, 255}, tflite.QuantizationParams{})
	assert.InDeltaSlice(t, []float32{0, 0.2, 1}, got, 1e-6)
}
