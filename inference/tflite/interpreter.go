// Package tflite - TensorFlow Lite backend for the inference engine.
package tflite

import (
	"context"
	log "log/slog"
	"runtime"

	"github.com/mattn/go-tflite"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model"
)

// Interpreter runs a .tflite model with one input and one detection output.
type Interpreter struct {
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
}

var _ inference.Backend = (*Interpreter)(nil)

// Open loads cfg.Path into a TensorFlow Lite interpreter. It matches
// inference.Opener.
//
// Arguments:
//   - cfg: The model configuration. Runtime.Threads of zero uses every CPU.
//
// Returns:
//   - inference.Backend: The interpreter.
//   - error: An error if the model cannot be read or its tensors allocated.
func Open(cfg model.Config) (inference.Backend, error) {
	m := tflite.NewModelFromFile(cfg.Path)
	if m == nil {
		return nil, errors.Errorf("cannot load model %s", cfg.Path)
	}

	threads := cfg.Runtime.Threads
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	options := tflite.NewInterpreterOptions()
	options.SetNumThread(threads)
	options.SetErrorReporter(func(msg string, _ interface{}) {
		log.Warn("tflite", "message", msg)
	}, nil)

	interpreter := tflite.NewInterpreter(m, options)
	if interpreter == nil {
		options.Delete()
		m.Delete()
		return nil, errors.Errorf("cannot create interpreter for %s", cfg.Path)
	}

	it := &Interpreter{model: m, options: options, interpreter: interpreter}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		it.Close()
		return nil, errors.Errorf("tensor allocation failed with status %v", status)
	}

	input := interpreter.GetInputTensor(0)
	log.Debug("tflite interpreter created",
		"path", cfg.Path,
		"threads", threads,
		"input", input.Name(),
		"input_shape", tensorShape(input),
		"input_type", input.Type(),
		"outputs", interpreter.GetOutputTensorCount(),
	)

	return it, nil
}

// Run copies the input into the interpreter, invokes it and reads the first
// output, dequantizing uint8 models.
func (it *Interpreter) Run(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	if it.interpreter == nil {
		return inference.Tensor{}, inference.ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return inference.Tensor{}, err
	}

	in := it.interpreter.GetInputTensor(0)
	if err := setInput(in, input.Data); err != nil {
		return inference.Tensor{}, err
	}

	if status := it.interpreter.Invoke(); status != tflite.OK {
		return inference.Tensor{}, errors.Errorf("invoke failed with status %v", status)
	}

	out := it.interpreter.GetOutputTensor(0)
	data, err := readOutput(out)
	if err != nil {
		return inference.Tensor{}, err
	}

	return inference.Tensor{Data: data, Shape: tensorShape(out)}, nil
}

// Close releases the interpreter, its options and the model.
func (it *Interpreter) Close() error {
	if it.interpreter != nil {
		it.interpreter.Delete()
		it.interpreter = nil
	}
	if it.options != nil {
		it.options.Delete()
		it.options = nil
	}
	if it.model != nil {
		it.model.Delete()
		it.model = nil
	}
	return nil
}

func setInput(t *tflite.Tensor, data []float32) error {
	switch t.Type() {
	case tflite.Float32:
		dst := t.Float32s()
		if len(dst) != len(data) {
			return errors.Errorf("input tensor holds %d values, got %d", len(dst), len(data))
		}
		copy(dst, data)
	case tflite.UInt8:
		dst := t.UInt8s()
		if len(dst) != len(data) {
			return errors.Errorf("input tensor holds %d values, got %d", len(dst), len(data))
		}
		quantize(dst, data, t.QuantizationParams())
	default:
		return errors.Errorf("unsupported input tensor type %v", t.Type())
	}
	return nil
}

func readOutput(t *tflite.Tensor) ([]float32, error) {
	switch t.Type() {
	case tflite.Float32:
		return append([]float32(nil), t.Float32s()...), nil
	case tflite.UInt8:
		return dequantize(t.UInt8s(), t.QuantizationParams()), nil
	default:
		return nil, errors.Errorf("unsupported output tensor type %v", t.Type())
	}
}

func tensorShape(t *tflite.Tensor) []int64 {
	shape := make([]int64, t.NumDims())
	for i := range shape {
		shape[i] = int64(t.Dim(i))
	}
	return shape
}
