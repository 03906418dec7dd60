// Package model - Runtime options for the inference engines.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/
package model

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Provider selects the ONNX Runtime execution provider.
type Provider string

const (
	// ProviderCPU uses the default CPU execution provider.
	ProviderCPU Provider = "cpu"
	// ProviderCoreML uses Apple CoreML for macOS acceleration.
	ProviderCoreML Provider = "coreml"
	// ProviderCUDA uses NVIDIA CUDA for GPU acceleration.
	ProviderCUDA Provider = "cuda"
	// ProviderOpenVINO uses Intel OpenVINO for CPU/GPU optimization.
	ProviderOpenVINO Provider = "openvino"
)

// RuntimeOptions tune the native runtime behind an engine.
type RuntimeOptions struct {
	// LibraryPath overrides the location of the native runtime library
	// (onnxruntime shared object). Empty selects the platform default.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Threads is the intra-op thread count. Zero lets the runtime decide.
	Threads int `json:"threads" yaml:"threads"`
	// Provider is the ONNX Runtime execution provider. Ignored by TFLite.
	Provider Provider `json:"provider" yaml:"provider"`
}

// Validate checks the thread count and provider.
func (o RuntimeOptions) Validate() error {
	if o.Threads < 0 {
		return configErrorf("runtime.threads must not be negative, got %d", o.Threads)
	}
	switch o.Provider {
	case ProviderCPU, ProviderCoreML, ProviderCUDA, ProviderOpenVINO:
		return nil
	default:
		return configErrorf("unknown runtime.provider %q", o.Provider)
	}
}

func configErrorf(format string, args ...interface{}) error {
	return errors.Wrapf(postprocess.ErrConfiguration, format, args...)
}
