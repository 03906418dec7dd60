// Package onnx - ONNX Runtime backend for the inference engine.
package onnx

import (
	"context"
	log "log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-detect/inference"
	"github.com/nvr-ai/go-detect/models/model"
)

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment loads the native library and prepares the ORT environment.
// Required once per process.
func initEnvironment(libPath string) error {
	envOnce.Do(func() {
		if _, err := os.Stat(libPath); err != nil {
			envErr = errors.Wrapf(err, "onnxruntime library not found at %s", libPath)
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			envErr = errors.Wrap(err, "error initializing ORT environment")
		}
	})
	return envErr
}

// Session is an onnxruntime session bound to one model file.
type Session struct {
	session *ort.DynamicAdvancedSession
}

var _ inference.Backend = (*Session)(nil)

// Open creates a session for cfg.Path. It matches inference.Opener.
//
// Order of operations:
//  1. Library path resolution and environment setup.
//  2. Session options: threading, graph optimization, execution provider.
//  3. Session creation bound to the configured input and output names.
//
// Output tensors are allocated by the runtime on every Run, so models with
// dynamic anchor counts are supported.
//
// Arguments:
//   - cfg: The model configuration.
//
// Returns:
//   - inference.Backend: The session.
//   - error: An error if the library, options or model cannot be loaded.
func Open(cfg model.Config) (inference.Backend, error) {
	libPath, err := SharedLibPath(cfg.Runtime.LibraryPath)
	if err != nil {
		return nil, err
	}
	if err := initEnvironment(libPath); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(cfg.Runtime.Threads); err != nil {
		return nil, errors.Wrap(err, "error setting intra-op threads")
	}
	if err := options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended); err != nil {
		return nil, errors.Wrap(err, "error setting graph optimization level")
	}
	if err := appendProvider(options, cfg.Runtime.Provider); err != nil {
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.Path, cfg.Inputs, cfg.Outputs, options)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", cfg.Path)
	}

	log.Debug("onnx session created",
		"path", cfg.Path,
		"library", libPath,
		"provider", cfg.Runtime.Provider,
		"inputs", cfg.Inputs,
		"outputs", cfg.Outputs,
	)

	return &Session{session: session}, nil
}

// appendProvider enables the configured execution provider.
func appendProvider(options *ort.SessionOptions, provider model.Provider) error {
	switch provider {
	case model.ProviderCPU, "":
		return nil
	case model.ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "error enabling CoreML")
		}
	case model.ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "error enabling CUDA")
		}
	case model.ProviderOpenVINO:
		if err := options.AppendExecutionProviderOpenVINO(map[string]string{}); err != nil {
			return errors.Wrap(err, "error enabling OpenVINO")
		}
	default:
		return errors.Errorf("unsupported execution provider %q", provider)
	}
	return nil
}

// Run evaluates the model on one input tensor.
func (s *Session) Run(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	if s.session == nil {
		return inference.Tensor{}, inference.ErrModelNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return inference.Tensor{}, err
	}

	in, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return inference.Tensor{}, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	outputs := []ort.Value{nil}
	if err := s.session.Run([]ort.Value{in}, outputs); err != nil {
		return inference.Tensor{}, errors.Wrap(err, "error running ORT session")
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return inference.Tensor{}, errors.Errorf("unexpected output type %T", outputs[0])
	}

	// The runtime owns the output memory; copy it out before Destroy.
	return inference.Tensor{
		Data:  append([]float32(nil), out.GetData()...),
		Shape: append([]int64(nil), out.GetShape()...),
	}, nil
}

// Close releases the resources associated with the Session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}
