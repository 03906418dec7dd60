package onnx

import (
	"os"
	"runtime"

	"github.com/pkg/errors"
)

// SharedLibPath returns the onnxruntime shared library to load: the
// configured override if set, else ONNXRUNTIME_LIB, else the bundled
// third_party build for the current platform.
//
// Arguments:
//   - override: The configured library path, may be empty.
//
// Returns:
//   - string: The path to the shared library.
//   - error: An error if the platform has no bundled build.
func SharedLibPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	if env := os.Getenv("ONNXRUNTIME_LIB"); env != "" {
		return env, nil
	}
	return defaultLibPath(runtime.GOOS, runtime.GOARCH)
}

func defaultLibPath(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "third_party/onnxruntime.dll", nil
	case goos == "darwin":
		return "third_party/libonnxruntime.1.23.0.dylib", nil
	case goos == "linux" && goarch == "arm64":
		return "third_party/onnxruntime_arm64.so", nil
	case goos == "linux":
		return "third_party/onnxruntime.so", nil
	default:
		return "", errors.Errorf("no onnxruntime library for %s/%s", goos, goarch)
	}
}
