// Package model - Model configuration: what to load and how to read its output.
package model

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// EngineType is the runtime that evaluates the model.
type EngineType string

const (
	// EngineONNX evaluates .onnx models with onnxruntime.
	EngineONNX EngineType = "onnx"
	// EngineTFLite evaluates .tflite models with TensorFlow Lite.
	EngineTFLite EngineType = "tflite"
)

// Engines is a list of all supported engines.
var Engines = []EngineType{EngineONNX, EngineTFLite}

// Validate reports whether the engine is one of Engines.
func (e EngineType) Validate() error {
	for _, known := range Engines {
		if e == known {
			return nil
		}
	}
	return configErrorf("unknown engine %q", e)
}

// Config is everything needed to load a detection model and interpret its
// output. It is fixed after startup.
type Config struct {
	// Name identifies the model in logs and status output.
	Name string `json:"name" yaml:"name"`
	// Engine selects the runtime.
	Engine EngineType `json:"engine" yaml:"engine"`
	// Path is the model file.
	Path string `json:"path" yaml:"path"`
	// InputSize is the side of the square model input.
	InputSize int `json:"input_size" yaml:"input_size"`
	// ChannelOrder is the input tensor layout.
	ChannelOrder preprocess.ChannelOrder `json:"channel_order" yaml:"channel_order"`
	// Layout is the memory order of the detection output.
	Layout postprocess.Layout `json:"layout" yaml:"layout"`
	// BoxUnits is the unit of the geometry channels.
	BoxUnits postprocess.BoxUnits `json:"box_units" yaml:"box_units"`
	// Inputs names the model input nodes (ONNX only).
	Inputs []string `json:"inputs" yaml:"inputs"`
	// Outputs names the model output nodes (ONNX only).
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Classes is the ordered class-name list.
	Classes []string `json:"classes" yaml:"classes"`
	// NMS holds the suppression cap and thresholds.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
	// Runtime tunes the native runtime.
	Runtime RuntimeOptions `json:"runtime" yaml:"runtime"`
}

// DefaultConfig returns the configuration of the bundled desk-objects model.
//
// Returns:
//   - Config: A 640x640 YOLOv8 TFLite export with seven classes, at most 50
//     outputs, IoU 0.5 and score 0.25.
func DefaultConfig() Config {
	return Config{
		Name:         "desk-objects",
		Engine:       EngineTFLite,
		Path:         "models/desk-objects.tflite",
		InputSize:    640,
		ChannelOrder: preprocess.ChannelOrderHWC,
		Layout:       postprocess.LayoutChannelMajor,
		BoxUnits:     postprocess.BoxUnitsNormalized,
		Inputs:       []string{"images"},
		Outputs:      []string{"output0"},
		Classes:      append([]string(nil), models.DefaultClasses...),
		NMS:          postprocess.DefaultNMSConfig(),
		Runtime: RuntimeOptions{
			Provider: ProviderCPU,
		},
	}
}

// Load reads a YAML configuration file on top of DefaultConfig.
//
// Fields missing from the file keep their defaults; unknown fields are
// rejected. An empty file yields the defaults.
//
// Arguments:
//   - path: The YAML file to read.
//
// Returns:
//   - Config: The validated configuration.
//   - error: Read or parse errors, or ErrConfiguration from Validate.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to open config %s", path)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a YAML configuration from r on top of DefaultConfig and
// validates the result.
func Decode(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field that can be checked without loading the model.
//
// Returns:
//   - error: ErrConfiguration describing the first bad field, nil otherwise.
func (c Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if c.Path == "" {
		return configErrorf("model path is empty")
	}
	if c.InputSize <= 0 {
		return configErrorf("input_size must be positive, got %d", c.InputSize)
	}
	if err := c.ChannelOrder.Validate(); err != nil {
		return err
	}
	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := c.BoxUnits.Validate(); err != nil {
		return err
	}
	if c.Engine == EngineONNX && (len(c.Inputs) != 1 || len(c.Outputs) != 1) {
		return configErrorf("onnx models need exactly one input and one output name, got %d and %d",
			len(c.Inputs), len(c.Outputs))
	}
	if err := c.PipelineConfig().Validate(); err != nil {
		return err
	}
	return c.Runtime.Validate()
}

// PipelineConfig returns the post-processing settings.
func (c Config) PipelineConfig() postprocess.Config {
	return postprocess.Config{
		Classes: c.Classes,
		NMS:     c.NMS,
	}
}

// PreprocessConfig returns the input tensor settings.
func (c Config) PreprocessConfig() preprocess.Config {
	return preprocess.Config{
		InputSize:    c.InputSize,
		ChannelOrder: c.ChannelOrder,
	}
}
