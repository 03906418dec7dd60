// Package preprocess - Turns encoded images into model input tensors.
package preprocess

import (
	"image"
	"image/color"
	"image/draw"
	log "log/slog"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// ChannelOrder defines the ordering of image channels in the input tensor.
type ChannelOrder string

const (
	// ChannelOrderHWC is Height-Width-Channel ordering, [1, H, W, 3] (TFLite exports).
	ChannelOrderHWC ChannelOrder = "hwc"
	// ChannelOrderCHW is Channel-Height-Width ordering, [1, 3, H, W] (ONNX exports).
	ChannelOrderCHW ChannelOrder = "chw"
)

// Validate reports whether the order is one of the known constants.
func (o ChannelOrder) Validate() error {
	switch o {
	case ChannelOrderHWC, ChannelOrderCHW:
		return nil
	default:
		return errors.Wrapf(postprocess.ErrConfiguration, "unknown channel order %q", o)
	}
}

// Config defines preprocessing configuration for a model.
type Config struct {
	// InputSize is the side of the square model input.
	InputSize int
	// ChannelOrder defines the tensor layout.
	ChannelOrder ChannelOrder
	// Background is the letterbox padding colour (default black).
	Background color.Color
}

// Letterbox records how a source image was fitted onto the model canvas.
type Letterbox struct {
	// SourceWidth is the width of the original image.
	SourceWidth int `json:"source_width"`
	// SourceHeight is the height of the original image.
	SourceHeight int `json:"source_height"`
	// InputSize is the side of the square canvas.
	InputSize int `json:"input_size"`
	// Scale is the factor from source pixels to canvas pixels.
	Scale float64 `json:"scale"`
	// PadLeft is the horizontal offset of the scaled image on the canvas.
	PadLeft int `json:"pad_left"`
	// PadTop is the vertical offset of the scaled image on the canvas.
	PadTop int `json:"pad_top"`
}

// Project maps a box from normalized canvas coordinates onto source pixels,
// clipped to the source bounds.
//
// Arguments:
// - box: The detection box in canvas fractions.
//
// Returns:
// - The box in source-image pixels.
func (l Letterbox) Project(box images.Box) image.Rectangle {
	unmap := func(v float32, pad, limit int) int {
		p := (float64(v)*float64(l.InputSize) - float64(pad)) / l.Scale
		return int(math.Round(math.Max(0, math.Min(p, float64(limit)))))
	}

	c := box.Canon()
	return image.Rect(
		unmap(c.X1, l.PadLeft, l.SourceWidth),
		unmap(c.Y1, l.PadTop, l.SourceHeight),
		unmap(c.X2, l.PadLeft, l.SourceWidth),
		unmap(c.Y2, l.PadTop, l.SourceHeight),
	)
}

// Result contains the preprocessed tensor and the letterbox that produced it.
type Result struct {
	// Data is the float32 tensor scaled to [0, 1].
	Data []float32
	// Shape is [1, H, W, 3] or [1, 3, H, W].
	Shape []int64
	// Letterbox describes the mapping back to the source image.
	Letterbox Letterbox
}

// Preprocessor handles image preprocessing for detection models.
type Preprocessor struct {
	config Config
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
// - config: The input size and channel order of the model.
//
// Returns:
// - A configured Preprocessor instance.
// - error wrapping postprocess.ErrConfiguration for a bad size or order.
//
// @example
//
//	preprocessor, err := NewPreprocessor(Config{
//	    InputSize:    640,
//	    ChannelOrder: ChannelOrderHWC,
//	})
func NewPreprocessor(config Config) (*Preprocessor, error) {
	if config.InputSize <= 0 {
		return nil, errors.Wrapf(postprocess.ErrConfiguration, "input size must be positive, got %d", config.InputSize)
	}
	if err := config.ChannelOrder.Validate(); err != nil {
		return nil, err
	}
	if config.Background == nil {
		config.Background = color.Black
	}

	return &Preprocessor{config: config}, nil
}

// Preprocess decodes an encoded image and converts it into a model tensor.
//
// Arguments:
// - img: The encoded input image.
//
// Returns:
// - Result containing the tensor and letterbox.
// - error if the image is missing or cannot be decoded.
func (p *Preprocessor) Preprocess(img *images.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}

	decoded, err := img.Decode()
	if err != nil {
		return nil, errors.Wrap(err, "image decoding failed")
	}

	return p.PreprocessImage(decoded)
}

// PreprocessImage converts an already decoded image into a model tensor.
//
// The image is contain-fitted and centred on a square canvas of InputSize,
// padded with the background colour, and each channel is scaled to [0, 1].
//
// Arguments:
// - img: The decoded input image.
//
// Returns:
// - Result containing the tensor and letterbox.
// - error if the image has no pixels.
func (p *Preprocessor) PreprocessImage(img image.Image) (*Result, error) {
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, errors.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	canvas, lb := p.letterbox(img)
	log.Debug("letterboxed image",
		"source", bounds.Size().String(),
		"input_size", lb.InputSize,
		"scale", lb.Scale,
		"pad_left", lb.PadLeft,
		"pad_top", lb.PadTop,
	)

	return &Result{
		Data:      p.toTensor(canvas),
		Shape:     p.shape(),
		Letterbox: lb,
	}, nil
}

// letterbox resizes the image to fit the canvas while keeping its aspect ratio.
func (p *Preprocessor) letterbox(img image.Image) (*image.RGBA, Letterbox) {
	size := p.config.InputSize
	bounds := img.Bounds()
	srcWidth, srcHeight := bounds.Dx(), bounds.Dy()

	scale := math.Min(float64(size)/float64(srcWidth), float64(size)/float64(srcHeight))
	newWidth := max(1, int(math.Round(float64(srcWidth)*scale)))
	newHeight := max(1, int(math.Round(float64(srcHeight)*scale)))

	padLeft := (size - newWidth) / 2
	padTop := (size - newHeight) / 2

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{p.config.Background}, image.Point{}, draw.Src)

	resized := resize.Resize(uint(newWidth), uint(newHeight), img, resize.Lanczos3)
	draw.Draw(canvas, image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
		resized, resized.Bounds().Min, draw.Over)

	return canvas, Letterbox{
		SourceWidth:  srcWidth,
		SourceHeight: srcHeight,
		InputSize:    size,
		Scale:        scale,
		PadLeft:      padLeft,
		PadTop:       padTop,
	}
}

// toTensor converts the canvas into a float32 tensor in the configured order.
func (p *Preprocessor) toTensor(canvas *image.RGBA) []float32 {
	size := p.config.InputSize
	plane := size * size
	tensor := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+size*4]
		for x := 0; x < size; x++ {
			r := float32(row[x*4]) / 255
			g := float32(row[x*4+1]) / 255
			b := float32(row[x*4+2]) / 255

			if p.config.ChannelOrder == ChannelOrderCHW {
				i := y*size + x
				tensor[i] = r
				tensor[plane+i] = g
				tensor[2*plane+i] = b
			} else {
				i := (y*size + x) * 3
				tensor[i] = r
				tensor[i+1] = g
				tensor[i+2] = b
			}
		}
	}

	return tensor
}

func (p *Preprocessor) shape() []int64 {
	size := int64(p.config.InputSize)
	if p.config.ChannelOrder == ChannelOrderCHW {
		return []int64{1, 3, size, size}
	}
	return []int64{1, size, size, 3}
}
