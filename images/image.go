// Package images - Image definition for processing utilities.
package images

import (
	"bytes"
	"image"
	// Register decoders for the formats accepted by DecodeConfig and Decode.
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
)

// ImageFormat represents supported image formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
)

// ErrUnsupportedFormat is returned for payloads that are neither JPEG nor PNG.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Image represents an encoded image with a format, data, width, and height.
type Image struct {
	// The format of the image.
	Format ImageFormat `json:"format" yaml:"format"`
	// The data of the image.
	Data []byte `json:"data" yaml:"data"`
	// The width of the image.
	Width int `json:"width" yaml:"width"`
	// The height of the image.
	Height int `json:"height" yaml:"height"`
}

// NewImage sniffs the encoded payload and fills in its format and dimensions
// without decoding the pixels.
//
// Arguments:
//   - data: The encoded JPEG or PNG bytes.
//
// Returns:
//   - *Image: The image descriptor that owns data.
//   - error: ErrUnsupportedFormat, or a wrapped decoder error for corrupt headers.
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, errors.New("image data is empty")
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, ErrUnsupportedFormat
		}
		return nil, errors.Wrap(err, "failed to read image header")
	}

	var format ImageFormat
	switch name {
	case "jpeg":
		format = FormatJPEG
	case "png":
		format = FormatPNG
	default:
		return nil, errors.Wrapf(ErrUnsupportedFormat, "format %q", name)
	}

	return &Image{
		Format: format,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// Decode decodes the pixels of the image.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if the payload cannot be decoded.
func (i *Image) Decode() (image.Image, error) {
	if i == nil || len(i.Data) == 0 {
		return nil, errors.New("image data is empty")
	}
	decoded, _, err := image.Decode(bytes.NewReader(i.Data))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s image", i.Format)
	}
	return decoded, nil
}
