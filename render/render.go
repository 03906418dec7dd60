// Package render - Annotation layout shared by the image renderers.
package render

import (
	"image"
	"image/color"

	"github.com/nvr-ai/go-detect/controller"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/report"
)

// Annotator draws a detection result onto its source image and encodes it.
type Annotator interface {
	// Annotate returns the annotated source image as PNG bytes.
	Annotate(result *controller.Result, classes *models.ClassSet) ([]byte, error)
}

// Style holds the colours and sizes of the overlay.
type Style struct {
	// Stroke is the box outline and caption background colour.
	Stroke color.RGBA
	// StrokeWidth is the outline thickness in pixels.
	StrokeWidth int
	// Fill is the box interior colour, blended with FillAlpha.
	Fill color.RGBA
	// FillAlpha is the opacity of Fill in [0, 1].
	FillAlpha float64
	// Text is the caption colour.
	Text color.RGBA
	// FontScale scales the caption font.
	FontScale float64
	// TextThickness is the caption stroke thickness.
	TextThickness int
	// Padding surrounds the caption text inside its background.
	Padding int
}

// DefaultStyle is a light blue outline with a translucent fill and dark
// captions on a blue background.
func DefaultStyle() Style {
	return Style{
		Stroke:        color.RGBA{R: 0x60, G: 0xa5, B: 0xfa, A: 0xff},
		StrokeWidth:   2,
		Fill:          color.RGBA{R: 96, G: 165, B: 250, A: 0xff},
		FillAlpha:     0.18,
		Text:          color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff},
		FontScale:     0.5,
		TextThickness: 1,
		Padding:       4,
	}
}

// Annotation is one box to draw, in source-image pixels.
type Annotation struct {
	Box     image.Rectangle
	Caption string
}

// Plan projects every detection of result onto its source image.
func Plan(result *controller.Result, classes *models.ClassSet) []Annotation {
	annotations := make([]Annotation, len(result.Detections))
	for i, d := range result.Detections {
		annotations[i] = Annotation{
			Box:     result.Letterbox.Project(d.Box),
			Caption: report.Caption(classes, d),
		}
	}
	return annotations
}

// CaptionBox places a caption background directly above box, clamped to the
// top edge of the image.
//
// Arguments:
//   - box: The detection box.
//   - text: The rendered text size.
//   - baseline: The descent below the text origin.
//   - pad: The padding around the text.
//
// Returns:
//   - image.Rectangle: The caption background.
//   - image.Point: The text origin (bottom-left of the glyphs).
func CaptionBox(box image.Rectangle, text image.Point, baseline, pad int) (image.Rectangle, image.Point) {
	width := text.X + 2*pad
	height := text.Y + baseline + 2*pad

	top := max(box.Min.Y-height, 0)
	bg := image.Rect(box.Min.X, top, box.Min.X+width, top+height)
	origin := image.Pt(box.Min.X+pad, top+pad+text.Y)
	return bg, origin
}
