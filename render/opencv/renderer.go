// Package opencv - Draws detection overlays with OpenCV.
package opencv

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-detect/controller"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/render"
)

const font = gocv.FontHersheySimplex

// Renderer draws boxes and captions onto the source image.
type Renderer struct {
	style render.Style
}

var _ render.Annotator = (*Renderer)(nil)

// NewRenderer returns a renderer with the given style.
func NewRenderer(style render.Style) *Renderer {
	return &Renderer{style: style}
}

// Annotate draws every detection of result over its source image: a
// translucent fill, an outline, and a caption above the box. The image is
// returned PNG-encoded.
func (r *Renderer) Annotate(result *controller.Result, classes *models.ClassSet) ([]byte, error) {
	if result == nil || result.Source == nil {
		return nil, errors.New("no result to annotate")
	}

	img, err := gocv.ImageToMatRGB(result.Source)
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert image")
	}
	defer img.Close()

	annotations := render.Plan(result, classes)
	if len(annotations) > 0 {
		r.fill(&img, annotations)
	}

	s := r.style
	for _, a := range annotations {
		gocv.Rectangle(&img, a.Box, s.Stroke, s.StrokeWidth)

		size, baseline := gocv.GetTextSizeWithBaseline(a.Caption, font, s.FontScale, s.TextThickness)
		bg, origin := render.CaptionBox(a.Box, size, baseline, s.Padding)
		gocv.Rectangle(&img, bg, s.Stroke, -1)
		gocv.PutText(&img, a.Caption, origin, font, s.FontScale, s.Text, s.TextThickness)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode annotated image")
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}

// fill blends the filled boxes into img at the style's fill opacity.
func (r *Renderer) fill(img *gocv.Mat, annotations []render.Annotation) {
	overlay := img.Clone()
	defer overlay.Close()

	for _, a := range annotations {
		gocv.Rectangle(&overlay, a.Box, r.style.Fill, -1)
	}

	alpha := r.style.FillAlpha
	gocv.AddWeighted(overlay, alpha, *img, 1-alpha, 0, img)
}
