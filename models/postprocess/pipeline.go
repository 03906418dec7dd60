package postprocess

import (
	"sync"

	"github.com/nvr-ai/go-detect/images"
)

// Config configures a detection Pipeline.
type Config struct {
	// Classes is the ordered class-name list. Its length is the class count C.
	Classes []string `json:"classes" yaml:"classes"`
	// NMS holds the suppression cap and thresholds.
	NMS NMSConfig `json:"nms" yaml:"nms"`
}

// Validate checks that there is at least one class and that NMS is valid.
func (c Config) Validate() error {
	if len(c.Classes) == 0 {
		return configErrorf("class list is empty")
	}
	return c.NMS.Validate()
}

// Pipeline turns one raw model output into the final detection list:
// decode geometry, extract scores, suppress, assemble.
//
// A Pipeline holds no per-run state and may be shared between goroutines.
// Working buffers are borrowed from an internal pool for the length of one
// Run and handed back on every return path.
type Pipeline struct {
	numClasses int
	nms        NMSConfig
	workspaces sync.Pool
}

// workspace is the per-invocation arena of a Run.
type workspace struct {
	boxes      []images.Box
	scores     []float32
	classes    []int
	selected   []int
	suppressor suppressor
}

func (w *workspace) resize(n int) {
	if cap(w.boxes) < n {
		w.boxes = make([]images.Box, n)
		w.scores = make([]float32, n)
		w.classes = make([]int, n)
	}
	w.boxes = w.boxes[:n]
	w.scores = w.scores[:n]
	w.classes = w.classes[:n]
}

// NewPipeline validates the configuration and builds a Pipeline.
//
// Arguments:
//   - config: The class list and NMS settings.
//
// Returns:
//   - *Pipeline: The ready pipeline.
//   - error: ErrConfiguration if the class list is empty or NMS is invalid.
func NewPipeline(config Config) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Pipeline{
		numClasses: len(config.Classes),
		nms:        config.NMS,
		workspaces: sync.Pool{
			New: func() interface{} {
				return new(workspace)
			},
		},
	}, nil
}

// NumClasses returns the class count C the pipeline expects.
func (p *Pipeline) NumClasses() int {
	return p.numClasses
}

// NMS returns the suppression settings of the pipeline.
func (p *Pipeline) NMS() NMSConfig {
	return p.nms
}

// Run post-processes one raw output.
//
// Arguments:
//   - raw: The anchor-major output; Stride must equal 4 + C.
//
// Returns:
//   - []Detection: The surviving detections in selection order. Empty, not
//     nil, when the output has no anchors or nothing survives.
//   - error: ErrShapeMismatch for nil or malformed output.
func (p *Pipeline) Run(raw *RawOutput) ([]Detection, error) {
	if raw == nil {
		return nil, shapeErrorf("raw output is nil")
	}
	if raw.Stride != boxChannels+p.numClasses {
		return nil, shapeErrorf("last dimension is %d, expected 4 + %d classes", raw.Stride, p.numClasses)
	}
	if raw.Anchors < 0 || len(raw.Data) != raw.Anchors*raw.Stride {
		return nil, shapeErrorf("%d anchors of stride %d need %d values, got %d",
			raw.Anchors, raw.Stride, raw.Anchors*raw.Stride, len(raw.Data))
	}
	if raw.Anchors == 0 {
		return []Detection{}, nil
	}

	ws := p.workspaces.Get().(*workspace)
	defer p.workspaces.Put(ws)

	ws.resize(raw.Anchors)
	decodeBoxes(raw, ws.boxes)
	extractScores(raw, p.numClasses, ws.scores, ws.classes)
	ws.selected = ws.suppressor.run(ws.boxes, ws.scores, p.nms, ws.selected)

	detections := make([]Detection, len(ws.selected))
	for k, idx := range ws.selected {
		detections[k] = Detection{ScoredBox{
			Box:     ws.boxes[idx],
			Score:   ws.scores[idx],
			ClassID: ws.classes[idx],
		}}
	}

	return detections, nil
}
