package postprocess

// anchor is one row of a hand-built raw output.
type anchor struct {
	cx, cy, w, h float32
	scores       []float32
}

// newAnchorMajor packs anchors into an anchor-major RawOutput.
func newAnchorMajor(numClasses int, anchors ...anchor) *RawOutput {
	stride := boxChannels + numClasses
	data := make([]float32, 0, len(anchors)*stride)
	for _, a := range anchors {
		data = append(data, a.cx, a.cy, a.w, a.h)
		data = append(data, a.scores...)
	}
	return &RawOutput{Data: data, Anchors: len(anchors), Stride: stride}
}
