package postprocess

// ExtractScores picks the best class of every anchor.
//
// The class scores of an anchor occupy [4, 4+numClasses) of its row. The
// maximum wins, and ties go to the lowest class index.
//
// Arguments:
//   - raw: The anchor-major model output.
//   - numClasses: The class count C; must be in [1, raw.Stride-4].
//
// Returns:
//   - []float32: The maximum score per anchor.
//   - []int: The argmax class index per anchor.
//   - error: ErrShapeMismatch for a nil output, ErrConfiguration when
//     numClasses does not fit the stride.
func ExtractScores(raw *RawOutput, numClasses int) ([]float32, []int, error) {
	if raw == nil {
		return nil, nil, shapeErrorf("raw output is nil")
	}
	if numClasses < 1 || numClasses > raw.Stride-boxChannels {
		return nil, nil, configErrorf("%d classes do not fit a stride of %d", numClasses, raw.Stride)
	}
	scores := make([]float32, raw.Anchors)
	classes := make([]int, raw.Anchors)
	extractScores(raw, numClasses, scores, classes)
	return scores, classes, nil
}

func extractScores(raw *RawOutput, numClasses int, scores []float32, classes []int) {
	for i := range scores {
		probs := raw.Row(i)[boxChannels : boxChannels+numClasses]

		best := 0
		for c := 1; c < len(probs); c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}

		scores[i] = probs[best]
		classes[i] = best
	}
}
