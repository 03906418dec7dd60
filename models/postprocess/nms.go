// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// MaxOutputs caps the number of selected boxes.
	MaxOutputs int `json:"max_outputs" yaml:"max_outputs"`
	// IoUThreshold suppresses candidates overlapping a selected box at or above it.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ScoreThreshold discards candidates scoring below it.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
}

// DefaultNMSConfig returns the thresholds the detector ships with.
//
// Returns:
//   - NMSConfig: At most 50 outputs, IoU 0.5, score 0.25.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		MaxOutputs:     50,
		IoUThreshold:   0.5,
		ScoreThreshold: 0.25,
	}
}

// Validate checks the ranges: MaxOutputs > 0, IoUThreshold in (0, 1] and
// ScoreThreshold in [0, 1].
//
// Returns:
//   - error: ErrConfiguration describing the first bad field, nil otherwise.
func (c NMSConfig) Validate() error {
	if c.MaxOutputs <= 0 {
		return configErrorf("max_outputs must be positive, got %d", c.MaxOutputs)
	}
	if !(c.IoUThreshold > 0 && c.IoUThreshold <= 1) {
		return configErrorf("iou_threshold must be in (0, 1], got %v", c.IoUThreshold)
	}
	if !(c.ScoreThreshold >= 0 && c.ScoreThreshold <= 1) {
		return configErrorf("score_threshold must be in [0, 1], got %v", c.ScoreThreshold)
	}
	return nil
}

// NonMaxSuppression selects a bounded set of high-scoring, non-overlapping
// boxes with greedy single-class NMS.
//
// Class identity is ignored: overlap between any two boxes counts. Candidates
// below the score threshold are dropped, the rest are visited by descending
// score (ties by ascending index), and each selected box removes every later
// candidate whose IoU with it reaches the IoU threshold.
//
// Arguments:
//   - boxes: The decoded boxes, one per anchor.
//   - scores: The score of each box; must have the same length as boxes.
//   - config: The output cap and thresholds.
//
// Returns:
//   - []int: The selected indices in selection order, at most config.MaxOutputs.
//   - error: ErrConfiguration for invalid thresholds or mismatched lengths.
func NonMaxSuppression(boxes []images.Box, scores []float32, config NMSConfig) ([]int, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if len(boxes) != len(scores) {
		return nil, errors.Wrapf(ErrConfiguration, "got %d boxes but %d scores", len(boxes), len(scores))
	}

	var s suppressor
	return s.run(boxes, scores, config, nil), nil
}

// suppressor keeps the candidate buffers between runs so a pooled workspace
// can reuse them.
type suppressor struct {
	order      []int
	suppressed []bool
}

func (s *suppressor) run(boxes []images.Box, scores []float32, config NMSConfig, dst []int) []int {
	s.order = s.order[:0]
	for i, score := range scores {
		// Written as a positive test so NaN scores are discarded too.
		if score >= config.ScoreThreshold {
			s.order = append(s.order, i)
		}
	}

	order := s.order
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	if cap(s.suppressed) < len(order) {
		s.suppressed = make([]bool, len(order))
	}
	suppressed := s.suppressed[:len(order)]
	clear(suppressed)

	selected := dst[:0]
	for i, idx := range order {
		if suppressed[i] {
			continue
		}

		selected = append(selected, idx)
		if len(selected) == config.MaxOutputs {
			break
		}

		anchor := boxes[idx]
		for j := i + 1; j < len(order); j++ {
			if suppressed[j] {
				continue
			}
			if images.CalculateIoU(anchor, boxes[order[j]]) >= config.IoUThreshold {
				suppressed[j] = true
			}
		}
	}

	return selected
}
