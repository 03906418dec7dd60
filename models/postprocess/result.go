// Package postprocess - Postprocessing utilities for models.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// ScoredBox is a decoded box paired with its best class.
type ScoredBox struct {
	// The bounding box in normalized (y1, x1, y2, x2) coordinates.
	Box images.Box `json:"box"`
	// The maximum class probability of the anchor.
	Score float32 `json:"score"`
	// The index of the class holding Score.
	ClassID int `json:"class_id"`
}

// Detection is a ScoredBox that survived suppression.
type Detection struct {
	ScoredBox
}
