// Package report - Human-readable summaries of detection results.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// EmptyMessage is printed when no detection survived.
const EmptyMessage = "No objects detected above the threshold."

// Caption formats a detection as "<label> <score>%" with one decimal.
func Caption(classes *models.ClassSet, d postprocess.Detection) string {
	return fmt.Sprintf("%s %.1f%%", classes.Label(d.ClassID), d.Score*100)
}

// Count is the number of detections of one label.
type Count struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Counts tallies detections per label, in the order each label is first seen.
func Counts(classes *models.ClassSet, detections []postprocess.Detection) []Count {
	counts := []Count{}
	index := make(map[string]int)
	for _, d := range detections {
		label := classes.Label(d.ClassID)
		i, ok := index[label]
		if !ok {
			i = len(counts)
			index[label] = i
			counts = append(counts, Count{Label: label})
		}
		counts[i].Count++
	}
	return counts
}

// Item is one detection in display form.
type Item struct {
	Label     string                `json:"label"`
	Caption   string                `json:"caption"`
	Detection postprocess.Detection `json:"detection"`
}

// Summary is the display form of one run.
type Summary struct {
	Items  []Item  `json:"items"`
	Counts []Count `json:"counts"`
}

// Summarize builds the display form of a detection list.
func Summarize(classes *models.ClassSet, detections []postprocess.Detection) Summary {
	items := make([]Item, len(detections))
	for i, d := range detections {
		items[i] = Item{
			Label:     classes.Label(d.ClassID),
			Caption:   Caption(classes, d),
			Detection: d,
		}
	}
	return Summary{Items: items, Counts: Counts(classes, detections)}
}

// WriteCounts prints the per-label table, or EmptyMessage.
func WriteCounts(w io.Writer, counts []Count) error {
	if len(counts) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tCOUNT")
	for _, c := range counts {
		fmt.Fprintf(tw, "%s\t%d\n", c.Label, c.Count)
	}
	return tw.Flush()
}
