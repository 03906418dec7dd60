// Package models - Class label sets for detection models.
package models

import (
	"fmt"

	"github.com/pkg/errors"
)

// DefaultClasses is the label list of the bundled desk-objects model, in
// model output order.
var DefaultClasses = []string{
	"cpu",
	"mesa",
	"mouse",
	"nada",
	"pantalla",
	"silla",
	"teclado",
}

// ClassSet maps model class indices to human-readable labels.
type ClassSet struct {
	// Names in model output order.
	names []string
	// nameToIdx for fast lookup by name
	nameToIdx map[string]int
}

// NewClassSet builds a ClassSet from an ordered label list.
//
// Arguments:
// - names: The labels in model output order. Must be non-empty and unique.
//
// Returns:
// - The class set.
// - error if the list is empty or holds a duplicate.
//
// @example
// set, err := NewClassSet(models.DefaultClasses)
func NewClassSet(names []string) (*ClassSet, error) {
	if len(names) == 0 {
		return nil, errors.New("class list is empty")
	}

	set := &ClassSet{
		names:     append([]string(nil), names...),
		nameToIdx: make(map[string]int, len(names)),
	}
	for i, name := range names {
		if _, ok := set.nameToIdx[name]; ok {
			return nil, errors.Errorf("class %q is listed twice", name)
		}
		set.nameToIdx[name] = i
	}
	return set, nil
}

// Len returns the class count.
func (s *ClassSet) Len() int {
	return len(s.names)
}

// Names returns a copy of the labels in model output order.
func (s *ClassSet) Names() []string {
	return append([]string(nil), s.names...)
}

// Label returns the label for a class index, or "cls_<idx>" when the index is
// outside the set.
func (s *ClassSet) Label(idx int) string {
	if idx < 0 || idx >= len(s.names) {
		return fmt.Sprintf("cls_%d", idx)
	}
	return s.names[idx]
}

// Index returns the class index for a label.
func (s *ClassSet) Index(name string) (int, error) {
	idx, ok := s.nameToIdx[name]
	if !ok {
		return -1, errors.Errorf("class %q not found", name)
	}
	return idx, nil
}
