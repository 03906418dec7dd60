package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassSetLabel(t *testing.T) {
	set, err := NewClassSet(DefaultClasses)
	require.NoError(t, err)

	tests := []struct {
		idx      int
		expected string
	}{
		{0, "cpu"},
		{3, "nada"},
		{6, "teclado"},
		{7, "cls_7"},
		{-1, "cls_-1"},
		{42, "cls_42"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, set.Label(tt.idx), "index %d", tt.idx)
	}
}

func TestClassSetIndex(t *testing.T) {
	set, err := NewClassSet([]string{"person", "car"})
	require.NoError(t, err)

	idx, err := set.Index("car")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	idx, err = set.Index("truck")
	assert.Error(t, err)
	assert.Equal(t, -1, idx)
}

func TestNewClassSetRejects(t *testing.T) {
	_, err := NewClassSet(nil)
	assert.Error(t, err)

	_, err = NewClassSet([]string{"a", "b", "a"})
	assert.Error(t, err)
}

func TestClassSetCopiesNames(t *testing.T) {
	names := []string{"a", "b"}
	set, err := NewClassSet(names)
	require.NoError(t, err)

	names[0] = "z"
	assert.Equal(t, "a", set.Label(0))

	out := set.Names()
	out[1] = "z"
	assert.Equal(t, "b", set.Label(1))
	assert.Equal(t, 2, set.Len())
}
