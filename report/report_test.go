package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

func detection(classID int, score float32) postprocess.Detection {
	return postprocess.Detection{ScoredBox: postprocess.ScoredBox{Score: score, ClassID: classID}}
}

func testClasses(t *testing.T) *models.ClassSet {
	t.Helper()
	set, err := models.NewClassSet(models.DefaultClasses)
	require.NoError(t, err)
	return set
}

func TestCaption(t *testing.T) {
	classes := testClasses(t)

	tests := []struct {
		d        postprocess.Detection
		expected string
	}{
		{detection(2, 0.873), "mouse 87.3%"},
		{detection(0, 1), "cpu 100.0%"},
		{detection(6, 0.25), "teclado 25.0%"},
		{detection(9, 0.5), "cls_9 50.0%"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Caption(classes, tt.d))
	}
}

func TestCounts(t *testing.T) {
	classes := testClasses(t)

	counts := Counts(classes, []postprocess.Detection{
		detection(5, 0.9),
		detection(2, 0.8),
		detection(5, 0.7),
		detection(11, 0.6),
		detection(2, 0.5),
		detection(5, 0.4),
	})

	assert.Equal(t, []Count{
		{Label: "silla", Count: 3},
		{Label: "mouse", Count: 2},
		{Label: "cls_11", Count: 1},
	}, counts)

	assert.Equal(t, []Count{}, Counts(classes, nil))
}

func TestSummarize(t *testing.T) {
	classes := testClasses(t)
	summary := Summarize(classes, []postprocess.Detection{detection(1, 0.5), detection(1, 0.4)})

	require.Len(t, summary.Items, 2)
	assert.Equal(t, "mesa", summary.Items[0].Label)
	assert.Equal(t, "mesa 40.0%", summary.Items[1].Caption)
	assert.Equal(t, []Count{{Label: "mesa", Count: 2}}, summary.Counts)
}

func TestWriteCounts(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCounts(&buf, []Count{{"silla", 3}, {"mouse", 12}}))
	assert.Equal(t, "LABEL  COUNT\nsilla  3\nmouse  12\n", buf.String())

	buf.Reset()
	require.NoError(t, WriteCounts(&buf, nil))
	assert.Equal(t, EmptyMessage+"\n", buf.String())
}
