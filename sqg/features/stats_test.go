package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := summarize([]float64{2, 4, 6})
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.0, s.Mean, 1e-9)
	assert.InDelta(t, 2.0, s.StdDev, 1e-9)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 6.0, s.Max)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, SegmentStats{}, summarize(nil))
}

func TestSummarizeSingleValue(t *testing.T) {
	s := summarize([]float64{7})
	assert.Equal(t, 1, s.Count)
	assert.Equal(t, 7.0, s.Mean)
	assert.Equal(t, 7.0, s.Min)
	assert.Equal(t, 7.0, s.Max)
	// Sample deviation of one value is undefined.
	assert.True(t, math.IsNaN(s.StdDev))
}

func TestComputeLengthStats(t *testing.T) {
	stats := computeLengthStats([]float64{3, 5}, []float64{1, 1}, []float64{10, 20}, 12)
	assert.Equal(t, 12, stats.Features)
	assert.Equal(t, 2, stats.Query.Count)
	assert.InDelta(t, 4.0, stats.Query.Mean, 1e-9)
	assert.Equal(t, 1.0, stats.Answer.Max)
	assert.Equal(t, 20.0, stats.Doc.Max)
}
