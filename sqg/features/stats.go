package features

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SegmentStats summarizes one token-length distribution across a run.
type SegmentStats struct {
	Count  int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
}

// LengthStats aggregates the per-segment length distributions of a conversion
// run. Useful for spotting budget pressure before training rejects records.
type LengthStats struct {
	Query    SegmentStats
	Answer   SegmentStats
	Doc      SegmentStats
	Features int
}

func summarize(values []float64) SegmentStats {
	if len(values) == 0 {
		return SegmentStats{}
	}
	return SegmentStats{
		Count:  len(values),
		Mean:   stat.Mean(values, nil),
		StdDev: stat.StdDev(values, nil),
		Min:    floats.Min(values),
		Max:    floats.Max(values),
	}
}

func computeLengthStats(queryLens, answerLens, docLens []float64, features int) LengthStats {
	return LengthStats{
		Query:    summarize(queryLens),
		Answer:   summarize(answerLens),
		Doc:      summarize(docLens),
		Features: features,
	}
}
