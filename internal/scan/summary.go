package scan

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/arcline-data/lidard/internal/ld06"
)

// Summary carries per-rotation aggregate statistics. Distances are in
// millimetres, coverage in degrees of angular travel.
type Summary struct {
	SampleCount    int     `json:"sample_count"`
	MinDistance    float64 `json:"min_distance_mm"`
	MeanDistance   float64 `json:"mean_distance_mm"`
	MaxDistance    float64 `json:"max_distance_mm"`
	MeanConfidence float64 `json:"mean_confidence"`
	Coverage       float64 `json:"coverage_deg"`
}

// Summarize computes aggregate statistics over a rotation's samples.
func Summarize(samples []ld06.Sample, coverage float64) Summary {
	s := Summary{
		SampleCount: len(samples),
		Coverage:    coverage,
	}
	if len(samples) == 0 {
		return s
	}

	distances := make([]float64, len(samples))
	confidences := make([]float64, len(samples))
	for i, p := range samples {
		distances[i] = float64(p.Distance)
		confidences[i] = float64(p.Confidence)
	}

	s.MinDistance = floats.Min(distances)
	s.MaxDistance = floats.Max(distances)
	s.MeanDistance = stat.Mean(distances, nil)
	s.MeanConfidence = stat.Mean(confidences, nil)
	return s
}
