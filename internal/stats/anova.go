package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Anova is a one-way analysis of variance table.
type Anova struct {
	SSBetween float64
	SSWithin  float64
	DFBetween int
	DFWithin  int
	MSBetween float64
	MSWithin  float64
	F         float64
	PValue    float64
}

// OneWayANOVA partitions the variance of the samples into between-group and
// within-group sums of squares and tests F = MSB/MSW. It needs two non-empty
// groups and more observations than groups.
func OneWayANOVA(samples []Sample) (Anova, error) {
	if len(samples) < 2 {
		return Anova{}, fmt.Errorf("anova needs at least 2 groups, got %d: %w", len(samples), ErrTooFewGroups)
	}

	total, n := 0.0, 0
	for _, s := range samples {
		if len(s.Values) == 0 {
			return Anova{}, fmt.Errorf("group %q has no values: %w", s.Name, ErrTooFewObservations)
		}
		total += floats.Sum(s.Values)
		n += len(s.Values)
	}
	k := len(samples)
	if n <= k {
		return Anova{}, fmt.Errorf("anova needs more observations (%d) than groups (%d): %w", n, k, ErrTooFewObservations)
	}
	grand := total / float64(n)

	var a Anova
	for _, s := range samples {
		mean := floats.Sum(s.Values) / float64(len(s.Values))
		a.SSBetween += float64(len(s.Values)) * (mean - grand) * (mean - grand)
		for _, v := range s.Values {
			a.SSWithin += (v - mean) * (v - mean)
		}
	}
	a.DFBetween = k - 1
	a.DFWithin = n - k
	a.MSBetween = a.SSBetween / float64(a.DFBetween)
	a.MSWithin = a.SSWithin / float64(a.DFWithin)

	switch {
	case a.MSWithin > 0:
		a.F = a.MSBetween / a.MSWithin
		f := distuv.F{D1: float64(a.DFBetween), D2: float64(a.DFWithin)}
		a.PValue = f.Survival(a.F)
	case a.MSBetween > 0:
		a.F, a.PValue = math.Inf(1), 0
	default:
		a.F, a.PValue = math.NaN(), math.NaN()
	}
	return a, nil
}
