package stats

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooFewGroups is returned when a test needs more groups than given.
	ErrTooFewGroups = errors.New("too few groups")

	// ErrTooFewObservations is returned when a sample is too small for the
	// variance estimate a test relies on.
	ErrTooFewObservations = errors.New("too few observations")
)

// Sample is one group's observations.
type Sample struct {
	Name   string
	Values []float64
}

// Descriptive summarises a sample. SD uses the n-1 denominator; SD and SE
// are NaN for fewer than two values, Mean is NaN for an empty sample.
type Descriptive struct {
	N    int
	Mean float64
	SD   float64
	SE   float64
}

// Describe computes the descriptive statistics of x.
func Describe(x []float64) Descriptive {
	d := Descriptive{N: len(x), Mean: math.NaN(), SD: math.NaN(), SE: math.NaN()}
	switch len(x) {
	case 0:
		return d
	case 1:
		d.Mean = x[0]
		return d
	}
	d.Mean, d.SD = stat.MeanStdDev(x, nil)
	d.SE = d.SD / math.Sqrt(float64(len(x)))
	return d
}

// Stars codes a p-value: *** below 0.001, ** below 0.01, * below 0.05 and
// ns otherwise. NaN yields the empty string.
func Stars(p float64) string {
	switch {
	case math.IsNaN(p):
		return ""
	case p < 0.001:
		return "***"
	case p < 0.01:
		return "**"
	case p < 0.05:
		return "*"
	}
	return "ns"
}
