package stats

import (
	"fmt"
	"math"
)

// rangeCDF is the distribution of the range of k standard normals.
func rangeCDF(w float64, k int) float64 {
	if w <= 0 {
		return 0
	}
	p := integrate(func(z float64) float64 {
		d := bigPhi(z) - bigPhi(z-w)
		if d <= 0 {
			return 0
		}
		return phi(z) * math.Pow(d, float64(k-1))
	}, -zBound, zBound+w)
	return clamp01(float64(k) * p)
}

// PTukey is the CDF of the studentized range distribution for k means and
// df degrees of freedom.
func PTukey(q float64, k int, df float64) float64 {
	if math.IsNaN(q) || k < 2 || df < 1 {
		return math.NaN()
	}
	if q <= 0 {
		return 0
	}
	if math.IsInf(q, 1) {
		return 1
	}
	return mixOverScale(df, func(s float64) float64 { return rangeCDF(q*s, k) })
}

// QTukey is the quantile function of the studentized range distribution.
func QTukey(p float64, k int, df float64) float64 {
	if k < 2 || df < 1 {
		return math.NaN()
	}
	return quantile(p, func(q float64) float64 { return PTukey(q, k, df) })
}

// Pair is one post-hoc comparison between samples I and J.
type Pair struct {
	I, J int
	// Estimate is mean(J) - mean(I).
	Estimate  float64
	SE        float64
	Statistic float64
	DF        float64
	PValue    float64
	Lower     float64
	Upper     float64
	Reject    bool
}

// TukeyHSD compares every pair i < j of samples with Tukey's honestly
// significant difference test (Tukey-Kramer for unequal sizes).
func TukeyHSD(samples []Sample, alpha float64) ([]Pair, error) {
	if err := checkAlpha(alpha); err != nil {
		return nil, err
	}
	a, err := OneWayANOVA(samples)
	if err != nil {
		return nil, err
	}
	k := len(samples)
	df := float64(a.DFWithin)
	crit := QTukey(1-alpha, k, df)

	means := make([]float64, k)
	for i, s := range samples {
		means[i] = Describe(s.Values).Mean
	}

	pairs := make([]Pair, 0, k*(k-1)/2)
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			ni, nj := float64(len(samples[i].Values)), float64(len(samples[j].Values))
			p := Pair{I: i, J: j, DF: df, Estimate: means[j] - means[i]}
			p.SE = math.Sqrt(a.MSWithin / 2 * (1/ni + 1/nj))
			p.Statistic, p.PValue = studentized(p.Estimate, p.SE, func(q float64) float64 {
				return 1 - PTukey(q, k, df)
			})
			p.Lower = p.Estimate - crit*p.SE
			p.Upper = p.Estimate + crit*p.SE
			p.Reject = p.PValue < alpha
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

// studentized returns |estimate|/se and its upper-tail probability. A zero
// standard error gives an infinite statistic (p = 0) for a non-zero estimate
// and NaN otherwise.
func studentized(estimate, se float64, upper func(float64) float64) (float64, float64) {
	if se == 0 {
		if estimate == 0 {
			return math.NaN(), math.NaN()
		}
		return math.Inf(1), 0
	}
	q := math.Abs(estimate) / se
	return q, clamp01(upper(q))
}

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("alpha %v outside (0, 1)", alpha)
	}
	return nil
}
