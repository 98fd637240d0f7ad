package stats

import (
	"math"

	"gonum.org/v1/gonum/integrate/quad"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// gaussOrder is the number of Gauss-Legendre nodes per panel.
	gaussOrder = 20
	// panels splits every integration range into equal sub-intervals.
	panels = 24
	// infiniteDF is the degrees of freedom above which the pooled standard
	// deviation is treated as exact.
	infiniteDF = 25000
	// zBound truncates integrals over the standard normal density.
	zBound = 8.0
)

var glNodes, glWeights = legendreRule(gaussOrder)

func legendreRule(n int) ([]float64, []float64) {
	x := make([]float64, n)
	w := make([]float64, n)
	quad.Legendre{}.FixedLocations(x, w, -1, 1)
	return x, w
}

// integrate applies the composite Gauss-Legendre rule to f over [lo, hi].
func integrate(f func(float64) float64, lo, hi float64) float64 {
	h := (hi - lo) / panels
	var total float64
	for p := 0; p < panels; p++ {
		a := lo + float64(p)*h
		mid, half := a+h/2, h/2
		var sum float64
		for i, x := range glNodes {
			sum += glWeights[i] * f(mid+half*x)
		}
		total += sum * half
	}
	return total
}

func phi(z float64) float64 { return distuv.UnitNormal.Prob(z) }

func bigPhi(z float64) float64 { return distuv.UnitNormal.CDF(z) }

// logScaleDensity is the log density of s = sqrt(chi2(df)/df), the ratio of
// the pooled standard deviation to sigma.
func logScaleDensity(s, df float64) float64 {
	lg, _ := math.Lgamma(df / 2)
	return df/2*math.Log(df) - lg - (df/2-1)*math.Ln2 + (df-1)*math.Log(s) - df*s*s/2
}

// scaleRange bounds the support of the s density used for integration.
func scaleRange(df float64) (float64, float64) {
	w := 10 / math.Sqrt(df)
	return math.Max(0, 1-w), 1 + w
}

// mixOverScale integrates cdf(s) against the density of s for finite df.
// For df above infiniteDF it returns cdf(1).
func mixOverScale(df float64, cdf func(s float64) float64) float64 {
	if math.IsInf(df, 1) || df > infiniteDF {
		return cdf(1)
	}
	lo, hi := scaleRange(df)
	p := integrate(func(s float64) float64 {
		if s <= 0 {
			return 0
		}
		return math.Exp(logScaleDensity(s, df)) * cdf(s)
	}, lo, hi)
	return clamp01(p)
}

func clamp01(p float64) float64 {
	return math.Max(0, math.Min(1, p))
}

// quantile inverts a monotone CDF on [0, inf) by bisection.
func quantile(p float64, cdf func(float64) float64) float64 {
	if math.IsNaN(p) || p < 0 || p >= 1 {
		return math.NaN()
	}
	if p == 0 {
		return 0
	}
	lo, hi := 0.0, 1.0
	for cdf(hi) < p {
		lo, hi = hi, hi*2
		if hi > 1e6 {
			return math.Inf(1)
		}
	}
	for i := 0; i < 60 && hi-lo > 1e-7; i++ {
		mid := (lo + hi) / 2
		if cdf(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
