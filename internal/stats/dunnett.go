package stats

import (
	"fmt"
	"math"
)

// dunnettLambdas returns lambda_i = sqrt(n_i/(n_i+n_0)) for every treatment.
// The correlation between the statistics of treatments i and j is
// lambda_i*lambda_j.
func dunnettLambdas(treatments []int, control int) []float64 {
	l := make([]float64, len(treatments))
	for i, n := range treatments {
		l[i] = math.Sqrt(float64(n) / float64(n+control))
	}
	return l
}

// maxAbsNormalCDF is P(max |Z_i| <= c) for standard normals with
// correlations lambda_i*lambda_j, conditioning on the shared component.
func maxAbsNormalCDF(c float64, lambdas []float64) float64 {
	if c <= 0 {
		return 0
	}
	r := make([]float64, len(lambdas))
	for i, l := range lambdas {
		r[i] = math.Sqrt(1 - l*l)
	}
	p := integrate(func(z float64) float64 {
		v := phi(z)
		for i, l := range lambdas {
			d := bigPhi((c-l*z)/r[i]) - bigPhi((-c-l*z)/r[i])
			if d <= 0 {
				return 0
			}
			v *= d
		}
		return v
	}, -zBound, zBound)
	return clamp01(p)
}

// PDunnett is P(max_i |T_i| <= c) for the two-sided many-to-one comparison
// of treatments with sizes treatments against a control of size control.
func PDunnett(c float64, treatments []int, control int, df float64) float64 {
	if math.IsNaN(c) || len(treatments) == 0 || control < 1 || df < 1 {
		return math.NaN()
	}
	if c <= 0 {
		return 0
	}
	if math.IsInf(c, 1) {
		return 1
	}
	lambdas := dunnettLambdas(treatments, control)
	return mixOverScale(df, func(s float64) float64 { return maxAbsNormalCDF(c*s, lambdas) })
}

// QDunnett is the two-sided critical value with P(max |T_i| <= c) = p.
func QDunnett(p float64, treatments []int, control int, df float64) float64 {
	if len(treatments) == 0 || control < 1 || df < 1 {
		return math.NaN()
	}
	return quantile(p, func(c float64) float64 { return PDunnett(c, treatments, control, df) })
}

// Dunnett compares every sample with the control sample using Dunnett's
// single-step procedure. Pairs have I = control and J the treatment, in
// sample order.
func Dunnett(samples []Sample, control int, alpha float64) ([]Pair, error) {
	if err := checkAlpha(alpha); err != nil {
		return nil, err
	}
	if control < 0 || control >= len(samples) {
		return nil, fmt.Errorf("control index %d out of range", control)
	}
	a, err := OneWayANOVA(samples)
	if err != nil {
		return nil, err
	}
	df := float64(a.DFWithin)
	s := math.Sqrt(a.MSWithin)
	n0 := len(samples[control].Values)
	m0 := Describe(samples[control].Values).Mean

	sizes := make([]int, 0, len(samples)-1)
	for i, smp := range samples {
		if i != control {
			sizes = append(sizes, len(smp.Values))
		}
	}
	crit := QDunnett(1-alpha, sizes, n0, df)

	pairs := make([]Pair, 0, len(sizes))
	for j, smp := range samples {
		if j == control {
			continue
		}
		nj := len(smp.Values)
		p := Pair{I: control, J: j, DF: df, Estimate: Describe(smp.Values).Mean - m0}
		p.SE = s * math.Sqrt(1/float64(nj)+1/float64(n0))
		p.Statistic, p.PValue = studentized(p.Estimate, p.SE, func(t float64) float64 {
			return 1 - PDunnett(t, sizes, n0, df)
		})
		if p.Estimate < 0 {
			p.Statistic = -p.Statistic
		}
		p.Lower = p.Estimate - crit*p.SE
		p.Upper = p.Estimate + crit*p.SE
		p.Reject = p.PValue < alpha
		pairs = append(pairs, p)
	}
	return pairs, nil
}
