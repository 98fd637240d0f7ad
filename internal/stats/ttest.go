package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// TTest is the result of a two-sample t-test.
type TTest struct {
	// Estimate is mean(b) - mean(a).
	Estimate  float64
	Statistic float64
	DF        float64
	PValue    float64
	// Lower and Upper bound the confidence interval of Estimate.
	Lower float64
	Upper float64
}

// WelchTTest runs a two-sided Welch t-test of a against b, with the
// Welch-Satterthwaite degrees of freedom. The statistic is computed as
// (mean(a)-mean(b))/se. When both variances are zero the statistic is ±Inf
// with p = 0 if the means differ and NaN otherwise.
func WelchTTest(a, b []float64, alpha float64) (TTest, error) {
	if err := checkAlpha(alpha); err != nil {
		return TTest{}, err
	}
	if len(a) < 2 || len(b) < 2 {
		return TTest{}, fmt.Errorf("t-test needs at least 2 values per group, got %d and %d: %w",
			len(a), len(b), ErrTooFewObservations)
	}

	n1, n2 := float64(len(a)), float64(len(b))
	m1, v1 := stat.MeanVariance(a, nil)
	m2, v2 := stat.MeanVariance(b, nil)
	diff := m1 - m2
	res := TTest{Estimate: m2 - m1}

	e1, e2 := v1/n1, v2/n2
	se := math.Sqrt(e1 + e2)
	if se == 0 {
		res.DF = n1 + n2 - 2
		res.Lower, res.Upper = res.Estimate, res.Estimate
		if diff == 0 {
			res.Statistic, res.PValue = math.NaN(), math.NaN()
			return res, nil
		}
		res.Statistic = math.Inf(int(math.Copysign(1, diff)))
		res.PValue = 0
		return res, nil
	}

	res.Statistic = diff / se
	res.DF = (e1 + e2) * (e1 + e2) / (e1*e1/(n1-1) + e2*e2/(n2-1))
	t := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: res.DF}
	res.PValue = math.Min(1, 2*t.Survival(math.Abs(res.Statistic)))
	crit := t.Quantile(1 - alpha/2)
	res.Lower = res.Estimate - crit*se
	res.Upper = res.Estimate + crit*se
	return res, nil
}
