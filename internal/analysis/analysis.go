package analysis

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/labstat/internal/cld"
	"github.com/roach88/labstat/internal/model"
	"github.com/roach88/labstat/internal/stats"
	"github.com/roach88/labstat/internal/table"
)

// Extract reads the observations selected by req from t. Missing columns
// and non-numeric response cells become coded errors.
func Extract(t *table.Table, req model.Request) ([]model.Observation, int, error) {
	obs, dropped, err := t.Observations(req)
	if err != nil {
		var ce *table.ColumnError
		var ve *table.CellError
		switch {
		case errors.As(err, &ce):
			return nil, 0, &Error{Code: ErrCodeMissingColumn, Message: ce.Error(), Err: err}
		case errors.As(err, &ve):
			return nil, 0, &Error{Code: ErrCodeNonNumeric, Message: ve.Error(), Err: err}
		}
		return nil, 0, err
	}
	return obs, dropped, nil
}

// Analyze extracts observations from t and runs the requested test.
func Analyze(t *table.Table, req model.Request) (*model.Analysis, error) {
	obs, dropped, err := Extract(t, req)
	if err != nil {
		return nil, err
	}
	a, err := Run(obs, req)
	if err != nil {
		return nil, err
	}
	a.Dropped = dropped
	return a, nil
}

// Normalize validates req and fills in defaults: the canonical test name and
// DefaultAlpha when Alpha is zero.
func Normalize(req model.Request) (model.Request, error) {
	kind, err := model.ParseTestKind(string(req.Test))
	if err != nil {
		return req, &Error{Code: ErrCodeUnknownTest, Message: err.Error(), Err: err}
	}
	req.Test = kind
	if req.Alpha == 0 {
		req.Alpha = model.DefaultAlpha
	}
	if !(req.Alpha > 0 && req.Alpha < 1) {
		return req, newError(ErrCodeInvalidAlpha, "alpha %v must lie in (0, 1)", req.Alpha)
	}
	return req, nil
}

// Run performs the requested test on obs.
func Run(obs []model.Observation, req model.Request) (*model.Analysis, error) {
	req, err := Normalize(req)
	if err != nil {
		return nil, err
	}
	if len(obs) == 0 {
		return nil, newError(ErrCodeInsufficientData, "no observations")
	}

	groups, err := table.GroupOrder(obs, req.Order)
	if err != nil {
		return nil, &Error{Code: ErrCodeUnknownGroup, Message: err.Error(), Err: err}
	}

	r := &runner{
		req: req,
		a: &model.Analysis{
			Request:     req,
			Groups:      groups,
			Comparisons: []model.Comparison{},
			Summaries:   []model.GroupSummary{},
		},
		byLevel: make(map[string]map[string][]float64),
	}
	for _, o := range obs {
		level := o.Factor
		if !req.HasFactor() {
			level = ""
		}
		if r.byLevel[level] == nil {
			r.byLevel[level] = make(map[string][]float64)
		}
		r.byLevel[level][o.Group] = append(r.byLevel[level][o.Group], o.Value)
	}

	levels := []string{""}
	if req.HasFactor() {
		levels = table.FactorOrder(obs)
		r.a.Factors = levels
	}

	var runLevel func(string) error
	switch req.Test {
	case model.TestTTest:
		if !req.HasFactor() && len(groups) != 2 {
			return nil, newError(ErrCodeGroupCount, "t-test needs exactly 2 groups, got %d", len(groups))
		}
		runLevel = r.ttest
	case model.TestTukey:
		runLevel = r.tukey
	case model.TestDunnett:
		control, err := r.control()
		if err != nil {
			return nil, err
		}
		r.ctrl = control
		runLevel = r.dunnett
	case model.TestANOVA:
		runLevel = r.anova
	}

	var first *Error
	tested := 0
	for _, lv := range levels {
		nc, ns, na := len(r.a.Comparisons), len(r.a.Summaries), len(r.a.Anova)
		err := runLevel(lv)
		if err == nil {
			tested++
			continue
		}
		var ae *Error
		if !req.HasFactor() || !errors.As(err, &ae) {
			return nil, err
		}
		if first == nil {
			first = ae
		}
		r.skip(lv, ae.Message, nc, ns, na)
	}
	if tested == 0 && first != nil {
		return nil, &Error{Code: first.Code, Message: "no factor level could be tested: " + first.Message, Err: first}
	}
	return r.a, nil
}

type runner struct {
	req     model.Request
	a       *model.Analysis
	byLevel map[string]map[string][]float64
	ctrl    string
}

// label is the factor label recorded for a level.
func (r *runner) label(level string) string {
	if !r.req.HasFactor() && r.req.Test == model.TestTTest {
		return model.TotalFactor
	}
	return level
}

// samples returns the groups observed at level in group order.
func (r *runner) samples(level string) []stats.Sample {
	var out []stats.Sample
	for _, g := range r.a.Groups {
		if v, ok := r.byLevel[level][g]; ok {
			out = append(out, stats.Sample{Name: g, Values: v})
		}
	}
	return out
}

func (r *runner) control() (string, error) {
	if r.req.Control == "" {
		return r.a.Groups[0], nil
	}
	for _, g := range r.a.Groups {
		if g == r.req.Control {
			return g, nil
		}
	}
	return "", newError(ErrCodeUnknownControl, "control group %q has no observations (groups: %v)", r.req.Control, r.a.Groups)
}

// skip discards whatever a failed level recorded past the given lengths and
// keeps marker-free summaries of its groups so the level still plots.
func (r *runner) skip(level, reason string, comparisons, summaries, anova int) {
	r.a.Comparisons = r.a.Comparisons[:comparisons]
	r.a.Summaries = r.a.Summaries[:summaries]
	r.a.Anova = r.a.Anova[:anova]
	for _, s := range r.samples(level) {
		r.a.Summaries = append(r.a.Summaries, summary(r.label(level), s))
	}
	r.a.Skipped = append(r.a.Skipped, model.SkippedLevel{Factor: level, Reason: reason})
}

// summary builds the marker-free summary of one sample.
func summary(factor string, s stats.Sample) model.GroupSummary {
	d := stats.Describe(s.Values)
	return model.GroupSummary{
		Factor: factor,
		Group:  s.Name,
		N:      d.N,
		Mean:   d.Mean,
		SD:     d.SD,
		SE:     d.SE,
		PValue: math.NaN(),
	}
}

// statsError converts a stats failure into a coded error.
func statsError(level string, err error) *Error {
	code := ErrCodeInsufficientData
	if errors.Is(err, stats.ErrTooFewGroups) {
		code = ErrCodeGroupCount
	}
	return &Error{Code: code, Message: err.Error(), Factor: level, Err: err}
}

func (r *runner) ttest(level string) error {
	samples := r.samples(level)
	if len(samples) != 2 {
		return &Error{
			Code:    ErrCodeGroupCount,
			Message: fmt.Sprintf("level has %d groups, t-test needs exactly 2", len(samples)),
			Factor:  level,
		}
	}
	a, b := samples[0], samples[1]
	res, err := stats.WelchTTest(a.Values, b.Values, r.req.Alpha)
	if err != nil {
		return statsError(level, err)
	}

	label := r.label(level)
	r.a.Comparisons = append(r.a.Comparisons, model.Comparison{
		Factor:    label,
		Group1:    a.Name,
		Group2:    b.Name,
		N1:        len(a.Values),
		N2:        len(b.Values),
		Estimate:  res.Estimate,
		Statistic: res.Statistic,
		DF:        res.DF,
		PValue:    res.PValue,
		Lower:     res.Lower,
		Upper:     res.Upper,
		Reject:    res.PValue < r.req.Alpha,
		Stars:     stats.Stars(res.PValue),
	})
	for _, s := range samples {
		sum := summary(label, s)
		sum.PValue = res.PValue
		sum.Significance = r.significance(res.PValue)
		sum.Stars = stats.Stars(res.PValue)
		r.a.Summaries = append(r.a.Summaries, sum)
	}
	return nil
}

func (r *runner) significance(p float64) string {
	if p < r.req.Alpha {
		return "*"
	}
	return ""
}

// oneWay runs the ANOVA shared by tukey, dunnett and anova.
func (r *runner) oneWay(level string, samples []stats.Sample) error {
	if len(samples) < 2 {
		return &Error{
			Code:    ErrCodeGroupCount,
			Message: fmt.Sprintf("%s needs at least 2 groups, got %d", r.req.Test, len(samples)),
			Factor:  level,
		}
	}
	av, err := stats.OneWayANOVA(samples)
	if err != nil {
		return statsError(level, err)
	}
	r.a.Anova = append(r.a.Anova, model.AnovaTable{
		Factor:    level,
		SSBetween: av.SSBetween,
		SSWithin:  av.SSWithin,
		DFBetween: av.DFBetween,
		DFWithin:  av.DFWithin,
		MSBetween: av.MSBetween,
		MSWithin:  av.MSWithin,
		F:         av.F,
		PValue:    av.PValue,
	})
	return nil
}

func (r *runner) comparison(level string, samples []stats.Sample, p stats.Pair, stars string) model.Comparison {
	return model.Comparison{
		Factor:    level,
		Group1:    samples[p.I].Name,
		Group2:    samples[p.J].Name,
		N1:        len(samples[p.I].Values),
		N2:        len(samples[p.J].Values),
		Estimate:  p.Estimate,
		Statistic: p.Statistic,
		DF:        p.DF,
		PValue:    p.PValue,
		Lower:     p.Lower,
		Upper:     p.Upper,
		Reject:    p.Reject,
		Stars:     stars,
	}
}

func (r *runner) tukey(level string) error {
	samples := r.samples(level)
	if err := r.oneWay(level, samples); err != nil {
		return err
	}
	pairs, err := stats.TukeyHSD(samples, r.req.Alpha)
	if err != nil {
		return statsError(level, err)
	}

	reject := make(map[[2]int]bool, len(pairs))
	for _, p := range pairs {
		reject[[2]int{p.I, p.J}] = p.Reject
		stars := "ns"
		if p.Reject {
			stars = "*"
		}
		r.a.Comparisons = append(r.a.Comparisons, r.comparison(level, samples, p, stars))
	}

	sums := make([]model.GroupSummary, len(samples))
	means := make([]float64, len(samples))
	for i, s := range samples {
		sums[i] = summary(level, s)
		means[i] = sums[i].Mean
	}
	letters := cld.Letters(means, func(i, j int) bool {
		if i > j {
			i, j = j, i
		}
		return reject[[2]int{i, j}]
	})
	for i := range sums {
		sums[i].Letters = letters[i]
	}
	r.a.Summaries = append(r.a.Summaries, sums...)
	return nil
}

func (r *runner) dunnett(level string) error {
	samples := r.samples(level)
	ci := -1
	for i, s := range samples {
		if s.Name == r.ctrl {
			ci = i
		}
	}
	if ci < 0 {
		return &Error{
			Code:    ErrCodeUnknownControl,
			Message: fmt.Sprintf("control group %q has no observations at this level", r.ctrl),
			Factor:  level,
		}
	}
	if err := r.oneWay(level, samples); err != nil {
		return err
	}
	pairs, err := stats.Dunnett(samples, ci, r.req.Alpha)
	if err != nil {
		return statsError(level, err)
	}

	sums := make([]model.GroupSummary, len(samples))
	for i, s := range samples {
		sums[i] = summary(level, s)
	}
	for _, p := range pairs {
		r.a.Comparisons = append(r.a.Comparisons, r.comparison(level, samples, p, stats.Stars(p.PValue)))
		sums[p.J].PValue = p.PValue
		sums[p.J].Significance = r.significance(p.PValue)
		sums[p.J].Stars = stats.Stars(p.PValue)
	}
	r.a.Summaries = append(r.a.Summaries, sums...)
	return nil
}

func (r *runner) anova(level string) error {
	samples := r.samples(level)
	if err := r.oneWay(level, samples); err != nil {
		return err
	}
	for _, s := range samples {
		r.a.Summaries = append(r.a.Summaries, summary(level, s))
	}
	return nil
}
