package model

import (
	"encoding/json"
	"math"
)

// jsonFloat maps values encoding/json rejects: NaN becomes null and
// infinities become the strings "+Inf" / "-Inf".
func jsonFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return nil
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

// MarshalJSON implements json.Marshaler.
func (c Comparison) MarshalJSON() ([]byte, error) {
	type alias Comparison
	return json.Marshal(struct {
		alias
		Estimate  any `json:"estimate"`
		Statistic any `json:"statistic"`
		DF        any `json:"df"`
		PValue    any `json:"p_value"`
		Lower     any `json:"lower"`
		Upper     any `json:"upper"`
	}{
		alias:     alias(c),
		Estimate:  jsonFloat(c.Estimate),
		Statistic: jsonFloat(c.Statistic),
		DF:        jsonFloat(c.DF),
		PValue:    jsonFloat(c.PValue),
		Lower:     jsonFloat(c.Lower),
		Upper:     jsonFloat(c.Upper),
	})
}

// MarshalJSON implements json.Marshaler.
func (s GroupSummary) MarshalJSON() ([]byte, error) {
	type alias GroupSummary
	return json.Marshal(struct {
		alias
		Mean   any `json:"mean"`
		SD     any `json:"sd"`
		SE     any `json:"se"`
		PValue any `json:"p_value"`
	}{
		alias:  alias(s),
		Mean:   jsonFloat(s.Mean),
		SD:     jsonFloat(s.SD),
		SE:     jsonFloat(s.SE),
		PValue: jsonFloat(s.PValue),
	})
}

// MarshalJSON implements json.Marshaler.
func (t AnovaTable) MarshalJSON() ([]byte, error) {
	type alias AnovaTable
	return json.Marshal(struct {
		alias
		MSWithin any `json:"ms_within"`
		F        any `json:"f"`
		PValue   any `json:"p_value"`
	}{
		alias:    alias(t),
		MSWithin: jsonFloat(t.MSWithin),
		F:        jsonFloat(t.F),
		PValue:   jsonFloat(t.PValue),
	})
}
