package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPlan    = "labstat/plan/v1"
	DomainDataset = "labstat/dataset/v1"
	DomainChart   = "labstat/chart/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PlanHash identifies what a plan asks for. Chart cosmetics other than the
// output path are excluded, so retitling a figure does not create a new run;
// ChartHash tracks them instead.
func PlanHash(p Plan) (string, error) {
	order := make([]any, len(p.Request.Order))
	for i, g := range p.Request.Order {
		order[i] = g
	}
	obj := map[string]any{
		"name":         p.Name,
		"input":        p.Input,
		"sheet":        p.Sheet,
		"test":         string(p.Request.Test),
		"group_col":    p.Request.GroupCol,
		"factor_col":   p.Request.FactorCol,
		"response_col": p.Request.ResponseCol,
		"control":      p.Request.Control,
		"alpha":        p.Request.Alpha,
		"order":        order,
		"chart_output": p.Chart.Output,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("PlanHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainPlan, canonical), nil
}

// ChartHash identifies how a chart is drawn. Two runs of the same analysis
// with equal chart hashes produce the same figure.
func ChartHash(opts ChartOptions) (string, error) {
	obj := map[string]any{
		"title":    opts.Title,
		"subtitle": opts.Subtitle,
		"x_label":  opts.XLabel,
		"y_label":  opts.YLabel,
		"output":   opts.Output,
		"width":    opts.Width,
		"height":   opts.Height,
		"dpi":      opts.DPI,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ChartHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainChart, canonical), nil
}

// DatasetHash identifies the observations an analysis ran on, in row order.
func DatasetHash(obs []Observation) (string, error) {
	rows := make([]any, len(obs))
	for i, o := range obs {
		rows[i] = []any{o.Group, o.Factor, o.Value}
	}
	canonical, err := MarshalCanonical(rows)
	if err != nil {
		return "", fmt.Errorf("DatasetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDataset, canonical), nil
}

// MustPlanHash is like PlanHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustPlanHash(p Plan) string {
	h, err := PlanHash(p)
	if err != nil {
		panic(err)
	}
	return h
}
