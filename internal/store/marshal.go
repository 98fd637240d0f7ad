package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/labstat/internal/model"
)

// marshalText encodes v as compact JSON TEXT for storage.
// HTML escaping is disabled so group names like "A&B" are stored verbatim.
func marshalText(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// marshalRequest converts a Request to JSON TEXT.
func marshalRequest(req model.Request) (string, error) {
	data, err := marshalText(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	return data, nil
}

// unmarshalRequest parses JSON TEXT to a Request.
func unmarshalRequest(data string) (model.Request, error) {
	var req model.Request
	if err := json.Unmarshal([]byte(data), &req); err != nil {
		return model.Request{}, fmt.Errorf("unmarshal request: %w", err)
	}
	return req, nil
}

// marshalStrings converts a string list to JSON TEXT; nil becomes "[]".
func marshalStrings(v []string) (string, error) {
	if v == nil {
		return "[]", nil
	}
	return marshalText(v)
}

func unmarshalStrings(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var v []string
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return v, nil
}

func marshalSkipped(v []model.SkippedLevel) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	return marshalText(v)
}

func unmarshalSkipped(data string) ([]model.SkippedLevel, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var v []model.SkippedLevel
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("unmarshal skipped levels: %w", err)
	}
	return v, nil
}

// nullable maps NaN to SQL NULL.
func nullable(f float64) sql.NullFloat64 {
	if math.IsNaN(f) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

// fromNullable maps SQL NULL back to NaN.
func fromNullable(n sql.NullFloat64) float64 {
	if !n.Valid {
		return math.NaN()
	}
	return n.Float64
}
