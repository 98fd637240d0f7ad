package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalKeyOrder(t *testing.T) {
	got, err := MarshalCanonical(map[string]any{
		"b": 1,
		"a": "x",
		"c": []any{true, false},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1,"c":[true,false]}`, string(got))
}

func TestMarshalCanonicalUTF16Order(t *testing.T) {
	// U+1F600 sorts after U+E000 in UTF-8 byte order but before it in UTF-16,
	// where it becomes the surrogate pair D83D DE00.
	got, err := MarshalCanonical(map[string]any{
		"\U0001F600": 1,
		"\uE000":     2,
	})
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":1,\"\uE000\":2}", string(got))
}

func TestMarshalCanonicalNoHTMLEscape(t *testing.T) {
	got, err := MarshalCanonical("a<b>&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b>&c"`, string(got))
}

func TestMarshalCanonicalNFC(t *testing.T) {
	composed, err := MarshalCanonical("Col-\u00e9")
	require.NoError(t, err)
	decomposed, err := MarshalCanonical("Col-e\u0301")
	require.NoError(t, err)
	assert.Equal(t, composed, decomposed)
}

func TestMarshalCanonicalLineSeparators(t *testing.T) {
	got, err := MarshalCanonical("a\u2028b")
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(got))

	literal, err := MarshalCanonical(`a\u2028b`)
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(literal))
}

func TestMarshalCanonicalFloats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "0.5"},
		{12, "12"},
		{math.Copysign(0, -1), "0"},
		{1e-5, "1e-05"},
		{math.NaN(), "null"},
		{math.Inf(1), `"+Inf"`},
		{math.Inf(-1), `"-Inf"`},
	}
	for _, tt := range tests {
		got, err := MarshalCanonical(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(got))
	}
}

func TestMarshalCanonicalUnsupported(t *testing.T) {
	_, err := MarshalCanonical(struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	_, err = MarshalCanonical(map[string]any{"x": []any{struct{}{}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `value for key "x"`)
}
