package dispatcher

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParamsEmptyRaw(t *testing.T) {
	p, err := parseParams(nil)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestParseParamsInvalidJSON(t *testing.T) {
	_, err := parseParams(json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestRequireStrMissingOrEmpty(t *testing.T) {
	p := params{}
	_, err := p.requireStr("op", "title")
	assert.Error(t, err)

	p["title"] = ""
	_, err = p.requireStr("op", "title")
	assert.Error(t, err)

	p["title"] = "ok"
	v, err := p.requireStr("op", "title")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

// TestLimitFieldBoundary is spec.md §8.3's accepted side: 1 and 100 (and an
// integer-valued string) pass through unchanged. The rejected values are
// covered by TestLimitFieldRejectsOutOfRange and TestLimitFieldRejectsFractional.
func TestLimitFieldBoundary(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want int
	}{
		{"one", float64(1), 1},
		{"hundred", float64(100), 100},
		{"numeric string", "42", 42},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			p := params{"limit": c.in}
			n, err := p.limitField("op", 20)
			require.NoError(t, err)
			assert.Equal(t, c.want, n)
		})
	}
}

func TestLimitFieldRejectsOutOfRange(t *testing.T) {
	for _, in := range []any{float64(0), float64(101), float64(-1)} {
		p := params{"limit": in}
		_, err := p.limitField("op", 20)
		assert.Error(t, err)
	}
}

func TestLimitFieldDefaultsWhenAbsent(t *testing.T) {
	p := params{}
	n, err := p.limitField("op", 20)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
}

func TestLimitFieldRejectsFractional(t *testing.T) {
	p := params{"limit": 3.5}
	_, err := p.limitField("op", 20)
	assert.Error(t, err)
}

func TestLimitFieldRejectsUnparsableString(t *testing.T) {
	p := params{"limit": "not-a-number"}
	_, err := p.limitField("op", 20)
	assert.Error(t, err)
}

func TestBoolFieldVariants(t *testing.T) {
	accepted := map[string]bool{
		"true": true, "false": false, "1": true, "0": false,
		"yes": true, "no": false, "ON": true, "Off": false,
		"enabled": true, "disabled": false,
	}
	for raw, want := range accepted {
		p := params{"flag": raw}
		var warnings []string
		got := p.boolField("flag", &warnings)
		assert.Equal(t, want, got, "variant %q", raw)
		assert.Empty(t, warnings)
	}
}

func TestBoolFieldNativeBool(t *testing.T) {
	p := params{"flag": true}
	var warnings []string
	assert.True(t, p.boolField("flag", &warnings))
	assert.Empty(t, warnings)
}

func TestBoolFieldUnrecognizedDefaultsFalseWithWarning(t *testing.T) {
	p := params{"flag": "maybe"}
	var warnings []string
	got := p.boolField("flag", &warnings)
	assert.False(t, got)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "maybe")
}

func TestBoolFieldAbsentIsFalseNoWarning(t *testing.T) {
	p := params{}
	var warnings []string
	assert.False(t, p.boolField("flag", &warnings))
	assert.Empty(t, warnings)
}

func TestBoolFieldUnsupportedTypeWarns(t *testing.T) {
	p := params{"flag": 3.14}
	var warnings []string
	got := p.boolField("flag", &warnings)
	assert.False(t, got)
	require.Len(t, warnings, 1)
}

func TestStringListArrayForm(t *testing.T) {
	p := params{"labels": []any{"a", "b"}}
	out, err := p.stringList("op", "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestStringListJSONEncodedStringForm(t *testing.T) {
	p := params{"labels": `["a","b"]`}
	out, err := p.stringList("op", "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, out)
}

func TestStringListCommaSeparatedForm(t *testing.T) {
	p := params{"labels": "a, b, c"}
	out, err := p.stringList("op", "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, out)
}

func TestStringListSingleBareStringForm(t *testing.T) {
	p := params{"labels": "solo"}
	out, err := p.stringList("op", "labels")
	require.NoError(t, err)
	assert.Equal(t, []string{"solo"}, out)
}

func TestStringListAbsentReturnsNil(t *testing.T) {
	p := params{}
	out, err := p.stringList("op", "labels")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestStringListRejectsMixedArrayElements(t *testing.T) {
	p := params{"labels": []any{"a", 2}}
	_, err := p.stringList("op", "labels")
	assert.Error(t, err)
}

func TestStringListRejectsMalformedJSONArrayString(t *testing.T) {
	p := params{"labels": `["a",`}
	_, err := p.stringList("op", "labels")
	assert.Error(t, err)
}

func TestDocFieldReturnsNilWhenAbsentOrWrongType(t *testing.T) {
	p := params{}
	assert.Nil(t, p.docField("data"))

	p["data"] = "not a map"
	assert.Nil(t, p.docField("data"))

	p["data"] = map[string]any{"k": "v"}
	assert.Equal(t, map[string]any{"k": "v"}, p.docField("data"))
}
