package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocCloneIsDeep(t *testing.T) {
	original := Doc{
		"a": Doc{"x": 1},
		"l": []any{1, 2, Doc{"y": 2}},
	}
	clone := original.Clone()

	clone["a"].(Doc)["x"] = 999
	clone["l"].([]any)[0] = "mutated"

	assert.Equal(t, 1, original["a"].(Doc)["x"])
	assert.Equal(t, 1, original["l"].([]any)[0])
}

func TestDocCloneNil(t *testing.T) {
	var d Doc
	assert.Nil(t, d.Clone())
}

func TestCloneAnyHandlesPlainMap(t *testing.T) {
	v := map[string]any{"k": []any{1, 2}}
	cloned := CloneAny(v).(map[string]any)
	cloned["k"].([]any)[0] = "changed"
	assert.Equal(t, 1, v["k"].([]any)[0])
}
