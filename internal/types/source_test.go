package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceFile_Title(t *testing.T) {
	withDescription := &SourceFile{
		Path:     "skills/search.md",
		Compiler: CompilerMeta{Description: "Search skill"},
	}
	assert.Equal(t, "Search skill", withDescription.Title())

	fromFilename := &SourceFile{Path: "skills/web-search.md"}
	assert.Equal(t, "web-search", fromFilename.Title())

	noExtension := &SourceFile{Path: "LICENSE"}
	assert.Equal(t, "LICENSE", noExtension.Title())
}

func TestMetadata_GetString(t *testing.T) {
	m := Metadata{"title": "X", "count": 3}

	assert.Equal(t, "X", m.GetString("title"))
	assert.Empty(t, m.GetString("count"), "non-string yields empty")
	assert.Empty(t, m.GetString("missing"))
}

func TestMetadata_GetStringSlice(t *testing.T) {
	m := Metadata{
		"list":   []string{"a", "b"},
		"mixed":  []any{"a", 2},
		"scalar": "solo",
		"number": 7,
	}

	assert.Equal(t, []string{"a", "b"}, m.GetStringSlice("list"))
	assert.Equal(t, []string{"a", "2"}, m.GetStringSlice("mixed"))
	assert.Equal(t, []string{"solo"}, m.GetStringSlice("scalar"))
	assert.Nil(t, m.GetStringSlice("number"))
	assert.Nil(t, m.GetStringSlice("missing"))
}

func TestMetadata_GetInt(t *testing.T) {
	m := Metadata{"int": 5, "float": 2.0, "str": "9"}

	v, ok := m.GetInt("int")
	assert.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = m.GetInt("float")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = m.GetInt("str")
	assert.False(t, ok)
	_, ok = m.GetInt("missing")
	assert.False(t, ok)
}

func TestMetadata_KeysSorted(t *testing.T) {
	m := Metadata{"c": 1, "a": 2, "b": 3}

	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())
}

func TestMetadata_Clone(t *testing.T) {
	original := Metadata{"top": "v", "nested": Metadata{"inner": "w"}}

	clone := original.Clone()
	clone["top"] = "changed"
	clone["nested"].(Metadata)["inner"] = "changed"

	assert.Equal(t, "v", original.GetString("top"))
	assert.Equal(t, "w", original["nested"].(Metadata).GetString("inner"))
}

func TestNormalize(t *testing.T) {
	input := map[string]any{
		"strings": []any{"a", "b"},
		"mixed":   []any{"a", 1},
		"nested":  map[string]any{"k": "v"},
		"legacy":  map[any]any{1: "one"},
	}

	out, ok := Normalize(input).(Metadata)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, out["strings"])
	assert.IsType(t, []any{}, out["mixed"])
	assert.Equal(t, "v", out["nested"].(Metadata).GetString("k"))
	assert.Equal(t, "one", out["legacy"].(Metadata).GetString("1"))
}
