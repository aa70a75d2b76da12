// Package types defines the shared data model for tangle source files.
//
// A source file is a markdown document carrying an optional YAML frontmatter
// block. The frontmatter splits into compiler-owned fields (everything under
// the nested "tangle" key: tags, order, description) and pass-through fields
// (everything else), which survive into the compiled output when metadata
// preservation is enabled.
package types

import (
	"fmt"
	"sort"
	"time"
)

// DefaultOrder is the sort key assigned to files whose frontmatter carries no
// explicit order. It sorts unordered files after every explicitly ordered one.
const DefaultOrder = 999

// CompilerKey is the frontmatter key whose nested block holds compiler-owned
// fields. Everything outside this block is pass-through metadata.
const CompilerKey = "tangle"

// Metadata is a parsed frontmatter mapping. Values are restricted to the
// closed set produced by Normalize: string, int, float64, bool, []string,
// []any and nested Metadata.
type Metadata map[string]any

// CompilerMeta holds the compiler-owned subset of a file's frontmatter.
type CompilerMeta struct {
	// Tags groups this file into named buckets for bulk inclusion.
	Tags []string
	// Order is the primary sort key within a tag bucket (DefaultOrder when absent).
	Order int
	// Description is free text shown in listings and exposed to iteration directives.
	Description string
}

// SourceFile represents one scanned source file.
type SourceFile struct {
	// Path is the forward-slash path relative to the source root; stable identity key.
	Path string
	// Raw is the full frontmatter block as parsed, compiler fields included.
	Raw Metadata
	// Meta holds the pass-through fields only.
	Meta Metadata
	// Compiler holds the resolution-control fields.
	Compiler CompilerMeta
	// Body is the file content with the frontmatter block removed.
	Body string
	// Hash is a CRC32 content hash used for change detection.
	Hash string
	// ModTime is the file modification time at scan.
	ModTime time.Time
}

// Title returns a human-readable name for the file: the compiler description
// when present, otherwise a name derived from the path's base filename.
func (f *SourceFile) Title() string {
	if f.Compiler.Description != "" {
		return f.Compiler.Description
	}
	base := f.Path
	if i := lastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := lastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// GetString returns the string value for key, or "" when absent or non-string.
func (m Metadata) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// GetStringSlice returns the value for key coerced to a string slice.
// Scalars become a one-element slice; absent or incompatible values yield nil.
func (m Metadata) GetStringSlice(key string) []string {
	switch v := m[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		return []string{v}
	case nil:
		return nil
	default:
		return nil
	}
}

// GetInt returns the numeric value for key as an int. YAML decodes numbers as
// int or float64 depending on shape; both are accepted. The second return
// reports whether a usable number was present.
func (m Metadata) GetInt(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Keys returns the metadata keys in sorted order for deterministic iteration.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a shallow copy one level deep; nested Metadata values are
// cloned recursively so callers can detach pass-through bags from the index.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		if nested, ok := v.(Metadata); ok {
			out[k] = nested.Clone()
			continue
		}
		out[k] = v
	}
	return out
}

// Normalize coerces the open-ended values produced by YAML decoding into the
// closed value set documented on Metadata. map[string]any becomes Metadata,
// map[any]any keys are stringified, and homogeneous string lists collapse to
// []string.
func Normalize(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(Metadata, len(v))
		for k, item := range v {
			out[k] = Normalize(item)
		}
		return out
	case map[any]any:
		out := make(Metadata, len(v))
		for k, item := range v {
			out[fmt.Sprintf("%v", k)] = Normalize(item)
		}
		return out
	case []any:
		allStrings := len(v) > 0
		for _, item := range v {
			if _, ok := item.(string); !ok {
				allStrings = false
				break
			}
		}
		if allStrings {
			out := make([]string, len(v))
			for i, item := range v {
				out[i] = item.(string)
			}
			return out
		}
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Normalize(item)
		}
		return out
	default:
		return v
	}
}
