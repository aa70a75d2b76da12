// Package metadata extracts and partitions YAML frontmatter from source files.
//
// A frontmatter block is delimited by a line containing exactly "---" at the
// very start of the file and a matching "---" line closing it. The block is
// parsed as YAML and partitioned into compiler-owned fields (the nested
// "tangle" mapping: tags, order, description) and pass-through fields, which
// are everything else. Files without a recognized opening delimiter are
// returned unchanged with empty metadata.
package metadata

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	tangleerrors "github.com/tanglekit/tangle/internal/errors"
	"github.com/tanglekit/tangle/internal/types"
)

const delimiter = "---"

// Extract splits raw file text into a parsed frontmatter mapping and the
// remaining body. When the text carries no frontmatter block, the returned
// metadata is nil and the body is the input unchanged.
//
// A malformed block yields a *MetadataError; the body still contains the
// full text after the closing delimiter so no content is ever dropped. An
// unterminated opening delimiter is not treated as frontmatter at all.
func Extract(path, raw string) (types.Metadata, string, error) {
	block, body, found := splitFrontmatter(raw)
	if !found {
		return nil, raw, nil
	}

	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(block), &parsed); err != nil {
		return nil, body, &tangleerrors.MetadataError{Path: path, Cause: err}
	}
	if parsed == nil {
		return types.Metadata{}, body, nil
	}

	meta, ok := types.Normalize(parsed).(types.Metadata)
	if !ok {
		return nil, body, &tangleerrors.MetadataError{
			Path:  path,
			Cause: fmt.Errorf("frontmatter is not a mapping"),
		}
	}
	return meta, body, nil
}

// splitFrontmatter locates the delimited block. It returns the block content
// (delimiters excluded), the body after the closing delimiter line, and
// whether a complete block was found.
func splitFrontmatter(raw string) (block, body string, found bool) {
	rest, ok := strings.CutPrefix(raw, delimiter)
	if !ok {
		return "", raw, false
	}
	// The opening delimiter must be its own line.
	rest, ok = cutLineEnd(rest)
	if !ok {
		return "", raw, false
	}

	// Scan line by line for a closing delimiter line.
	offset := 0
	for offset <= len(rest) {
		lineEnd := strings.IndexByte(rest[offset:], '\n')
		var line string
		next := len(rest) + 1
		if lineEnd >= 0 {
			line = rest[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		} else {
			line = rest[offset:]
		}
		if strings.TrimRight(line, " \t\r") == delimiter {
			body := ""
			if next <= len(rest) {
				body = rest[next:]
			}
			return rest[:offset], body, true
		}
		offset = next
	}
	return "", raw, false
}

// cutLineEnd strips one line terminator ("\n" or "\r\n") from the front of s.
func cutLineEnd(s string) (string, bool) {
	if after, ok := strings.CutPrefix(s, "\r\n"); ok {
		return after, true
	}
	if after, ok := strings.CutPrefix(s, "\n"); ok {
		return after, true
	}
	return s, false
}

// Partition splits a raw frontmatter mapping into compiler-owned fields and
// the pass-through bag. Unrecognized keys inside the compiler block are
// ignored rather than leaking into pass-through.
func Partition(raw types.Metadata) (types.CompilerMeta, types.Metadata) {
	compiler := types.CompilerMeta{Order: types.DefaultOrder}
	pass := make(types.Metadata, len(raw))

	for key, value := range raw {
		if key != types.CompilerKey {
			pass[key] = value
			continue
		}
		block, ok := value.(types.Metadata)
		if !ok {
			// A scalar "tangle" key is not a compiler block; pass it through.
			pass[key] = value
			continue
		}
		compiler.Tags = block.GetStringSlice("tags")
		compiler.Description = block.GetString("description")
		if order, ok := block.GetInt("order"); ok {
			compiler.Order = order
		}
	}
	return compiler, pass
}

// Serialize renders a pass-through mapping back into a frontmatter block,
// closing delimiter and trailing newline included. An empty mapping yields
// the empty string so callers never emit a bare delimiter pair.
func Serialize(meta types.Metadata) (string, error) {
	if len(meta) == 0 {
		return "", nil
	}
	encoded, err := yaml.Marshal(map[string]any(meta))
	if err != nil {
		return "", fmt.Errorf("serializing frontmatter: %w", err)
	}
	var sb strings.Builder
	sb.WriteString(delimiter)
	sb.WriteByte('\n')
	sb.Write(encoded)
	sb.WriteString(delimiter)
	sb.WriteByte('\n')
	return sb.String(), nil
}
