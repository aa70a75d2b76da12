package compiler

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	tangleerrors "github.com/tanglekit/tangle/internal/errors"
	"github.com/tanglekit/tangle/internal/types"
)

// renderContext is the data exposed to a file's template. It is constructed
// fresh for every resolved file so sibling resolutions never share template
// state: the identity fields are constant for the whole run, Meta is scoped
// to the current file.
type renderContext struct {
	// Name and Description identify the composition being compiled.
	Name        string
	Description string
	// Meta is the current file's pass-through frontmatter.
	Meta types.Metadata
}

// TagItem is the per-file view yielded by the tagged iteration directive.
type TagItem struct {
	// Path is the file's slash-relative path.
	Path string
	// Title is the compiler description, falling back to the base filename.
	Title string
	// Description is the compiler description, empty when absent.
	Description string
	// Body is the file's fully resolved content.
	Body string
	// Raw is the file's body with directives left unexpanded.
	Raw string
	// Meta is the file's pass-through frontmatter.
	Meta types.Metadata
	// Compiler is the file's resolution-control frontmatter.
	Compiler types.CompilerMeta
}

// render evaluates one file's body as a directive-bearing template.
//
// Directive surface:
//
//	{{include "path.md"}}        include-by-path
//	{{includeTag "tag"}}         include-by-tag, joined with the separator
//	{{range tagged "tag"}}...    iterate-by-tag, yielding TagItem
//	{{meta "key"}}               current-file pass-through lookup
func (c *Compiler) render(ctx context.Context, file *types.SourceFile, state *resolutionState) (string, error) {
	funcs := template.FuncMap{
		"include": func(p string) (string, error) {
			resolved, err := c.resolveFile(ctx, p, state)
			if err != nil {
				return "", state.fail(err)
			}
			return resolved, nil
		},
		"includeTag": func(tag string) (string, error) {
			joined, err := c.includeTag(ctx, tag, state)
			if err != nil {
				return "", state.fail(err)
			}
			return joined, nil
		},
		"tagged": func(tag string) ([]TagItem, error) {
			items, err := c.iterateTag(ctx, tag, state)
			if err != nil {
				return nil, state.fail(err)
			}
			return items, nil
		},
		"meta": func(key string) any {
			if value, ok := file.Meta[key]; ok {
				return value
			}
			return ""
		},
	}

	tmpl, err := template.New(file.Path).Funcs(funcs).Option("missingkey=zero").Parse(file.Body)
	if err != nil {
		return "", tangleerrors.NewResolutionError("ERR_DIRECTIVE_PARSE", file.Path,
			"parsing directives", err)
	}

	var buf bytes.Buffer
	data := renderContext{
		Name:        c.opts.AgentName,
		Description: c.opts.AgentDescription,
		Meta:        file.Meta,
	}
	if err := tmpl.Execute(&buf, data); err != nil {
		// Directive errors surface from state.failure so they keep their
		// structured type instead of text/template's exec wrapping.
		if state.failure != nil {
			return "", state.failure
		}
		return "", tangleerrors.NewResolutionError("ERR_DIRECTIVE_EXEC", file.Path,
			"rendering directives", err)
	}
	return buf.String(), nil
}

// includeTag resolves every file in the tag's bucket, in (order, path) order,
// and joins the fragments with the configured separator. An empty bucket is
// a soft no-op unless strict tags are enabled.
func (c *Compiler) includeTag(ctx context.Context, tag string, state *resolutionState) (string, error) {
	bucket, err := c.taggedBucket(ctx, tag, state)
	if err != nil || bucket == nil {
		return "", err
	}

	parts := make([]string, 0, len(bucket))
	for _, file := range bucket {
		resolved, err := c.resolveFile(ctx, file.Path, state)
		if err != nil {
			return "", err
		}
		parts = append(parts, resolved)
	}
	return strings.Join(parts, c.opts.Separator), nil
}

// iterateTag yields the tag's bucket as structured items for caller-defined
// iteration, same sort rule as includeTag.
func (c *Compiler) iterateTag(ctx context.Context, tag string, state *resolutionState) ([]TagItem, error) {
	bucket, err := c.taggedBucket(ctx, tag, state)
	if err != nil || bucket == nil {
		return nil, err
	}

	items := make([]TagItem, 0, len(bucket))
	for _, file := range bucket {
		resolved, err := c.resolveFile(ctx, file.Path, state)
		if err != nil {
			return nil, err
		}
		items = append(items, TagItem{
			Path:        file.Path,
			Title:       file.Title(),
			Description: file.Compiler.Description,
			Body:        resolved,
			Raw:         file.Body,
			Meta:        file.Meta,
			Compiler:    file.Compiler,
		})
	}
	return items, nil
}

// taggedBucket records the tag lookup, fetches the bucket and applies the
// resolution-time sort. A nil, nil return means an empty bucket in
// warn-and-continue mode.
func (c *Compiler) taggedBucket(ctx context.Context, tag string, state *resolutionState) ([]*types.SourceFile, error) {
	state.recordTag(tag)

	bucket := c.index.Tagged(tag)
	if len(bucket) == 0 {
		message := fmt.Sprintf("tag %q matched no files", tag)
		if c.opts.StrictTags {
			return nil, tangleerrors.NewResolutionError(tangleerrors.ErrCodeEmptyTag, "", message, nil)
		}
		state.warn(message)
		c.logger.Warn(ctx, nil, "empty tag bucket", "tag", tag)
		return nil, nil
	}
	sortBucket(bucket)
	return bucket, nil
}
