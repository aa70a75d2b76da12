// Package compiler implements the recursive reference-resolution engine.
//
// Given an entry path and a source index, the compiler renders
// directive-bearing markdown into plain text. Directives pull in other
// content by tag or by path; included content may itself contain directives,
// so inclusion is a synchronous, depth-first recursive substitution. An
// active-resolution stack detects cycles and guarantees termination; a
// visited set and referenced-tag set feed the compilation statistics.
//
// Resolution is single-threaded by design: a tag include matching five files
// resolves them one at a time in sort order, each completing fully before
// the next begins. Two compilations of the same index and entry produce
// byte-identical output.
package compiler

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	tangleerrors "github.com/tanglekit/tangle/internal/errors"
	"github.com/tanglekit/tangle/internal/logging"
	"github.com/tanglekit/tangle/internal/registry"
	"github.com/tanglekit/tangle/internal/scanner"
	"github.com/tanglekit/tangle/internal/types"
)

// MetadataMode controls whether pass-through frontmatter is re-attached to
// the compiled document.
type MetadataMode string

const (
	// ModeStrip drops all frontmatter from the output.
	ModeStrip MetadataMode = "strip"
	// ModePreserve re-serializes the entry file's pass-through frontmatter.
	ModePreserve MetadataMode = "preserve"
)

// DefaultSeparator joins sibling fragments produced by a tag include.
const DefaultSeparator = "\n\n"

// Options configures one compilation. It is read-only during the run.
type Options struct {
	// Root is the source root directory; resolution never escapes it.
	Root string
	// Entry is the slash-relative path of the file that begins compilation.
	Entry string
	// Separator joins tag-include fragments (DefaultSeparator when empty).
	Separator string
	// Metadata selects strip or preserve for the output frontmatter.
	Metadata MetadataMode
	// AgentName and AgentDescription are constant identity fields exposed to
	// every template as .Name and .Description.
	AgentName        string
	AgentDescription string
	// StrictTags escalates empty tag buckets from warnings to errors.
	StrictTags bool
	// MaxDepth caps recursion depth; zero means bounded only by cycle
	// detection (a long acyclic chain recurses to its full length).
	MaxDepth int
}

// Result is the outcome of a successful compilation.
type Result struct {
	// Output is the final rendered document.
	Output string
	// FilesCompiled counts distinct files resolved at least once.
	FilesCompiled int
	// Tags lists every tag referenced during the run, sorted.
	Tags []string
	// Warnings lists soft-condition advisories (empty tag buckets).
	Warnings []string
	// Duration is the wall-clock time the compilation took.
	Duration time.Duration
}

// Compiler resolves an entry file against an immutable source index.
// A Compiler is safe for repeated sequential use; each Compile call owns a
// fresh resolution state.
type Compiler struct {
	index   *registry.SourceIndex
	scanner *scanner.SourceScanner
	logger  logging.Logger
	opts    Options
}

// New creates a compiler over index. The scanner serves the direct-read
// fallback for paths outside the configured patterns; a nil logger falls
// back to a no-op.
func New(index *registry.SourceIndex, src *scanner.SourceScanner, logger logging.Logger, opts Options) *Compiler {
	if logger == nil {
		logger = logging.NopLogger{}
	}
	if src == nil {
		src = scanner.NewSourceScanner(logger)
	}
	if opts.Separator == "" {
		opts.Separator = DefaultSeparator
	}
	if opts.Metadata == "" {
		opts.Metadata = ModeStrip
	}
	return &Compiler{
		index:   index,
		scanner: src,
		logger:  logger.WithComponent("compiler"),
		opts:    opts,
	}
}

// Compile resolves the configured entry and assembles the final document.
func (c *Compiler) Compile(ctx context.Context) (*Result, error) {
	started := time.Now()

	if c.opts.Entry == "" {
		return nil, &tangleerrors.MissingEntryError{}
	}

	entryPath, err := normalizePath(c.opts.Entry)
	if err != nil {
		return nil, err
	}

	state := newResolutionState()
	rendered, err := c.resolveFile(ctx, entryPath, state)
	if err != nil {
		return nil, err
	}

	entryFile, _, err := c.lookup(ctx, entryPath)
	if err != nil {
		return nil, err
	}

	output, err := assemble(rendered, entryFile, c.opts.Metadata)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Output:        output,
		FilesCompiled: len(state.visited),
		Tags:          state.tags(),
		Warnings:      state.warnings,
		Duration:      time.Since(started),
	}
	c.logger.Debug(ctx, "compilation finished",
		"entry", entryPath,
		"files", result.FilesCompiled,
		"tags", len(result.Tags),
		"warnings", len(result.Warnings))
	return result, nil
}

// resolveFile renders one file to plain text, recursing into every directive
// it contains. This is the recursive core of the engine.
func (c *Compiler) resolveFile(ctx context.Context, rawPath string, state *resolutionState) (string, error) {
	filePath, err := normalizePath(rawPath)
	if err != nil {
		return "", err
	}

	if state.onStack(filePath) {
		return "", &tangleerrors.CircularReferenceError{Chain: state.cycleChain(filePath)}
	}
	if c.opts.MaxDepth > 0 && state.depth() >= c.opts.MaxDepth {
		return "", tangleerrors.NewResolutionError(tangleerrors.ErrCodeMaxDepth, filePath,
			fmt.Sprintf("recursion depth exceeds limit %d", c.opts.MaxDepth), nil)
	}

	file, fromDisk, err := c.lookup(ctx, filePath)
	if err != nil {
		return "", err
	}
	if fromDisk {
		c.logger.Debug(ctx, "resolved outside index via disk fallback", "path", filePath)
	}

	state.push(filePath)
	defer state.pop()

	return c.render(ctx, file, state)
}

// lookup finds a file in the index, falling back to a direct disk read for
// paths outside the configured source patterns (the entry file typically).
// The fallback is confined to the root directory by path normalization.
func (c *Compiler) lookup(ctx context.Context, filePath string) (*types.SourceFile, bool, error) {
	if file, ok := c.index.Get(filePath); ok {
		return file, false, nil
	}
	file, err := c.scanner.ScanFile(ctx, c.opts.Root, filePath)
	if err != nil {
		return nil, false, err
	}
	return file, true, nil
}

// sortBucket orders a tag bucket by (order ascending, path ascending). Order
// is the primary key; path is the tie-break that keeps output deterministic
// regardless of bucket insertion order.
func sortBucket(files []*types.SourceFile) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Compiler.Order != files[j].Compiler.Order {
			return files[i].Compiler.Order < files[j].Compiler.Order
		}
		return files[i].Path < files[j].Path
	})
}

// normalizePath normalizes a reference to a forward-slash relative path and
// rejects references escaping the source root.
func normalizePath(p string) (string, error) {
	normalized := path.Clean(strings.ReplaceAll(strings.TrimSpace(p), "\\", "/"))
	if normalized == "." || normalized == "" {
		return "", tangleerrors.NewResolutionError(tangleerrors.ErrCodePathEscape, p, "empty reference path", nil)
	}
	if path.IsAbs(normalized) || normalized == ".." || strings.HasPrefix(normalized, "../") {
		return "", tangleerrors.NewResolutionError(tangleerrors.ErrCodePathEscape, p,
			"reference escapes the source root", nil)
	}
	return normalized, nil
}
