package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tangleerrors "github.com/tanglekit/tangle/internal/errors"
	"github.com/tanglekit/tangle/internal/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildIndex_NoPatterns(t *testing.T) {
	s := NewSourceScanner(nil)

	_, err := s.BuildIndex(context.Background(), t.TempDir(), nil)

	var missing *tangleerrors.MissingSourcesError
	require.ErrorAs(t, err, &missing)
}

func TestBuildIndex_MissingRoot(t *testing.T) {
	s := NewSourceScanner(nil)

	_, err := s.BuildIndex(context.Background(), "/definitely/not/here", []string{"**/*.md"})

	require.Error(t, err)
}

func TestBuildIndex_GlobAndTags(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "entry.md", "# Entry\n")
	writeFile(t, root, "sections/a.md", "---\ntangle:\n  tags: [persona]\n  order: 1\n---\nA\n")
	writeFile(t, root, "sections/deep/b.md", "---\ntangle:\n  tags: [persona, style]\n---\nB\n")
	writeFile(t, root, "notes.txt", "not matched\n")

	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), root, []string{"**/*.md"})

	require.NoError(t, err)
	assert.Equal(t, 3, index.Count())
	assert.Len(t, index.Tagged("persona"), 2)
	assert.Len(t, index.Tagged("style"), 1)

	file, ok := index.Get("sections/deep/b.md")
	require.True(t, ok, "paths must be slash-separated and root-relative")
	assert.Equal(t, "B\n", file.Body)
	assert.NotEmpty(t, file.Hash)
}

func TestBuildIndex_ExcludesVendorDirs(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md", "keep\n")
	writeFile(t, root, "vendor/dep.md", "vendored\n")
	writeFile(t, root, "node_modules/pkg/readme.md", "dep\n")
	writeFile(t, root, ".git/notes.md", "git\n")

	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), root, []string{"**/*.md"})

	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, index.Paths())
}

func TestBuildIndex_OverlappingPatternsDeduplicate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "sections/a.md", "A\n")

	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), root, []string{"**/*.md", "sections/*.md"})

	require.NoError(t, err)
	assert.Equal(t, 1, index.Count())
}

func TestBuildIndex_MalformedFrontmatterKeepsFile(t *testing.T) {
	root := t.TempDir()
	raw := "---\ntitle: [broken\n---\nstill here\n"
	writeFile(t, root, "bad.md", raw)

	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), root, []string{"*.md"})

	require.NoError(t, err, "malformed frontmatter is a soft condition")
	file, ok := index.Get("bad.md")
	require.True(t, ok)
	assert.Equal(t, raw, file.Body, "full raw text kept as body")
	assert.Empty(t, file.Meta)
	assert.Equal(t, types.DefaultOrder, file.Compiler.Order)
}

func TestBuildIndex_InvalidPattern(t *testing.T) {
	root := t.TempDir()

	s := NewSourceScanner(nil)
	_, err := s.BuildIndex(context.Background(), root, []string{"[unclosed"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid source pattern")
}

func TestBuildIndex_LargeBatchUsesWorkers(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		writeFile(t, root, "docs/"+name+".md", "---\ntangle:\n  tags: [bulk]\n---\n"+name+"\n")
	}

	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), root, []string{"docs/*.md"})

	require.NoError(t, err)
	assert.Equal(t, 10, index.Count())
	assert.Len(t, index.Tagged("bulk"), 10)
}

func TestScanFile_Missing(t *testing.T) {
	s := NewSourceScanner(nil)

	_, err := s.ScanFile(context.Background(), t.TempDir(), "ghost.md")

	var notFound *tangleerrors.FileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost.md", notFound.Path)
}

func TestBuildIndex_FixtureTree(t *testing.T) {
	s := NewSourceScanner(nil)
	index, err := s.BuildIndex(context.Background(), "testdata/docs", []string{"**/*.md"})

	require.NoError(t, err)
	assert.Equal(t, 3, index.Count(), "vendor/ content excluded")

	chapters := index.Tagged("chapters")
	require.Len(t, chapters, 2)

	file, ok := index.Get("chapters/configuration.md")
	require.True(t, ok)
	assert.Equal(t, 2, file.Compiler.Order)
	assert.Equal(t, "docs-team", file.Meta.GetString("maintainer"))
}

func TestBuildIndex_CustomExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep/a.md", "A\n")
	writeFile(t, root, "drafts/b.md", "B\n")

	s := NewSourceScanner(nil)
	s.Excludes = append(s.Excludes, "drafts")
	index, err := s.BuildIndex(context.Background(), root, []string{"**/*.md"})

	require.NoError(t, err)
	assert.Equal(t, 1, index.Count())
	_, ok := index.Get("keep/a.md")
	assert.True(t, ok)
}
