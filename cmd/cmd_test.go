package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanglekit/tangle/internal/config"
)

func writeSource(t *testing.T, root, relPath, content string) {
	t.Helper()
	fullPath := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0755))
	require.NoError(t, os.WriteFile(fullPath, []byte(content), 0644))
}

func TestCompileDocumentEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "agent.md", "# Agent\n\n{{include \"parts/intro.md\"}}\n")
	writeSource(t, root, "parts/intro.md", "---\ntangle:\n  tags: [intro]\n---\nWelcome.\n")

	cfg := &config.Config{
		Sources: config.SourcesConfig{Root: root, Patterns: []string{"**/*.md"}},
		Output:  config.OutputConfig{Separator: "\n\n", Metadata: "strip"},
		Compile: config.CompileConfig{Entry: "agent.md"},
	}

	result, err := compileDocument(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, "# Agent\n\nWelcome.\n", result.Output)
	assert.Equal(t, 2, result.FilesCompiled)
}

func TestCompileDocumentMissingEntry(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "other.md", "content\n")

	cfg := &config.Config{
		Sources: config.SourcesConfig{Root: root, Patterns: []string{"**/*.md"}},
		Compile: config.CompileConfig{Entry: "agent.md"},
	}

	_, err := compileDocument(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent.md")
}

func TestLoadCompileConfigEntryFromArgs(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := loadCompileConfig(compileCmd, []string{"agent.md"})
	require.NoError(t, err)
	assert.Equal(t, "agent.md", cfg.Compile.Entry)
}

func TestLoadCompileConfigEntryRequired(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := loadCompileConfig(compileCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry document")
}

func TestLoadCompileConfigInvalidMetadata(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("output.metadata", "keep")

	_, err := loadCompileConfig(compileCmd, []string{"agent.md"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "metadata")
}
