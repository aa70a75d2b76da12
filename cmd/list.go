package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tanglekit/tangle/internal/config"
	"github.com/tanglekit/tangle/internal/scanner"
	"github.com/tanglekit/tangle/internal/types"
	"gopkg.in/yaml.v3"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List all indexed source files",
	Long: `List every source file matched by the configured glob patterns,
with the tags, ordering, and description declared in its frontmatter.

Examples:
  tangle list                     # Table of all sources
  tangle list -f json             # Output as JSON
  tangle list --tag instructions  # Only sources carrying a tag`,
	RunE: runList,
}

var (
	listFormat string
	listTag    string
)

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, json, yaml)")
	listCmd.Flags().StringVar(&listTag, "tag", "", "only list sources carrying this tag")
}

// listEntry is the serializable view of one indexed source.
type listEntry struct {
	Path        string   `json:"path" yaml:"path"`
	Title       string   `json:"title" yaml:"title"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Order       int      `json:"order" yaml:"order"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Hash        string   `json:"hash" yaml:"hash"`
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src := scanner.NewSourceScanner(logger)
	src.Excludes = append(src.Excludes, cfg.Sources.Excludes...)
	index, err := src.BuildIndex(ctx, cfg.Sources.Root, cfg.Sources.Patterns)
	if err != nil {
		return err
	}

	var files []*types.SourceFile
	if listTag != "" {
		files = index.Tagged(listTag)
	} else {
		for _, path := range index.Paths() {
			if file, ok := index.Get(path); ok {
				files = append(files, file)
			}
		}
	}

	if len(files) == 0 {
		fmt.Println("No sources found.")
		return nil
	}

	entries := make([]listEntry, 0, len(files))
	for _, file := range files {
		entries = append(entries, listEntry{
			Path:        file.Path,
			Title:       file.Title(),
			Tags:        file.Compiler.Tags,
			Order:       file.Compiler.Order,
			Description: file.Compiler.Description,
			Hash:        file.Hash,
		})
	}

	switch strings.ToLower(listFormat) {
	case "table":
		return outputListTable(entries)
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	case "yaml":
		return yaml.NewEncoder(os.Stdout).Encode(entries)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json, yaml)", listFormat)
	}
}

func outputListTable(entries []listEntry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTAGS\tORDER\tHASH\tDESCRIPTION")
	for _, entry := range entries {
		order := fmt.Sprintf("%d", entry.Order)
		if entry.Order == types.DefaultOrder {
			order = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			entry.Path, strings.Join(entry.Tags, ","), order, entry.Hash, entry.Description)
	}
	return w.Flush()
}
