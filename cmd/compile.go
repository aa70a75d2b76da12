package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanglekit/tangle/internal/compiler"
	"github.com/tanglekit/tangle/internal/config"
	"github.com/tanglekit/tangle/internal/logging"
	"github.com/tanglekit/tangle/internal/scanner"
)

var compileCmd = &cobra.Command{
	Use:     "compile [entry]",
	Aliases: []string{"c"},
	Short:   "Compile an entry document into a single markdown file",
	Long: `Compile resolves an entry document recursively: include directives
pull in other files by path or tag, tag iteration expands every file
carrying a tag in (order, path) order, and the assembled document is
written with exactly one trailing newline.

Examples:
  tangle compile agent.md                   # Compile to stdout
  tangle compile agent.md -o AGENT.md       # Compile to a file
  tangle compile agent.md -r docs -s '**/*.md'
  tangle compile agent.md --metadata preserve
  tangle compile agent.md --strict-tags --stats`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

var (
	compileRoot      string
	compileSources   []string
	compileSeparator string
	compileMetadata  string
	compileOutput    string
	compileStrict    bool
	compileMaxDepth  int
	compileStats     bool
)

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileRoot, "root", "r", "", "source root directory")
	compileCmd.Flags().StringSliceVarP(&compileSources, "source", "s", nil, "glob pattern selecting source files (repeatable)")
	compileCmd.Flags().StringVar(&compileSeparator, "separator", "", "separator between tag-include fragments")
	compileCmd.Flags().StringVarP(&compileMetadata, "metadata", "m", "", "frontmatter handling: strip or preserve")
	compileCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output file (default stdout)")
	compileCmd.Flags().BoolVar(&compileStrict, "strict-tags", false, "fail when a tag include matches no sources")
	compileCmd.Flags().IntVar(&compileMaxDepth, "max-depth", 0, "maximum include depth (0 = unlimited)")
	compileCmd.Flags().BoolVar(&compileStats, "stats", false, "print compilation statistics to stderr")
}

func runCompile(cmd *cobra.Command, args []string) error {
	cfg, err := loadCompileConfig(cmd, args)
	if err != nil {
		return err
	}

	logger := newLogger()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := compileDocument(ctx, cfg, logger)
	if err != nil {
		return err
	}

	for _, warning := range result.Warnings {
		fmt.Fprintln(os.Stderr, "Warning:", warning)
	}

	if compileOutput != "" {
		if err := os.WriteFile(compileOutput, []byte(result.Output), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	} else {
		fmt.Print(result.Output)
	}

	if compileStats {
		printStats(cfg, result)
	}
	return nil
}

// loadCompileConfig loads configuration and layers the compile command's
// flags over it. Only flags the user actually set override file values.
func loadCompileConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(args) > 0 {
		cfg.Compile.Entry = args[0]
	}
	flags := cmd.Flags()
	if flags.Changed("root") {
		cfg.Sources.Root = compileRoot
	}
	if flags.Changed("source") {
		cfg.Sources.Patterns = compileSources
	}
	if flags.Changed("separator") {
		cfg.Output.Separator = compileSeparator
	}
	if flags.Changed("metadata") {
		cfg.Output.Metadata = compileMetadata
	}
	if flags.Changed("output") {
		cfg.Output.Path = compileOutput
	} else {
		compileOutput = cfg.Output.Path
	}
	if flags.Changed("strict-tags") {
		cfg.Compile.StrictTags = compileStrict
	}
	if flags.Changed("max-depth") {
		cfg.Compile.MaxDepth = compileMaxDepth
	}

	if cfg.Compile.Entry == "" {
		return nil, fmt.Errorf("no entry document: pass one as an argument or set compile.entry in .tangle.yml")
	}
	switch strings.ToLower(cfg.Output.Metadata) {
	case "", "strip", "preserve":
	default:
		return nil, fmt.Errorf("invalid metadata mode %q (must be strip or preserve)", cfg.Output.Metadata)
	}
	return cfg, nil
}

// compileDocument scans the source tree and runs one compilation. It is
// shared by the compile, watch, and serve commands.
func compileDocument(ctx context.Context, cfg *config.Config, logger logging.Logger) (*compiler.Result, error) {
	src := scanner.NewSourceScanner(logger)
	src.Excludes = append(src.Excludes, cfg.Sources.Excludes...)
	index, err := src.BuildIndex(ctx, cfg.Sources.Root, cfg.Sources.Patterns)
	if err != nil {
		return nil, err
	}

	comp := compiler.New(index, src, logger, compiler.Options{
		Root:             cfg.Sources.Root,
		Entry:            cfg.Compile.Entry,
		Separator:        cfg.Output.Separator,
		Metadata:         compiler.MetadataMode(strings.ToLower(cfg.Output.Metadata)),
		AgentName:        cfg.Agent.Name,
		AgentDescription: cfg.Agent.Description,
		StrictTags:       cfg.Compile.StrictTags,
		MaxDepth:         cfg.Compile.MaxDepth,
	})
	return comp.Compile(ctx)
}

func printStats(cfg *config.Config, result *compiler.Result) {
	fmt.Fprintf(os.Stderr, "\nCompiled %s: %d files, %d bytes in %s",
		cfg.Compile.Entry, result.FilesCompiled, len(result.Output), result.Duration.Round(time.Millisecond))
	if len(result.Tags) > 0 {
		fmt.Fprintf(os.Stderr, ", tags: %s", strings.Join(result.Tags, ", "))
	}
	fmt.Fprintln(os.Stderr)
}
