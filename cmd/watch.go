package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanglekit/tangle/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [entry]",
	Aliases: []string{"w"},
	Short:   "Recompile the entry document on file changes",
	Long: `Watch the source root and recompile whenever a matched file changes.
Rapid bursts of changes are debounced into a single recompile.

Examples:
  tangle watch agent.md -o AGENT.md
  tangle watch agent.md -o AGENT.md --debounce 500`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var watchDebounceMs int

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&compileRoot, "root", "r", "", "source root directory")
	watchCmd.Flags().StringSliceVarP(&compileSources, "source", "s", nil, "glob pattern selecting source files (repeatable)")
	watchCmd.Flags().StringVar(&compileSeparator, "separator", "", "separator between tag-include fragments")
	watchCmd.Flags().StringVarP(&compileMetadata, "metadata", "m", "", "frontmatter handling: strip or preserve")
	watchCmd.Flags().StringVarP(&compileOutput, "output", "o", "", "output file (default stdout)")
	watchCmd.Flags().BoolVar(&compileStrict, "strict-tags", false, "fail when a tag include matches no sources")
	watchCmd.Flags().IntVar(&compileMaxDepth, "max-depth", 0, "maximum include depth (0 = unlimited)")
	watchCmd.Flags().IntVar(&watchDebounceMs, "debounce", 0, "debounce window in milliseconds")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadCompileConfig(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.DebounceMs = watchDebounceMs
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lastOutput string
	compiledOnce := false
	recompile := func() {
		result, err := compileDocument(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(os.Stderr, "Warning:", warning)
		}
		if compiledOnce && result.Output == lastOutput {
			logger.Debug(ctx, "Output unchanged, skipping write")
			return
		}
		lastOutput = result.Output
		compiledOnce = true
		if compileOutput != "" {
			if err := os.WriteFile(compileOutput, []byte(result.Output), 0644); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return
			}
			fmt.Fprintf(os.Stderr, "Compiled %s -> %s (%d files)\n",
				cfg.Compile.Entry, compileOutput, result.FilesCompiled)
		} else {
			fmt.Print(result.Output)
		}
	}

	// Initial compile so the output exists before the first change.
	recompile()

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	fw, err := watcher.New(cfg.Sources.Root, cfg.Sources.Patterns, debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddHandler(func(events []watcher.ChangeEvent) {
		for _, event := range events {
			logger.Debug(ctx, "File changed", "path", event.Path, "type", event.Type.String())
		}
		recompile()
	})

	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n", cfg.Sources.Root)
	<-ctx.Done()
	return nil
}
