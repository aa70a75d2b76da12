package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanglekit/tangle/internal/compiler"
	"github.com/tanglekit/tangle/internal/server"
	"github.com/tanglekit/tangle/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve [entry]",
	Aliases: []string{"s"},
	Short:   "Preview the compiled document with live reload",
	Long: `Serve starts a local HTTP server that shows the compiled document
and reloads the browser over WebSocket whenever a source file changes.

Examples:
  tangle serve agent.md
  tangle serve agent.md --port 8080
  tangle serve agent.md --host 0.0.0.0 --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&compileRoot, "root", "r", "", "source root directory")
	serveCmd.Flags().StringSliceVarP(&compileSources, "source", "s", nil, "glob pattern selecting source files (repeatable)")
	serveCmd.Flags().StringVar(&compileSeparator, "separator", "", "separator between tag-include fragments")
	serveCmd.Flags().StringVarP(&compileMetadata, "metadata", "m", "", "frontmatter handling: strip or preserve")
	serveCmd.Flags().BoolVar(&compileStrict, "strict-tags", false, "fail when a tag include matches no sources")
	serveCmd.Flags().IntVar(&compileMaxDepth, "max-depth", 0, "maximum include depth (0 = unlimited)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind the preview server to")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to bind the preview server to")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadCompileConfig(cmd, args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	logger := newLogger()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	compile := func(ctx context.Context) (*compiler.Result, error) {
		return compileDocument(ctx, cfg, logger)
	}
	preview := server.New(cfg, compile, logger)

	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	fw, err := watcher.New(cfg.Sources.Root, cfg.Sources.Patterns, debounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Stop()

	fw.AddHandler(func(events []watcher.ChangeEvent) {
		preview.Refresh(ctx)
	})
	if err := fw.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	return preview.Start(ctx)
}
