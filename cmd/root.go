// Package cmd provides the command-line interface for tangle.
//
// Configuration System:
//
//	The CLI supports flexible configuration through multiple sources with
//	clear precedence:
//	1. Command-line flags (--config, --entry, etc.) - highest priority
//	2. TANGLE_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (TANGLE_SERVER_PORT, etc.)
//	4. Configuration files (.tangle.yml) - lowest priority
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tanglekit/tangle/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tangle",
	Short: "A recursive markdown composition compiler",
	Long: `Tangle compiles a tree of markdown sources into one document.
Source files declare tags and ordering in YAML frontmatter; documents pull
other documents in with include directives that resolve recursively.

Key Features:
  • Glob-based source discovery with frontmatter indexing
  • Recursive include-by-path and include-by-tag resolution
  • Per-tag iteration with stable (order, path) sorting
  • Cycle detection with the full reference chain reported
  • Watch mode and a live-reload preview server

Quick Start:
  tangle compile agent.md         Compile a document to stdout
  tangle list                     List all indexed sources
  tangle watch agent.md           Recompile on file changes
  tangle serve agent.md           Live preview in the browser`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .tangle.yml, can also use TANGLE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig initializes the configuration system.
//
// Configuration loading priority (highest to lowest):
//  1. --config flag: explicitly specified config file path
//  2. TANGLE_CONFIG_FILE environment variable: custom config file path
//  3. Default: .tangle.yml in the current directory
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("TANGLE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tangle")
	}

	// Automatic environment variable binding with the TANGLE_ prefix,
	// e.g. TANGLE_SERVER_PORT, TANGLE_COMPILE_ENTRY.
	viper.SetEnvPrefix("TANGLE")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the CLI logger from the persistent --log-level flag.
func newLogger() logging.Logger {
	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.ParseLevel(viper.GetString("log-level"))
	return logging.NewLogger(logConfig)
}
