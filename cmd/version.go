package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanglekit/tangle/internal/version"
)

var versionFormat string

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for tangle including the semantic
version, git commit hash, build timestamp, Go version, and platform.

Examples:
  tangle version               # Show version info
  tangle version --format json # Output as JSON`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "output format (text, json)")
}

func runVersion(cmd *cobra.Command, args []string) error {
	info := version.Get()

	switch versionFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	case "text":
		fmt.Printf("tangle %s\n", info.Version)
		fmt.Printf("  commit:     %s\n", info.GitCommit)
		fmt.Printf("  built:      %s\n", info.BuildTime)
		fmt.Printf("  go version: %s\n", info.GoVersion)
		fmt.Printf("  platform:   %s\n", info.Platform)
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}
