// Package config provides configuration management for tangle using Viper
// for flexible loading from files, environment variables and command-line
// flags.
//
// The configuration system supports YAML files (.tangle.yml), environment
// variable overrides with the TANGLE_ prefix, and validation. It manages
// source scanning patterns, output shaping, composition identity and the
// watch/serve development surfaces.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Sources SourcesConfig `yaml:"sources"`
	Output  OutputConfig  `yaml:"output"`
	Agent   AgentConfig   `yaml:"agent"`
	Compile CompileConfig `yaml:"compile"`
	Server  ServerConfig  `yaml:"server"`
	Watch   WatchConfig   `yaml:"watch"`
}

type SourcesConfig struct {
	// Root is the directory glob patterns are expanded against.
	Root string `yaml:"root"`
	// Patterns are doublestar globs selecting source files.
	Patterns []string `yaml:"patterns"`
	// Excludes are directory names skipped during scanning, added to the
	// scanner's built-in exclusions (vendor, node_modules, .git, .tangle).
	Excludes []string `yaml:"excludes"`
}

type OutputConfig struct {
	// Separator joins tag-include fragments.
	Separator string `yaml:"separator"`
	// Metadata is "strip" or "preserve".
	Metadata string `yaml:"metadata"`
	// Path is the output file; empty means stdout.
	Path string `yaml:"path"`
}

type AgentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type CompileConfig struct {
	// Entry is the file that begins compilation, relative to the root.
	Entry string `yaml:"entry"`
	// StrictTags escalates empty tag buckets to errors.
	StrictTags bool `yaml:"strict_tags"`
	// MaxDepth caps recursion depth; zero disables the cap.
	MaxDepth int `yaml:"max_depth"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type WatchConfig struct {
	// DebounceMs groups rapid file changes before recompiling.
	DebounceMs int `yaml:"debounce_ms"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Handle slice and nested values set via viper (workaround for viper
	// slice/bool handling through Unmarshal).
	if viper.IsSet("sources.root") {
		config.Sources.Root = viper.GetString("sources.root")
	}
	if viper.IsSet("sources.patterns") {
		patterns := viper.GetStringSlice("sources.patterns")
		if len(patterns) > 0 {
			config.Sources.Patterns = patterns
		}
	}
	if viper.IsSet("sources.excludes") {
		config.Sources.Excludes = viper.GetStringSlice("sources.excludes")
	}
	if viper.IsSet("compile.entry") {
		config.Compile.Entry = viper.GetString("compile.entry")
	}
	if viper.IsSet("compile.strict_tags") {
		config.Compile.StrictTags = viper.GetBool("compile.strict_tags")
	}
	if viper.IsSet("compile.max_depth") {
		config.Compile.MaxDepth = viper.GetInt("compile.max_depth")
	}
	if viper.IsSet("output.separator") {
		config.Output.Separator = viper.GetString("output.separator")
	}
	if viper.IsSet("output.metadata") {
		config.Output.Metadata = viper.GetString("output.metadata")
	}
	if viper.IsSet("agent.name") {
		config.Agent.Name = viper.GetString("agent.name")
	}
	if viper.IsSet("agent.description") {
		config.Agent.Description = viper.GetString("agent.description")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Sources.Root == "" {
		config.Sources.Root = "."
	}
	if len(config.Sources.Patterns) == 0 {
		config.Sources.Patterns = []string{"**/*.md"}
	}
	if config.Output.Separator == "" {
		config.Output.Separator = "\n\n"
	}
	if config.Output.Metadata == "" {
		config.Output.Metadata = "strip"
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Port == 0 {
		config.Server.Port = 7333
	}
	if config.Watch.DebounceMs == 0 {
		config.Watch.DebounceMs = 300
	}
}

// validateConfig validates configuration values for security and correctness.
func validateConfig(config *Config) error {
	if err := validateSourcesConfig(&config.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}
	if err := validateOutputConfig(&config.Output); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}
	if config.Compile.MaxDepth < 0 {
		return fmt.Errorf("compile config: max_depth must not be negative")
	}
	return nil
}

func validateSourcesConfig(config *SourcesConfig) error {
	for _, pattern := range config.Patterns {
		if pattern == "" {
			return fmt.Errorf("empty source pattern")
		}
		if strings.Contains(filepath.ToSlash(pattern), "..") {
			return fmt.Errorf("pattern contains traversal: %s", pattern)
		}
	}
	for _, exclude := range config.Excludes {
		if exclude == "" || strings.ContainsAny(exclude, "/\\") {
			return fmt.Errorf("exclude must be a bare directory name, got %q", exclude)
		}
	}
	return nil
}

func validateOutputConfig(config *OutputConfig) error {
	switch config.Metadata {
	case "strip", "preserve":
	default:
		return fmt.Errorf("metadata must be \"strip\" or \"preserve\", got %q", config.Metadata)
	}
	return nil
}

// validateServerConfig validates server configuration values.
func validateServerConfig(config *ServerConfig) error {
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}
	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}
	return nil
}
