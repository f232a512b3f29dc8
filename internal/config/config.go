// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete configuration.
type Config struct {
	Parser  ParserConfig  `mapstructure:"parser" yaml:"parser"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	MCP     MCPConfig     `mapstructure:"mcp" yaml:"mcp"`
}

// ParserConfig contains parsing limits.
type ParserConfig struct {
	Language    string        `mapstructure:"language" yaml:"language"`           // registered language name, empty = by extension
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`             // per-parse timeout, 0 = none
	MaxFileSize string        `mapstructure:"max_file_size" yaml:"max_file_size"` // e.g., "1MB"
}

// WatchConfig contains file watcher configuration.
type WatchConfig struct {
	Include  []string      `mapstructure:"include" yaml:"include"` // glob patterns to include
	Exclude  []string      `mapstructure:"exclude" yaml:"exclude"` // glob patterns to exclude
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// StoreConfig contains parse history store configuration.
type StoreConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"` // relative to the project root, empty = default
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// MCPConfig contains MCP server configuration.
type MCPConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Parser: ParserConfig{
			Timeout:     10 * time.Second,
			MaxFileSize: "1MB",
		},
		Watch: WatchConfig{
			Include: []string{"**/*.as"},
			Exclude: []string{
				"**/.git/**", "**/node_modules/**", "**/bin/**", "**/obj/**",
				"**/" + dirName + "/**",
			},
			Debounce: 500 * time.Millisecond,
		},
		Store: StoreConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		MCP: MCPConfig{
			Name: "tree-sitter-actionscript",
		},
	}
}

const dirName = ".tree-sitter-actionscript"

// ConfigDir returns the path to the .tree-sitter-actionscript directory.
func ConfigDir(projectRoot string) string {
	return filepath.Join(projectRoot, dirName)
}

// ConfigPath returns the path to config.yaml.
func ConfigPath(projectRoot string) string {
	return filepath.Join(ConfigDir(projectRoot), "config.yaml")
}

// HistoryDBPath returns the path to the parse history database.
func HistoryDBPath(projectRoot string, cfg *Config) string {
	if cfg != nil && cfg.Store.Path != "" {
		if filepath.IsAbs(cfg.Store.Path) {
			return cfg.Store.Path
		}
		return filepath.Join(projectRoot, cfg.Store.Path)
	}
	return filepath.Join(ConfigDir(projectRoot), "history.db")
}

// Load loads configuration from file, falling back to defaults.
// Environment variables such as TSAS_LOGGING_LEVEL override file values.
func Load(projectRoot string) (*Config, []string, error) {
	cfg := DefaultConfig()
	warnings := []string{}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TSAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	configPath := ConfigPath(projectRoot)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		warnings = append(warnings, "No config file found, using defaults")
	} else {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Apply defaults for missing values
	if cfg.Parser.MaxFileSize == "" {
		cfg.Parser.MaxFileSize = "1MB"
	}
	if len(cfg.Watch.Include) == 0 {
		cfg.Watch.Include = []string{"**/*.as"}
		warnings = append(warnings, "No watch include patterns, using **/*.as")
	}
	if cfg.Watch.Debounce <= 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.MCP.Name == "" {
		cfg.MCP.Name = "tree-sitter-actionscript"
	}

	return cfg, warnings, nil
}

// setDefaults registers every key so AutomaticEnv can override values that
// are absent from the file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("parser.language", cfg.Parser.Language)
	v.SetDefault("parser.timeout", cfg.Parser.Timeout)
	v.SetDefault("parser.max_file_size", cfg.Parser.MaxFileSize)
	v.SetDefault("watch.include", cfg.Watch.Include)
	v.SetDefault("watch.exclude", cfg.Watch.Exclude)
	v.SetDefault("watch.debounce", cfg.Watch.Debounce)
	v.SetDefault("store.enabled", cfg.Store.Enabled)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("mcp.name", cfg.MCP.Name)
}

// Save saves configuration to file.
func Save(projectRoot string, cfg *Config) error {
	configDir := ConfigDir(projectRoot)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(ConfigPath(projectRoot))
	v.SetConfigType("yaml")

	v.Set("parser", map[string]any{
		"language":      cfg.Parser.Language,
		"timeout":       cfg.Parser.Timeout.String(),
		"max_file_size": cfg.Parser.MaxFileSize,
	})
	v.Set("watch", map[string]any{
		"include":  cfg.Watch.Include,
		"exclude":  cfg.Watch.Exclude,
		"debounce": cfg.Watch.Debounce.String(),
	})
	v.Set("store", cfg.Store)
	v.Set("logging", cfg.Logging)
	v.Set("mcp", cfg.MCP)

	return v.WriteConfig()
}

// Validate validates the configuration.
func Validate(cfg *Config) []error {
	var errs []error

	if cfg.Parser.Timeout < 0 {
		errs = append(errs, fmt.Errorf("invalid parser timeout: %s", cfg.Parser.Timeout))
	}
	if _, err := ParseSize(cfg.Parser.MaxFileSize); err != nil {
		errs = append(errs, err)
	}

	for _, p := range append(append([]string{}, cfg.Watch.Include...), cfg.Watch.Exclude...) {
		if _, err := filepath.Match(globTail(p), "x"); err != nil {
			errs = append(errs, fmt.Errorf("invalid watch pattern: %s", p))
		}
	}
	if cfg.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("invalid watch debounce: %s", cfg.Watch.Debounce))
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "": true,
	}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, fmt.Errorf("invalid logging level: %s (valid: debug, info, warn, error)", cfg.Logging.Level))
	}
	validFormats := map[string]bool{
		"text": true, "json": true, "": true,
	}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Errorf("invalid logging format: %s (valid: text, json)", cfg.Logging.Format))
	}

	return errs
}

// Copy creates a deep copy of the config.
// Used for runtime modifications without affecting the original.
func (c *Config) Copy() *Config {
	copy := *c

	if c.Watch.Include != nil {
		copy.Watch.Include = append([]string(nil), c.Watch.Include...)
	}
	if c.Watch.Exclude != nil {
		copy.Watch.Exclude = append([]string(nil), c.Watch.Exclude...)
	}

	return &copy
}
