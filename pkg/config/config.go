// Package config holds the run configuration for the downloader and its
// layered loading: defaults, YAML config file, .env / environment variables,
// then command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for a download run.
type Config struct {
	// Download settings
	Download DownloadConfig `yaml:"download" json:"download"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Search behavior
	Search SearchConfig `yaml:"search" json:"search"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DownloadConfig holds settings for the download phase.
type DownloadConfig struct {
	SimultaneousDownloads int           `yaml:"simultaneous_downloads" json:"simultaneous_downloads"`
	Timeout               time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries            int           `yaml:"max_retries" json:"max_retries"`
}

// OutputConfig holds settings for where and how files are stored.
type OutputConfig struct {
	// Directory is the base output directory. Files land under
	// <directory>/<source>/<tag query>/.
	Directory string `yaml:"directory" json:"directory"`

	// SaveAsID names files by post ID instead of MD5 digest.
	SaveAsID bool `yaml:"save_as_id" json:"save_as_id"`

	// CBZ bundles the whole run into a single .cbz archive instead of
	// loose files.
	CBZ bool `yaml:"cbz" json:"cbz"`
}

// SearchConfig holds settings for the extraction phase.
type SearchConfig struct {
	SafeMode         bool `yaml:"safe_mode" json:"safe_mode"`
	DisableBlacklist bool `yaml:"disable_blacklist" json:"disable_blacklist"`
	ExcludeVideos    bool `yaml:"exclude_videos" json:"exclude_videos"`

	// Limit caps the number of posts collected; 0 means no limit.
	Limit int `yaml:"limit" json:"limit"`

	// StartPage offsets pagination; 0 starts from the first page.
	StartPage int `yaml:"start_page" json:"start_page"`

	// Update makes the run incremental: only posts newer than the last
	// completed run's marker are downloaded.
	Update bool `yaml:"update" json:"update"`

	// ForcedExtension keeps only posts with this file extension; empty
	// keeps everything.
	ForcedExtension string `yaml:"forced_extension" json:"forced_extension"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			SimultaneousDownloads: 3,
			Timeout:               60 * time.Second,
			MaxRetries:            3,
		},
		Output: OutputConfig{
			Directory: ".",
		},
		Search: SearchConfig{},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides configuration from BOORUDL_* environment variables.
func (c *Config) LoadFromEnv() error {
	if dir := os.Getenv("BOORUDL_OUTPUT_DIR"); dir != "" {
		c.Output.Directory = dir
	}
	if sim := os.Getenv("BOORUDL_SIMULTANEOUS_DOWNLOADS"); sim != "" {
		var val int
		fmt.Sscanf(sim, "%d", &val)
		if val > 0 {
			c.Download.SimultaneousDownloads = val
		}
	}
	if safe := os.Getenv("BOORUDL_SAFE_MODE"); safe != "" {
		c.Search.SafeMode = strings.ToLower(safe) == "true"
	}
	if ext := os.Getenv("BOORUDL_EXTENSION"); ext != "" {
		c.Search.ForcedExtension = ext
	}
	if level := os.Getenv("BOORUDL_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the standard locations; a missing file is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches the standard config locations in precedence order.
func (c *Config) findConfigFile() string {
	locations := []string{
		".boorudl.yaml",
		".boorudl.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "boorudl", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "boorudl", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks the assembled configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Download.SimultaneousDownloads < 1 {
		errs = append(errs, errors.New("simultaneous downloads must be at least 1"))
	}
	if c.Download.SimultaneousDownloads > 20 {
		errs = append(errs, errors.New("simultaneous downloads must not exceed 20"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Search.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Search.StartPage < 0 {
		errs = append(errs, errors.New("start page cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Load assembles configuration from all sources.
// Precedence: flags > environment > .env file > config file > defaults.
// Flag merging happens in the CLI layer after Load returns.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".boorudl.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return config, nil
}

// ConfigDir returns the platform config directory for the application,
// creating it if needed. Credential caches and the blacklist file live here.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}

	dir := filepath.Join(base, "boorudl")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return dir, nil
}
