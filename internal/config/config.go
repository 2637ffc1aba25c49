package config

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Git backends.
const (
	BackendCLI     = "cli"
	BackendLibgit2 = "libgit2"
)

// File listers.
const (
	ListerCommand = "command"
	ListerWalk    = "walk"
)

// State codecs.
const (
	CodecJSON = "json"
	CodecGob  = "gob"
	CodecLZ4  = "lz4"
)

// Config is the top-level configuration struct for filechanges.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Git     GitConfig     `mapstructure:"git"`
	Files   FilesConfig   `mapstructure:"files"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// GitConfig holds git change source settings.
type GitConfig struct {
	Binary  string `mapstructure:"binary"`
	Backend string `mapstructure:"backend"`
	Branch  string `mapstructure:"branch"`
}

// FilesConfig holds file change source settings.
type FilesConfig struct {
	FindBinary    string        `mapstructure:"find_binary"`
	Lister        string        `mapstructure:"lister"`
	StateDir      string        `mapstructure:"state_dir"`
	Codec         string        `mapstructure:"codec"`
	WatchInterval time.Duration `mapstructure:"watch_interval"`
}

// OutputConfig holds rendering settings.
type OutputConfig struct {
	Format     string `mapstructure:"format"`
	Color      bool   `mapstructure:"color"`
	SkipVendor bool   `mapstructure:"skip_vendor"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// MetricsConfig holds the diagnostics endpoint settings.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Sentinel errors for configuration validation.
var (
	// ErrInvalidBackend indicates git.backend is neither cli nor libgit2.
	ErrInvalidBackend = errors.New("git.backend must be cli or libgit2")
	// ErrEmptyBranch indicates git.branch is empty.
	ErrEmptyBranch = errors.New("git.branch must not be empty")
	// ErrInvalidLister indicates files.lister is neither command nor walk.
	ErrInvalidLister = errors.New("files.lister must be command or walk")
	// ErrInvalidCodec indicates files.codec is not json, gob or lz4.
	ErrInvalidCodec = errors.New("files.codec must be json, gob or lz4")
	// ErrInvalidWatchInterval indicates files.watch_interval is negative.
	ErrInvalidWatchInterval = errors.New("files.watch_interval must be non-negative")
	// ErrInvalidFormat indicates output.format is not a known format.
	ErrInvalidFormat = errors.New("output.format must be json, yaml, text or table")
	// ErrInvalidLogLevel indicates logging.level is unknown.
	ErrInvalidLogLevel = errors.New("logging.level must be debug, info, warn or error")
)

var (
	validBackends = []string{BackendCLI, BackendLibgit2}
	validListers  = []string{ListerCommand, ListerWalk}
	validCodecs   = []string{CodecJSON, CodecGob, CodecLZ4}
	validFormats  = []string{"json", "yaml", "text", "table"}
	validLevels   = []string{"debug", "info", "warn", "error"}
)

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	gitErr := c.validateGit()
	if gitErr != nil {
		return gitErr
	}

	filesErr := c.validateFiles()
	if filesErr != nil {
		return filesErr
	}

	if !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if !slices.Contains(validLevels, c.Logging.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level)
	}

	return nil
}

func (c *Config) validateGit() error {
	if !slices.Contains(validBackends, c.Git.Backend) {
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Git.Backend)
	}

	if c.Git.Branch == "" {
		return ErrEmptyBranch
	}

	return nil
}

func (c *Config) validateFiles() error {
	if !slices.Contains(validListers, c.Files.Lister) {
		return fmt.Errorf("%w: %q", ErrInvalidLister, c.Files.Lister)
	}

	if !slices.Contains(validCodecs, c.Files.Codec) {
		return fmt.Errorf("%w: %q", ErrInvalidCodec, c.Files.Codec)
	}

	if c.Files.WatchInterval < 0 {
		return ErrInvalidWatchInterval
	}

	return nil
}
