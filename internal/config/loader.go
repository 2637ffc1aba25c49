package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// configName is the config file name without extension.
const configName = ".filechanges"

// configType is the config file format.
const configType = "yaml"

// envPrefix is the environment variable prefix for filechanges settings.
const envPrefix = "FILECHANGES"

// envKeySeparator is the nested key separator in environment variable names.
const envKeySeparator = "_"

// LoadConfig loads configuration from file, env vars, and defaults.
// If configPath is non-empty, it is used as the explicit config file path.
// Otherwise, the config file is searched in CWD and $HOME.
// Missing config file is not an error; defaults are used.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(home)
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

// Default returns the configuration used when no file or env var is set.
func Default() Config {
	return Config{
		Git: GitConfig{
			Binary:  DefaultGitBinary,
			Backend: DefaultGitBackend,
			Branch:  DefaultGitBranch,
		},
		Files: FilesConfig{
			FindBinary:    DefaultFindBinary,
			Lister:        DefaultFilesLister,
			StateDir:      DefaultStateDir,
			Codec:         DefaultCodec,
			WatchInterval: DefaultWatchInterval,
		},
		Output: OutputConfig{
			Format:     DefaultOutputFormat,
			Color:      DefaultOutputColor,
			SkipVendor: DefaultOutputSkipVendor,
		},
		Logging: LoggingConfig{
			Level: DefaultLogLevel,
			JSON:  DefaultLogJSON,
		},
		Metrics: MetricsConfig{
			Addr: DefaultMetricsAddr,
		},
	}
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("git.binary", DefaultGitBinary)
	viperCfg.SetDefault("git.backend", DefaultGitBackend)
	viperCfg.SetDefault("git.branch", DefaultGitBranch)

	viperCfg.SetDefault("files.find_binary", DefaultFindBinary)
	viperCfg.SetDefault("files.lister", DefaultFilesLister)
	viperCfg.SetDefault("files.state_dir", DefaultStateDir)
	viperCfg.SetDefault("files.codec", DefaultCodec)
	viperCfg.SetDefault("files.watch_interval", DefaultWatchInterval)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.color", DefaultOutputColor)
	viperCfg.SetDefault("output.skip_vendor", DefaultOutputSkipVendor)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("metrics.addr", DefaultMetricsAddr)
}
