// Package config holds the tool configuration read from .dbascode.yaml, the
// DBASCODE_ environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables, e.g. DBASCODE_DATABASE_URL
const EnvPrefix = "DBASCODE"

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	State    StateConfig    `mapstructure:"state"`
	Output   OutputConfig   `mapstructure:"output"`
	Plugins  []string       `mapstructure:"plugins"`
	Verbose  bool           `mapstructure:"verbose"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type StateConfig struct {
	// HistoryURL is the sqlite:// or mysql:// URL of the migration history
	HistoryURL string `mapstructure:"history_url"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// New returns a viper instance with defaults, environment binding and the
// config file loaded. Without cfgFile .dbascode.yaml is searched in the
// working directory and the home directory; a missing file is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("database.url", "")
	v.SetDefault("state.history_url", "")
	v.SetDefault("output.format", "text")
	v.SetDefault("output.file", "")
	v.SetDefault("plugins", []string{})
	v.SetDefault("verbose", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(".dbascode")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	switch cfg.Output.Format {
	case "text", "markdown", "sql":
	default:
		return nil, fmt.Errorf("unsupported output format: %s", cfg.Output.Format)
	}
	return &cfg, nil
}
