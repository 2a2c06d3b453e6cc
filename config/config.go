// Package config resolves the good-bots settings from command line flags,
// GOOD_BOTS_* environment variables and built-in defaults, in that order.
package config

import (
	"fmt"
	"net/url"
	"strings"

	logging "github.com/ipfs/go-log/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/bbusenius/good-bots/feed"
)

// EnvPrefix is prepended to every environment variable, e.g. GOOD_BOTS_INDEX_URL.
const EnvPrefix = "GOOD_BOTS"

// Keys name both the command line flags and, upper-cased with "_" for "-",
// the environment variables after EnvPrefix.
const (
	// KeyPath is the directory that receives the default output file.
	KeyPath = "path"
	// KeyOutput is the full output file path.
	KeyOutput = "output"
	// KeyAdditionalBots is the additional bots JSON file.
	KeyAdditionalBots = "additional-bots"
	// KeyIndexURL is the tracker index document.
	KeyIndexURL = "index-url"
	// KeyMetricsFile is the Prometheus textfile written after a successful run.
	KeyMetricsFile = "metrics-file"
	// KeyLogLevel is the level applied to every logger.
	KeyLogLevel = "log-level"
)

// DefaultLogLevel keeps routine diagnostics visible without debug noise.
const DefaultLogLevel = "warn"

// Config holds the resolved settings of a run.
type Config struct {
	// Path is a directory that receives bot_ips_config.py.
	Path string `mapstructure:"path"`
	// Output is a full output file path. Path takes precedence.
	Output string `mapstructure:"output"`
	// AdditionalBots replaces the bundled and working directory lookup
	// of additional_bots.json when set.
	AdditionalBots string `mapstructure:"additional-bots"`
	IndexURL       string `mapstructure:"index-url"`
	// MetricsFile is left empty to skip writing metrics.
	MetricsFile string `mapstructure:"metrics-file"`
	LogLevel    string `mapstructure:"log-level"`
}

// setDefaults registers every key so AutomaticEnv can fill it in.
func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyPath, "")
	v.SetDefault(KeyOutput, "")
	v.SetDefault(KeyAdditionalBots, "")
	v.SetDefault(KeyIndexURL, feed.DefaultIndexURL)
	v.SetDefault(KeyMetricsFile, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// RegisterFlags adds the flags shared by every command to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyAdditionalBots, "", "additional bots JSON file (default: bundled file, then ./additional_bots.json)")
	fs.String(KeyIndexURL, feed.DefaultIndexURL, "tracker index URL")
	fs.String(KeyLogLevel, DefaultLogLevel, "log level (debug, info, warn, error)")
}

// RegisterOutputFlags adds the flags controlling where results are written.
func RegisterOutputFlags(fs *pflag.FlagSet) {
	fs.StringP(KeyPath, "p", "", "directory to save the bot_ips_config.py file (default: current directory)")
	fs.StringP(KeyOutput, "o", "", "output file path (ignored when --path is set)")
	fs.String(KeyMetricsFile, "", "write run metrics in Prometheus textfile format to this file")
}

// Load builds a Config from fs, falling back to the environment and defaults
// for flags that were not set.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late in a run.
func (c *Config) Validate() error {
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return fmt.Errorf("invalid %s %q: %w", KeyLogLevel, c.LogLevel, err)
	}
	u, err := url.Parse(c.IndexURL)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", KeyIndexURL, c.IndexURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid %s %q: must be an http or https URL", KeyIndexURL, c.IndexURL)
	}
	return nil
}
