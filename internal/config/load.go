package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"prana-chat/internal/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PRANA"

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile is an explicit config path. Empty searches ~/.prana/config.yaml.
	ConfigFile string
	// EnvFile is the dotenv file. Empty means .env in the working directory.
	EnvFile string
	// Flags are bound over every other source when changed.
	Flags *pflag.FlagSet
}

// flagNames maps config keys to command line flags.
var flagNames = map[string]string{
	"base_url":      "base-url",
	"user_id":       "user",
	"session_id":    "session",
	"timeout":       "timeout",
	"style":         "style",
	"plain":         "plain",
	"location.mode": "location",
	"log_level":     "log-level",
	"log_file":      "log-file",
}

// coordinateFlags are applied after decoding: an unset float flag would
// otherwise decode as 0.
var coordinateFlags = map[string]string{
	"lat": "location.latitude",
	"lon": "location.longitude",
}

// extraEnv lists unprefixed variables also honoured for a key.
var extraEnv = map[string]string{
	"ipinfo_token": "IPINFO_TOKEN",
}

// Load builds the configuration from defaults, the config file, the dotenv
// file, the environment and flags, in increasing precedence.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	if err := readConfigFile(v, opts.ConfigFile); err != nil {
		return nil, err
	}
	if err := mergeDotEnv(v, opts.EnvFile); err != nil {
		return nil, err
	}

	for _, key := range keys() {
		names := []string{key, envName(key)}
		if extra, ok := extraEnv[key]; ok {
			names = append(names, extra)
		}
		if err := v.BindEnv(names...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if opts.Flags != nil {
		for key, name := range flagNames {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if err := applyCoordinateFlags(cfg, opts.Flags); err != nil {
		return nil, err
	}
	cfg.LogFile = ExpandHome(cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func keys() []string {
	out := make([]string, 0, len(flagNames)+len(coordinateFlags)+1)
	for key := range flagNames {
		out = append(out, key)
	}
	for _, key := range coordinateFlags {
		out = append(out, key)
	}
	return append(out, "ipinfo_token")
}

func applyCoordinateFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range coordinateFlags {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		value, err := flags.GetFloat64(name)
		if err != nil {
			return fmt.Errorf("invalid --%s: %w", name, err)
		}
		if key == "location.latitude" {
			cfg.Location.Latitude = &value
		} else {
			cfg.Location.Longitude = &value
		}
	}
	return nil
}

// envName is PRANA_ followed by the upper-cased key with dots as underscores.
func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("base_url", c.BaseURL)
	v.SetDefault("user_id", c.UserID)
	v.SetDefault("session_id", c.SessionID)
	v.SetDefault("timeout", c.Timeout)
	v.SetDefault("style", c.Style)
	v.SetDefault("plain", c.Plain)
	v.SetDefault("location.mode", c.Location.Mode)
	v.SetDefault("ipinfo_token", c.IPInfoToken)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("log_file", c.LogFile)
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(ExpandHome(path))
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
		logger.Debug("config file loaded", "path", v.ConfigFileUsed())
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".prana"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	logger.Debug("config file loaded", "path", v.ConfigFileUsed())
	return nil
}

// mergeDotEnv layers PRANA_* (and IPINFO_TOKEN) entries of the dotenv file
// over the config file. A missing file is not an error.
func mergeDotEnv(v *viper.Viper, path string) error {
	if path == "" {
		path = ".env"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read .env file %s: %w", path, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}

	settings := map[string]any{}
	for _, key := range keys() {
		value, ok := envMap[envName(key)]
		if !ok {
			if extra, has := extraEnv[key]; has {
				value, ok = envMap[extra]
			}
		}
		if !ok {
			continue
		}
		setNested(settings, key, value)
	}
	if len(settings) == 0 {
		return nil
	}

	logger.Debug(".env loaded", "path", path, "keys", len(envMap))
	return v.MergeConfigMap(settings)
}

func setNested(m map[string]any, key, value string) {
	parent, leaf, nested := strings.Cut(key, ".")
	if !nested {
		m[key] = value
		return
	}
	child, ok := m[parent].(map[string]any)
	if !ok {
		child = map[string]any{}
		m[parent] = child
	}
	child[leaf] = value
}
