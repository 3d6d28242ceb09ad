package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"offersync/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/offersync"
	configFileName = "config.yaml"
)

// Environment variables consulted after the config file. The STOQ_* names are
// accepted for compatibility with existing deployments.
var envOverrides = []struct {
	names []string
	apply func(*Config, string) error
}{
	{[]string{"OFFERSYNC_API_BASE", "STOQ_API_BASE"}, func(c *Config, v string) error { c.Remote.BaseURL = v; return nil }},
	{[]string{"OFFERSYNC_API_ACCESS_KEY", "STOQ_API_ACCESS_KEY"}, func(c *Config, v string) error { c.Remote.AccessKey = v; return nil }},
	{[]string{"OFFERSYNC_STORE_DRIVER"}, func(c *Config, v string) error { c.Store.Driver = v; return nil }},
	{[]string{"OFFERSYNC_STORE_DSN"}, func(c *Config, v string) error { c.Store.DSN = v; return nil }},
	{[]string{"OFFERSYNC_AUDIT_DIR"}, func(c *Config, v string) error { c.Audit.Dir = v; return nil }},
	{[]string{"OFFERSYNC_LOG_LEVEL"}, func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{[]string{"OFFERSYNC_REQUEST_TIMEOUT", "HTTP_TIMEOUT"}, func(c *Config, v string) error {
		d, err := parseSecondsOrDuration(v)
		if err != nil {
			return err
		}
		c.Remote.RequestTimeout = d
		return nil
	}},
}

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// GetDefaultConfigPath returns ~/.config/offersync.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from path, which may be a directory holding
// config.yaml or a YAML file. A missing file yields the defaults. Environment
// overrides are applied on top of the file.
func LoadConfig(path string) (Config, error) {
	config := GetDefaultConfig()

	configFilePath := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		configFilePath = filepath.Join(path, configFileName)
	}

	data, err := os.ReadFile(configFilePath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, ConfigurationError{
				FilePath:  configFilePath,
				ErrorType: "parse",
				Message:   "malformed YAML",
				Details:   err.Error(),
				Suggestions: []string{
					"Check the indentation and quoting around the reported line",
					"Run with --config pointing at another file to compare",
				},
			}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No config found at %s, using defaults", configFilePath)
	default:
		return Config{}, ConfigurationError{
			FilePath:  configFilePath,
			ErrorType: "io",
			Message:   "cannot read configuration",
			Details:   err.Error(),
			Suggestions: []string{
				"Check that the file is readable by the current user",
			},
		}
	}

	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func applyEnv(c *Config) error {
	for _, o := range envOverrides {
		for _, name := range o.names {
			v, ok := lookupEnv(name)
			if !ok || strings.TrimSpace(v) == "" {
				continue
			}
			if err := o.apply(c, strings.TrimSpace(v)); err != nil {
				return ConfigurationError{
					FilePath:  "env:" + name,
					ErrorType: "validation",
					Message:   "invalid environment override",
					Details:   err.Error(),
					Suggestions: []string{
						fmt.Sprintf("Unset %s or give it a valid value", name),
					},
				}
			}
			logging.Debug("ConfigLoader", "Applied environment override %s", name)
			break
		}
	}
	return nil
}

// parseSecondsOrDuration accepts "30", "2.5" (seconds) or a Go duration such as "90s".
func parseSecondsOrDuration(v string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}
