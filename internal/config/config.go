// Package config loads ccview settings from defaults, an optional YAML
// file and CCVIEW_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CCVIEW"

// DefaultLSHistoryOptions lists all history below the view path.
const DefaultLSHistoryOptions = "-all %path%"

// Config holds all ccview settings. Zero values from YAML or the
// environment do not override defaults unless the key is present.
type Config struct {
	// ViewPath is the root of the ClearCase view.
	ViewPath string `yaml:"view_path" envconfig:"VIEW_PATH"`
	// RelativePath restricts history and change collection to a subtree.
	RelativePath   string `yaml:"relative_path" envconfig:"RELATIVE_PATH"`
	ConfigSpecFile string `yaml:"config_spec_file" envconfig:"CONFIG_SPEC_FILE"`

	TreatMainAsVersionIdentifier bool   `yaml:"treat_main_as_version_identifier" envconfig:"TREAT_MAIN_AS_VERSION_IDENTIFIER"`
	DisableHistoryTransformation bool   `yaml:"disable_history_transformation" envconfig:"DISABLE_HISTORY_TRANSFORMATION"`
	LSHistoryOptions             string `yaml:"lshistory_options" envconfig:"LSHISTORY_OPTIONS"`
	// Branches is empty to derive them from the config spec.
	Branches []string `yaml:"branches" envconfig:"BRANCHES"`
	// IgnoredVersionRules maps a branch name to the highest version number
	// considered noise. "*" applies to every other branch.
	IgnoredVersionRules map[string]int `yaml:"ignored_version_rules" envconfig:"IGNORED_VERSION_RULES"`

	Cleartool        string `yaml:"cleartool" envconfig:"CLEARTOOL"`
	SkipVersionCheck bool   `yaml:"skip_version_check" envconfig:"SKIP_VERSION_CHECK"`

	CacheDir      string `yaml:"cache_dir" envconfig:"CACHE_DIR"`
	CacheInMemory bool   `yaml:"cache_in_memory" envconfig:"CACHE_IN_MEMORY"`

	Watch         bool          `yaml:"watch" envconfig:"WATCH"`
	DebounceDelay time.Duration `yaml:"debounce_delay" envconfig:"DEBOUNCE_DELAY"`

	LogLevel string `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

func Default() Config {
	return Config{
		TreatMainAsVersionIdentifier: true,
		LSHistoryOptions:             DefaultLSHistoryOptions,
		Cleartool:                    "cleartool",
		CacheInMemory:                true,
		DebounceDelay:                300 * time.Millisecond,
		LogLevel:                     "info",
	}
}

// DefaultFile returns the per-user config file location.
func DefaultFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config directory: %w", err)
	}
	return filepath.Join(dir, "ccview", "config.yaml"), nil
}

// Load returns defaults overlaid with path (when not empty) and then the
// environment. A missing file at path is only an error if required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path, required); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("read %s environment: %w", EnvPrefix, err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		slog.Debug("config file not found", slog.String("path", path))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// Validate checks the settings needed to open a view.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ViewPath) == "" {
		errs = append(errs, errors.New("view path is required"))
	}
	if filepath.IsAbs(c.RelativePath) {
		errs = append(errs, fmt.Errorf("relative path %q must not be absolute", c.RelativePath))
	}
	if !c.CacheInMemory && c.CacheDir == "" {
		errs = append(errs, errors.New("cache dir is required when the cache is not in memory"))
	}
	if c.DebounceDelay < 0 {
		errs = append(errs, fmt.Errorf("debounce delay %s is negative", c.DebounceDelay))
	}
	for branch, n := range c.IgnoredVersionRules {
		if n < 0 {
			errs = append(errs, fmt.Errorf("ignored version rule %s=%d is negative", branch, n))
		}
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// HistoryOptionSets splits LSHistoryOptions on "|". A doubled "||" is a
// literal bar inside a set.
func (c Config) HistoryOptionSets() []string {
	var (
		sets []string
		cur  strings.Builder
	)
	s := c.LSHistoryOptions
	for i := 0; i < len(s); i++ {
		if s[i] != '|' {
			cur.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '|' {
			cur.WriteByte('|')
			i++
			continue
		}
		sets = appendSet(sets, cur.String())
		cur.Reset()
	}
	return appendSet(sets, cur.String())
}

func appendSet(sets []string, set string) []string {
	if set = strings.TrimSpace(set); set != "" {
		sets = append(sets, set)
	}
	return sets
}
