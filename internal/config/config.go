package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultStatePath      = "./pss-state.json"
	DefaultLogLevel       = "info"
	DefaultListen         = "127.0.0.1:8080"
	DefaultAgendaCron     = "0 7 * * *"
	DefaultMaxOccurrences = 5000
	DefaultExportIndent   = 2
	DefaultProductID      = "-//pss//Personal Schedule//EN"
	DefaultCalendarName   = "Schedule"
)

// ICSConfig names the generated iCalendar feed.
type ICSConfig struct {
	ProductID    string `yaml:"product_id" json:"product_id" mapstructure:"product_id"`
	CalendarName string `yaml:"calendar_name" json:"calendar_name" mapstructure:"calendar_name"`
}

// Config is the top-level application configuration.
type Config struct {
	// StatePath is the full schedule state file. Mutating commands load it,
	// apply the change and write it back.
	StatePath string `yaml:"state_path" json:"state_path" mapstructure:"state_path"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`

	// Listen is the HTTP listen address for `pss serve`.
	Listen string `yaml:"listen" json:"listen" mapstructure:"listen"`

	// AgendaCron is a 5-field cron spec (descriptors like @daily work too)
	// for the daily agenda digest.
	AgendaCron string `yaml:"agenda_cron" json:"agenda_cron" mapstructure:"agenda_cron"`

	// MaxOccurrences caps how many occurrences one recurring task may expand to.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences" mapstructure:"max_occurrences"`

	// ExportIndent is the JSON indent width of exported snapshots. 0 writes
	// compact JSON.
	ExportIndent int `yaml:"export_indent" json:"export_indent" mapstructure:"export_indent"`

	ICS ICSConfig `yaml:"ics" json:"ics" mapstructure:"ics"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		StatePath:      DefaultStatePath,
		LogLevel:       DefaultLogLevel,
		Listen:         DefaultListen,
		AgendaCron:     DefaultAgendaCron,
		MaxOccurrences: DefaultMaxOccurrences,
		ExportIndent:   DefaultExportIndent,
		ICS: ICSConfig{
			ProductID:    DefaultProductID,
			CalendarName: DefaultCalendarName,
		},
	}
}

// Normalize fills in missing or invalid values so partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if strings.TrimSpace(c.StatePath) == "" {
		c.StatePath = DefaultStatePath
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "warning", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = DefaultLogLevel
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if strings.TrimSpace(c.AgendaCron) == "" {
		c.AgendaCron = DefaultAgendaCron
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = DefaultMaxOccurrences
	}
	if c.ExportIndent < 0 {
		c.ExportIndent = 0
	}
	if c.ExportIndent > 8 {
		c.ExportIndent = 8
	}
	if c.ICS.ProductID == "" {
		c.ICS.ProductID = DefaultProductID
	}
	if c.ICS.CalendarName == "" {
		c.ICS.CalendarName = DefaultCalendarName
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	// Start from defaults so an export_indent of 0 in the file is kept.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pss-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
