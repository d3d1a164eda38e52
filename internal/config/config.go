package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/chaz8081/catprint/internal/imaging"
)

// Config holds all application configuration.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	Print     PrintConfig     `yaml:"print"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	History   HistoryConfig   `yaml:"history"`
	LogLevel  string          `yaml:"log_level"`
}

// DeviceConfig selects which printer to use.
type DeviceConfig struct {
	NamePrefix  string `yaml:"name_prefix"`  // advertised name filter
	ID          string `yaml:"id"`           // remembered printer address; empty means scan
	ScanTimeout int    `yaml:"scan_timeout"` // seconds
}

// PrintConfig holds the default rendering settings.
type PrintConfig struct {
	Dither     string  `yaml:"dither"`     // see imaging.DitherMethods
	Intensity  int     `yaml:"intensity"`  // print head energy, 1-255
	Brightness int     `yaml:"brightness"` // 0-255, 128 leaves the image unchanged
	Rotate     int     `yaml:"rotate"`     // clockwise degrees: 0, 90, 180 or 270
	Flip       string  `yaml:"flip"`       // none, h, v or both
	FontSize   float64 `yaml:"font_size"`  // points, for text prints
}

// ReconnectConfig controls reconnection to a remembered printer.
type ReconnectConfig struct {
	Attempts   int  `yaml:"attempts"`
	MaxBackoff int  `yaml:"max_backoff"` // seconds
	Auto       bool `yaml:"auto"`        // reconnect after an unexpected drop
}

// HistoryConfig controls the local print log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty means DefaultHistoryPath
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "catprint")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultHistoryPath returns the default print history database path.
func DefaultHistoryPath() string {
	return filepath.Join(DefaultConfigDir(), "history.db")
}

// HistoryPath returns the configured history database path.
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return expandHome(c.History.Path)
	}
	return DefaultHistoryPath()
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[1:])
		}
	}
	return p
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			NamePrefix:  "MXW01",
			ScanTimeout: 10,
		},
		Print: PrintConfig{
			Dither:     string(imaging.DitherSteinberg),
			Intensity:  0x5D,
			Brightness: imaging.NeutralBrightness,
			Rotate:     0,
			Flip:       string(imaging.FlipNone),
			FontSize:   imaging.DefaultFontSize,
		},
		Reconnect: ReconnectConfig{
			Attempts:   5,
			MaxBackoff: 30,
		},
		History: HistoryConfig{
			Enabled: true,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.Device.ID = strings.ToUpper(strings.TrimSpace(cfg.Device.ID))

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.ScanTimeout <= 0 {
		return fmt.Errorf("device.scan_timeout must be > 0")
	}

	if _, err := imaging.ParseDitherMethod(c.Print.Dither); err != nil {
		return fmt.Errorf("print.dither must be one of %s, got %q", ditherNames(), c.Print.Dither)
	}

	if c.Print.Intensity < 1 || c.Print.Intensity > 255 {
		return fmt.Errorf("print.intensity must be between 1 and 255, got %d", c.Print.Intensity)
	}

	if c.Print.Brightness < 0 || c.Print.Brightness > 255 {
		return fmt.Errorf("print.brightness must be between 0 and 255, got %d", c.Print.Brightness)
	}

	if _, err := imaging.ParseRotation(c.Print.Rotate); err != nil {
		return fmt.Errorf("print.rotate must be 0, 90, 180 or 270, got %d", c.Print.Rotate)
	}

	if _, err := imaging.ParseFlip(c.Print.Flip); err != nil {
		return fmt.Errorf("print.flip must be none, h, v or both, got %q", c.Print.Flip)
	}

	if c.Print.FontSize < 4 || c.Print.FontSize > 96 {
		return fmt.Errorf("print.font_size must be between 4 and 96, got %g", c.Print.FontSize)
	}

	if c.Reconnect.Attempts <= 0 {
		return fmt.Errorf("reconnect.attempts must be > 0")
	}

	if c.Reconnect.MaxBackoff <= 0 {
		return fmt.Errorf("reconnect.max_backoff must be > 0")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

func ditherNames() string {
	names := make([]string, len(imaging.DitherMethods))
	for i, m := range imaging.DitherMethods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

const defaultHeader = `# catprint configuration
#
# device.id pins a printer address; leave it empty to scan for the
# strongest printer whose name starts with device.name_prefix.
# print.dither: threshold, steinberg, bayer, atkinson, pattern, stucki
#               or burkes
# print.flip:   none, h, v or both
# history.path defaults to history.db next to this file.

`

// WriteDefault writes the default config to DefaultConfigPath and returns
// the path written. It returns ("", nil) without touching anything when a
// config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(defaultHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(Default()); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}
