package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/opus-domini/sysreport/internal/alerts"
	"github.com/opus-domini/sysreport/internal/report"
)

var (
	ErrInvalid = errors.New("invalid config")
	ErrExists  = errors.New("config file already exists")
)

// Alerts mirrors the [alerts] table.
type Alerts struct {
	CPUPercent    float64 `toml:"cpu_percent"`
	MemoryPercent float64 `toml:"memory_percent"`
	DiskUsed      float64 `toml:"disk_used"`
	DiskMode      string  `toml:"disk_mode"`
}

type Config struct {
	HomeDir string   `toml:"-"`
	Path    string   `toml:"-"`
	Loaded  bool     `toml:"-"`
	Ignored []string `toml:"-"`

	IntervalSec int    `toml:"interval"`
	Format      string `toml:"format"`
	OutputDir   string `toml:"output_dir"`
	DiskPath    string `toml:"disk_path"`
	CSVLayout   string `toml:"csv_layout"`
	LogLevel    string `toml:"log_level"`
	Alerts      Alerts `toml:"alerts"`
}

const DefaultContent = `# sysreport configuration
# All values shown are defaults. Uncomment and edit to customize.

# CPU sampling window in seconds. 0 samples instantaneously.
# Environment variable: SYSREPORT_INTERVAL
# interval = 1

# Report format: text, json or csv.
# Environment variable: SYSREPORT_FORMAT
# format = "text"

# Directory the report file is written to.
# Environment variable: SYSREPORT_OUTPUT_DIR
# output_dir = "."

# Filesystem path sampled for disk usage.
# Environment variable: SYSREPORT_DISK_PATH
# disk_path = "/"

# CSV rows: "table" (Metric,Details) or "legacy" (one character per field).
# Environment variable: SYSREPORT_CSV_LAYOUT
# csv_layout = "table"

# Log level: debug, info, warn, error.
# Environment variable: SYSREPORT_LOG_LEVEL
# log_level = "info"

[alerts]
# Alerts fire when a value is strictly greater than its threshold.
# Environment variables: SYSREPORT_ALERT_CPU_PERCENT, SYSREPORT_ALERT_MEM_PERCENT,
# SYSREPORT_ALERT_DISK_USED, SYSREPORT_ALERT_DISK_MODE
# cpu_percent = 80
# memory_percent = 75

# disk_mode "used_gib" compares used GiB with disk_used; "percent" compares
# the used share of the filesystem.
# disk_used = 90
# disk_mode = "used_gib"
`

// Default returns the built-in configuration.
func Default() Config {
	th := alerts.DefaultThresholds()
	return Config{
		IntervalSec: 1,
		Format:      string(report.FormatText),
		OutputDir:   ".",
		DiskPath:    "/",
		CSVLayout:   string(report.CSVLayoutTable),
		LogLevel:    "info",
		Alerts: Alerts{
			CPUPercent:    th.CPUPercent,
			MemoryPercent: th.MemoryPercent,
			DiskUsed:      th.Disk,
			DiskMode:      string(th.DiskMode),
		},
	}
}

// DefaultPath resolves the config file location: SYSREPORT_CONFIG, then
// $SYSREPORT_HOME/config.toml, then ~/.sysreport/config.toml.
func DefaultPath() (home, path string) {
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_HOME")); v != "" {
		home = v
	} else if dir, err := os.UserHomeDir(); err == nil {
		home = filepath.Join(dir, ".sysreport")
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_CONFIG")); v != "" {
		return home, v
	}
	return home, filepath.Join(home, "config.toml")
}

// Load reads .env, the config file at path (DefaultPath when empty) and the
// environment. Precedence: env > file > default. A missing file is not an
// error.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	home, defPath := DefaultPath()
	if strings.TrimSpace(path) == "" {
		path = defPath
	}

	cfg := Default()
	cfg.HomeDir = home
	cfg.Path = path

	if err := cfg.loadFile(path); err != nil {
		return cfg, err
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	c.Loaded = true
	for _, key := range md.Undecoded() {
		c.Ignored = append(c.Ignored, key.String())
	}
	sort.Strings(c.Ignored)
	return nil
}

func (c *Config) applyEnv() error {
	if raw := strings.TrimSpace(os.Getenv("SYSREPORT_INTERVAL")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%w: SYSREPORT_INTERVAL %q is not an integer", ErrInvalid, raw)
		}
		c.IntervalSec = n
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_FORMAT")); v != "" {
		c.Format = v
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_OUTPUT_DIR")); v != "" {
		c.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_DISK_PATH")); v != "" {
		c.DiskPath = v
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_CSV_LAYOUT")); v != "" {
		c.CSVLayout = v
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_LOG_LEVEL")); v != "" {
		c.LogLevel = v
	}

	for _, item := range []struct {
		env string
		dst *float64
	}{
		{"SYSREPORT_ALERT_CPU_PERCENT", &c.Alerts.CPUPercent},
		{"SYSREPORT_ALERT_MEM_PERCENT", &c.Alerts.MemoryPercent},
		{"SYSREPORT_ALERT_DISK_USED", &c.Alerts.DiskUsed},
	} {
		raw := strings.TrimSpace(os.Getenv(item.env))
		if raw == "" {
			continue
		}
		v, ok := parsePositiveFloat(raw)
		if !ok {
			return fmt.Errorf("%w: %s %q must be a positive number", ErrInvalid, item.env, raw)
		}
		*item.dst = v
	}
	if v := strings.TrimSpace(os.Getenv("SYSREPORT_ALERT_DISK_MODE")); v != "" {
		c.Alerts.DiskMode = v
	}
	return nil
}

func parsePositiveFloat(raw string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Validate normalizes enum fields and rejects unknown values. Format is left
// for the report stage so an unsupported value produces the report error.
func (c *Config) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	layout, err := report.ParseCSVLayout(c.CSVLayout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.CSVLayout = string(layout)

	mode, err := alerts.ParseDiskMode(c.Alerts.DiskMode)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	c.Alerts.DiskMode = string(mode)

	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	if c.DiskPath == "" {
		c.DiskPath = "/"
	}
	return nil
}

// Interval returns the CPU sampling window.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

// Thresholds converts the [alerts] table. Call after Validate.
func (c Config) Thresholds() alerts.Thresholds {
	return alerts.Thresholds{
		CPUPercent:    c.Alerts.CPUPercent,
		MemoryPercent: c.Alerts.MemoryPercent,
		Disk:          c.Alerts.DiskUsed,
		DiskMode:      alerts.DiskMode(c.Alerts.DiskMode),
	}
}

// WriteDefault creates path with DefaultContent. An existing file is kept
// unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(DefaultContent), 0o600) //nolint:gosec // fixed content, not user input
}
