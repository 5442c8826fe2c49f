package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DaemonConfig holds process-level settings from the [daemon] table.
type DaemonConfig struct {
	ContextTimeoutMs int      `toml:"context_timeout_ms" yaml:"context_timeout_ms" json:"context_timeout_ms"`
	LogLevel         string   `toml:"log_level" yaml:"log_level" json:"log_level"`
	WebPort          int      `toml:"web_port" yaml:"web_port" json:"web_port"`
	Stats            bool     `toml:"stats" yaml:"stats" json:"stats"`
	HistoryDays      int      `toml:"history_days" yaml:"history_days" json:"history_days"`
	Watch            bool     `toml:"watch" yaml:"watch" json:"watch"`
	Tray             bool     `toml:"tray" yaml:"tray" json:"tray"`
	Devices          []string `toml:"devices" yaml:"devices" json:"devices,omitempty"`
}

// document is the file layout shared by TOML and YAML configs.
type document struct {
	Daemon   DaemonConfig          `toml:"daemon" yaml:"daemon"`
	Debounce map[string]rawProfile `toml:"debounce" yaml:"debounce"`
	Bindings map[string]rawBinding `toml:"bindings" yaml:"bindings"`
}

type rawProfile struct {
	InitialHoldMs  *int64            `toml:"initial_hold_ms" yaml:"initial_hold_ms"`
	RepeatWindowMs *int64            `toml:"repeat_window_ms" yaml:"repeat_window_ms"`
	Diverts        map[string]string `toml:"diverts" yaml:"diverts"`
}

// rawBinding keeps action undecoded: it is either an action name or a
// list of {condition, action} tables.
type rawBinding struct {
	Action   any    `toml:"action" yaml:"action"`
	Debounce string `toml:"debounce" yaml:"debounce"`
}

// ErrNotFound is returned by LoadFile when the config file is missing.
var ErrNotFound = errors.New("config file not found")

// Default daemon settings
func defaultDaemon() DaemonConfig {
	return DaemonConfig{
		ContextTimeoutMs: 50,
		LogLevel:         "info",
		WebPort:          7373,
		Stats:            true,
		HistoryDays:      30,
		Watch:            true,
		Tray:             true,
	}
}

// ConfigDir returns the directory holding the config file and database.
func ConfigDir() (string, error) {
	base := os.Getenv("APPDATA")
	if base == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate config directory: %w", err)
		}
		base = dir
	}

	configDir := filepath.Join(base, "keyroute")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// ConfigPath returns the path to the configuration file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load loads and validates the configuration at path, or at ConfigPath
// when path is empty. A missing file is created from the default
// template first.
func Load(path string) (*Snapshot, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := save(path, []byte(defaultTemplate)); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		slog.Info("Created default configuration", "path", path)
	}

	return LoadFile(path)
}

// LoadFile loads and validates an existing configuration file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes and validates a configuration. The format follows the
// extension of name: .yaml and .yml are YAML, anything else TOML.
func Parse(name string, data []byte) (*Snapshot, error) {
	doc := document{Daemon: defaultDaemon()}
	var unknown []string

	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to decode config %s: %w", name, err)
		}
	default:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config %s: %w", name, err)
		}
		for _, k := range md.Undecoded() {
			// rule lists decode into interfaces and are checked in build
			if len(k) > 3 && k[0] == "bindings" && k[2] == "action" {
				continue
			}
			unknown = append(unknown, k.String())
		}
	}

	return build(name, doc, unknown)
}

// save writes a configuration file, creating its directory.
func save(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

const defaultTemplate = `# keyroute configuration
#
# Bindings map a key to an action, or to a list of conditional rules
# tried in order (first match wins, no match passes the key through).
# Conditions glob-match the focused window: title, class, binary and
# their negations not_title, not_class, not_binary. '*' is the only
# wildcard and matching ignores case.
#
# Actions: media_play_pause, media_next, media_previous, media_stop,
# volume_up, volume_down, volume_mute, browser_back, browser_forward,
# passthrough, block.

[daemon]
context_timeout_ms = 50
log_level = "info"
web_port = 7373
stats = true
history_days = 30
watch = true
tray = true

# Tilt wheels fire bursts of presses; only the first one of a burst
# counts until initial_hold_ms has passed.
[debounce.scroll]
initial_hold_ms = 110
repeat_window_ms = 2000

# While f15 or f16 is held, the mouse wheel changes the volume instead
# of scrolling.
[debounce.scroll.diverts]
scroll_up = "volume_up"
scroll_down = "volume_down"

[bindings.f13]
action = "media_play_pause"

[bindings.f15]
action = "media_previous"
debounce = "scroll"

[bindings.f16]
action = "media_next"
debounce = "scroll"

[bindings.f17]
action = [
  { condition = { title = "*Vivaldi*" }, action = "browser_back" },
  { condition = { title = "*Firefox*" }, action = "browser_back" },
]
`
