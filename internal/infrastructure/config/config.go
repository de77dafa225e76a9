package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional TOML file.
const FileEnv = "X11HOST_CONFIG"

// Permission modes
const (
	PermissionProbe   = "probe"
	PermissionGranted = "granted"
	PermissionDenied  = "denied"
)

// Native server modes
const (
	NativeProcess = "process"
	NativeLoop    = "loop"
)

var (
	ErrUnknownPermissionMode = errors.New("unknown permission mode")
	ErrUnknownNativeMode     = errors.New("unknown native mode")
)

// Config holds all supervisor configuration.
type Config struct {
	Paths      PathsConfig      `toml:"paths"`
	Bootstrap  BootstrapConfig  `toml:"bootstrap"`
	Session    SessionConfig    `toml:"session"`
	Permission PermissionConfig `toml:"permission"`
	Native     NativeConfig     `toml:"native"`
	Control    ControlConfig    `toml:"control"`
	Logging    LogConfig        `toml:"logging"`
}

// PathsConfig holds storage locations.
type PathsConfig struct {
	PrivateRoot string `envconfig:"PRIVATE_ROOT" toml:"private_root"`
	SharedRoot  string `envconfig:"SHARED_ROOT" toml:"shared_root"`
}

// BootstrapConfig holds bundled archive settings.
type BootstrapConfig struct {
	ArchivePath string `envconfig:"ARCHIVE_PATH" toml:"archive_path"`
	FixExecBits bool   `envconfig:"FIX_EXEC_BITS" toml:"fix_exec_bits"`
}

// SessionConfig holds shell session settings.
type SessionConfig struct {
	Shell      string `envconfig:"SHELL_PATH" toml:"shell"`
	SystemPath string `envconfig:"SYSTEM_PATH" toml:"system_path"`
	Term       string `envconfig:"SESSION_TERM" toml:"term"`
	Lang       string `envconfig:"SESSION_LANG" toml:"lang"`
	Scrollback int    `envconfig:"SCROLLBACK_LINES" toml:"scrollback"`
	Cols       int    `envconfig:"TERM_COLS" toml:"cols"`
	Rows       int    `envconfig:"TERM_ROWS" toml:"rows"`
}

// PermissionConfig holds storage permission settings.
type PermissionConfig struct {
	Mode           string   `envconfig:"PERMISSION_MODE" toml:"mode"`
	RequestCommand []string `envconfig:"PERMISSION_REQUEST_CMD" toml:"request_command"`
}

// NativeConfig holds native server settings.
type NativeConfig struct {
	Mode             string   `envconfig:"NATIVE_MODE" toml:"mode"`
	Binary           string   `envconfig:"NATIVE_BINARY" toml:"binary"`
	Args             []string `envconfig:"NATIVE_ARGS" toml:"args"`
	StopOnDestroy    bool     `envconfig:"NATIVE_STOP_ON_DESTROY" toml:"stop_on_destroy"`
	RelaunchFailures int      `envconfig:"NATIVE_RELAUNCH_FAILURES" toml:"relaunch_failures"`
	RelaunchCooldown int      `envconfig:"NATIVE_RELAUNCH_COOLDOWN_SEC" toml:"relaunch_cooldown_sec"`
}

// ControlConfig holds the local HTTP control surface settings.
type ControlConfig struct {
	Enabled           bool   `envconfig:"CONTROL_ENABLED" toml:"enabled"`
	Addr              string `envconfig:"CONTROL_ADDR" toml:"addr"`
	RequestsPerSecond int    `envconfig:"CONTROL_RPS" toml:"requests_per_second"`
	Burst             int    `envconfig:"CONTROL_BURST" toml:"burst"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" toml:"development"`
}

// RelaunchCooldownDuration returns the breaker cooldown as a duration.
func (n NativeConfig) RelaunchCooldownDuration() time.Duration {
	return time.Duration(n.RelaunchCooldown) * time.Second
}

// Load builds configuration from defaults, the optional file and the environment.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration or returns default on any error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			PrivateRoot: "/data/data/com.example.x11server/files",
			SharedRoot:  "/storage/emulated/0",
		},
		Bootstrap: BootstrapConfig{
			ArchivePath: "assets/termux-root.zip",
			FixExecBits: true,
		},
		Session: SessionConfig{
			Shell:      "/system/bin/sh",
			SystemPath: "/system/bin:/system/xbin",
			Term:       "xterm-256color",
			Lang:       "C.UTF-8",
			Scrollback: 2000,
			Cols:       80,
			Rows:       24,
		},
		Permission: PermissionConfig{
			Mode: PermissionProbe,
		},
		Native: NativeConfig{
			Mode:             NativeProcess,
			RelaunchFailures: 3,
			RelaunchCooldown: 30,
		},
		Control: ControlConfig{
			Enabled:           true,
			Addr:              "127.0.0.1:8090",
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Logging: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Permission.Mode {
	case PermissionProbe, PermissionGranted, PermissionDenied:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPermissionMode, c.Permission.Mode)
	}

	switch c.Native.Mode {
	case NativeProcess, NativeLoop:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNativeMode, c.Native.Mode)
	}

	if c.Session.Scrollback <= 0 {
		return fmt.Errorf("scrollback must be positive, got %d", c.Session.Scrollback)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}
