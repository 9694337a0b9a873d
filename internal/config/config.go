package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config is the client configuration.
type Config struct {
	APIBind        string
	ConfigName     string
	DaemonCommand  []string
	LogDir         string
	LogLevel       string
	ReportURL      string
	StartupTimeout time.Duration
	WebsiteURL     string
	HelpURL        string
}

const (
	defaultConfigPath     = "~/.config/tender/config.toml"
	defaultLogDir         = "~/.local/state/tender"
	defaultAPIBind        = "127.0.0.1:7590"
	defaultConfigName     = "default"
	defaultLogLevel       = "info"
	defaultStartupTimeout = 10 * time.Second
	defaultWebsiteURL     = "https://www.dropbox.com/"
	defaultHelpURL        = "https://dropbox.com/help"
)

// DefaultPath is the config file used when none is given.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBind:        defaultAPIBind,
		ConfigName:     defaultConfigName,
		DaemonCommand:  []string{"maestral", "start", "--foreground"},
		LogDir:         mustExpand(defaultLogDir),
		LogLevel:       defaultLogLevel,
		StartupTimeout: defaultStartupTimeout,
		WebsiteURL:     defaultWebsiteURL,
		HelpURL:        defaultHelpURL,
	}
}

// Load reads the config at path, falling back to defaults when the file is
// missing or a field is empty.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.DaemonCommand = withConfigName(cfg.DaemonCommand, cfg.ConfigName)
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind        string   `toml:"api_bind"`
		ConfigName     string   `toml:"config_name"`
		DaemonCommand  []string `toml:"daemon_command"`
		LogDir         string   `toml:"log_dir"`
		LogLevel       string   `toml:"log_level"`
		ReportURL      string   `toml:"report_url"`
		StartupTimeout string   `toml:"startup_timeout"`
		WebsiteURL     *string  `toml:"website_url"`
		HelpURL        *string  `toml:"help_url"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBind); v != "" {
		cfg.APIBind = v
	}
	if v := strings.TrimSpace(raw.ConfigName); v != "" {
		cfg.ConfigName = v
	}
	if cmd := trimAll(raw.DaemonCommand); len(cmd) > 0 {
		cfg.DaemonCommand = cmd
	}
	cfg.DaemonCommand = withConfigName(cfg.DaemonCommand, cfg.ConfigName)
	if v := strings.TrimSpace(raw.LogDir); v != "" {
		cfg.LogDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.ReportURL = strings.TrimSpace(raw.ReportURL)
	if v := strings.TrimSpace(raw.StartupTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("parse config: startup_timeout %q is not a positive duration", v)
		}
		cfg.StartupTimeout = d
	}
	// An explicit empty string hides the menu item.
	if raw.WebsiteURL != nil {
		cfg.WebsiteURL = strings.TrimSpace(*raw.WebsiteURL)
	}
	if raw.HelpURL != nil {
		cfg.HelpURL = strings.TrimSpace(*raw.HelpURL)
	}

	return cfg, nil
}

// LogPath returns the client log file.
func (c Config) LogPath() string {
	dir := strings.TrimSpace(c.LogDir)
	if dir == "" {
		dir = mustExpand(defaultLogDir)
	}
	return filepath.Join(dir, "tender.log")
}

// LockPath returns the single-instance lock file for this daemon config.
func (c Config) LockPath() string {
	name := strings.TrimSpace(c.ConfigName)
	if name == "" {
		name = defaultConfigName
	}
	dir := strings.TrimSpace(c.LogDir)
	if dir == "" {
		dir = mustExpand(defaultLogDir)
	}
	return filepath.Join(dir, name+".lock")
}

// withConfigName appends "--config-name" to cmd unless it is already
// present or the config is the default one.
func withConfigName(cmd []string, name string) []string {
	if len(cmd) == 0 || name == defaultConfigName {
		return cmd
	}
	for _, arg := range cmd {
		if arg == "--config-name" || strings.HasPrefix(arg, "--config-name=") {
			return cmd
		}
	}
	return append(append([]string(nil), cmd...), "--config-name="+name)
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

// ExpandPath trims path, expands a leading "~" and makes it absolute.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
