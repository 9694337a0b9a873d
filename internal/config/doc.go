// Package config loads the client configuration file.
//
// # Configuration Discovery
//
// Load follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/tender/config.toml
//  3. If the file doesn't exist, fall back to defaults
//  4. If the file exists but a field is missing or empty, use its default
//
// # Fields
//
//	api_bind = "127.0.0.1:7590"       # daemon HTTP API (host:port or URL)
//	config_name = "default"           # daemon configuration to attach to
//	daemon_command = ["maestral", "start", "--foreground"]
//	log_dir = "~/.local/state/tender" # client log and lock file
//	log_level = "info"
//	report_url = ""                   # error report collector; empty disables
//	startup_timeout = "10s"
//
// A non-default config_name is appended to daemon_command as
// --config-name=<name> unless the command already carries one.
//
// # Path Expansion
//
// Tilde paths are expanded against the home directory and relative paths
// are made absolute. ExpandPath is shared with the prefs package.
package config
