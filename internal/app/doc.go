// Package app wires configuration, logging, the daemon and the UI together.
//
// Run loads config.toml and prefs.toml, takes a per-config-name instance lock,
// starts or attaches to the sync daemon and then runs three things under one
// errgroup:
//
//   - the Bubble Tea program (ui.Run)
//   - the status loop (tray.Loop), presenting through a ui.Bridge
//   - the automatic update check, every 30 minutes
//
// Quitting the UI cancels the other two. A status loop that loses the daemon
// tells the UI to exit, and its error becomes Run's result. On the way out
// the daemon is stopped if this process started it, or if the user left
// setup unfinished.
package app
