// Package daemon is the client side of the sync daemon's local HTTP API.
//
// # Overview
//
// tender never syncs anything itself. Every query (status, history, fatal
// errors) and every command (pause, resume, rebuild, link) is relayed to the
// daemon through the Proxy interface, which *Client implements on top of
// imroc/req with goccy/go-json as the codec.
//
// # Files
//
//   - client.go: Proxy interface and the HTTP implementation
//   - types.go: wire types mirroring the daemon API
//   - errors.go: CommunicationError and APIError
//   - launcher.go: start-or-attach lifecycle for the daemon process
//
// # Errors
//
// Two failure classes matter to callers:
//
//   - The daemon could not be reached at all. The error matches
//     ErrCommunication via errors.Is. The status loop treats this as fatal
//     for the whole client.
//   - The daemon answered with an HTTP error status. The error is an
//     *APIError and the caller decides locally what to do.
//
// A cancelled context is returned as is and is neither of the above.
//
// # Lifecycle
//
//	ctl, _ := daemon.NewClient(cfg.APIBind)
//	launcher := daemon.NewLauncher(ctl, cfg.DaemonCommand, cfg.StartupTimeout)
//	res, err := launcher.StartOrAttach(ctx)
//	switch res {
//	case daemon.Started:        // we own the process and stop it on quit
//	case daemon.AlreadyRunning: // someone else owns it
//	case daemon.Failed:         // show an alert and exit
//	}
//
// Processes spawned by the launcher are tracked with gopsutil so Stop can
// escalate from SIGTERM to SIGKILL.
package daemon
