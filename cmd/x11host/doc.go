// Package main is the entry point for the x11host supervisor.
//
// x11host bootstraps a bundled userland into private storage, runs an
// interactive shell bound to the resolved home directory, and drives a
// native display server through the host's foreground and background
// transitions.
//
// Configuration:
//   - Defaults for an Android-style layout
//   - Optional TOML file named by X11HOST_CONFIG or -config
//   - Environment variables (12-factor), applied last
//   - CLI flags for the common overrides
//
// Usage:
//
//	# Start in the foreground with the control API on loopback
//	./x11host -addr 127.0.0.1:8090
//
//	# Development mode (console logs, debug level)
//	./x11host -dev
//
// Signals:
//   - SIGUSR1: host paused
//   - SIGUSR2: host resumed
//   - SIGHUP: restart the native server
//   - SIGINT, SIGTERM: destroy and exit
package main
