// Package terminal owns the single interactive shell session.
//
// The Manager keeps at most one live session. Each session records the home
// directory it was started with; Reconcile compares that against the current
// resolver output and replaces the session when they differ, so a running
// shell never silently outlives the permission state that chose its home.
//
// Shell processes are started through a Launcher. PTYLauncher runs the shell
// on a pseudo-terminal via creack/pty; tests substitute their own.
//
// Session environment is fixed:
//
//	TERM=xterm-256color
//	LANG=C.UTF-8
//	HOME=<resolved home>
//	PATH=<private root>/usr/bin:/system/bin:/system/xbin
//
// Status changes (degraded storage mode, PID known, shell exited) are pushed
// to a StatusReporter for display.
package terminal
