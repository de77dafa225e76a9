// Package native drives the long-running native display server from host
// lifecycle transitions.
//
// A Server exposes three calls: Init once after bootstrap, then Pause and
// Resume as the host leaves and enters the foreground. The Bridge forwards
// those calls unconditionally, tracks the last state it observed, and turns
// failures into log lines and metrics instead of propagating them as fatal.
//
// Two servers are provided. ProcessServer runs an external binary and
// suspends it with SIGSTOP/SIGCONT, relaunching it behind a circuit breaker
// when it has died. LoopServer is an in-process tick loop for hosts without
// a native binary.
package native
