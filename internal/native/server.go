package native

import (
	"context"
	"errors"
)

var (
	ErrNotInitialized = errors.New("native server not initialized")
	ErrNotRunning     = errors.New("native server not running")
)

// Server is a native server driven by host lifecycle
type Server interface {
	Init(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
}

// Stopper is implemented by servers that can be shut down
type Stopper interface {
	Shutdown(ctx context.Context) error
}

// State is the bridge's view of the native server
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitialized   State = "initialized"
	StateResumed       State = "resumed"
	StatePaused        State = "paused"
	StateStopped       State = "stopped"
)
