package terminal

import (
	"io"
	"math"
	"time"

	"github.com/GriffinCanCode/x11host/internal/shared/id"
)

// MaxDimension bounds the columns and rows of a terminal; window sizes are
// 16-bit on the wire.
const MaxDimension = math.MaxUint16

// ValidSize reports whether cols x rows fits a terminal window
func ValidSize(cols, rows int) bool {
	return cols > 0 && rows > 0 && cols <= MaxDimension && rows <= MaxDimension
}

// Spec describes a shell process to launch
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Cols    int
	Rows    int
}

// Process is a running shell attached to a terminal device
type Process interface {
	io.ReadWriter
	PID() int
	Resize(cols, rows int) error
	// Wait blocks until the process exits. It is called exactly once.
	Wait() error
	// Finish terminates the process if it is still running.
	Finish() error
}

// Launcher starts shell processes
type Launcher interface {
	Launch(spec Spec) (Process, error)
}

// HomeResolver supplies the current home directory and permission state
type HomeResolver interface {
	Resolve() string
	Granted() bool
}

// StatusKind classifies a status message
type StatusKind string

const (
	StatusDegraded StatusKind = "degraded"
	StatusRunning  StatusKind = "running"
	StatusExited   StatusKind = "exited"
	StatusFailed   StatusKind = "failed"
)

// Status messages shown to the user
const (
	MsgDegraded = "All files access not granted. Using app files."
	MsgExited   = "Terminal exited"
)

// Status is a user-visible session state message
type Status struct {
	Kind      StatusKind   `json:"kind"`
	Message   string       `json:"message"`
	SessionID id.SessionID `json:"session_id,omitempty"`
	PID       int          `json:"pid,omitempty"`
	At        time.Time    `json:"at"`
}

// StatusReporter receives status messages
type StatusReporter interface {
	Report(Status)
}

// StatusFunc adapts a function to StatusReporter
type StatusFunc func(Status)

// Report implements StatusReporter
func (f StatusFunc) Report(s Status) { f(s) }

// Config holds session settings
type Config struct {
	Shell      string
	SystemPath string
	Term       string
	Lang       string
	Scrollback int
	Cols       int
	Rows       int
}

// DefaultConfig returns the stock session configuration
func DefaultConfig() Config {
	return Config{
		Shell:      "/system/bin/sh",
		SystemPath: "/system/bin:/system/xbin",
		Term:       "xterm-256color",
		Lang:       "C.UTF-8",
		Scrollback: 2000,
		Cols:       80,
		Rows:       24,
	}
}

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID        id.SessionID `json:"id"`
	Shell     string       `json:"shell"`
	HomeDir   string       `json:"home_dir"`
	PID       int          `json:"pid"`
	Cols      int          `json:"cols"`
	Rows      int          `json:"rows"`
	StartedAt time.Time    `json:"started_at"`
	Active    bool         `json:"active"`
}
