package home

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
)

// PermissionChecker reports whether broad storage access is granted.
// Implementations must be cheap and safe to call at any time.
type PermissionChecker interface {
	Granted() bool
}

// PermissionRequester asks the host to grant broad storage access.
type PermissionRequester interface {
	Request(ctx context.Context) error
}

// StaticPermission is a permission bit set by the host, e.g. through the
// control API.
type StaticPermission struct {
	granted atomic.Bool
}

// NewStaticPermission creates a permission with an initial value
func NewStaticPermission(granted bool) *StaticPermission {
	p := &StaticPermission{}
	p.granted.Store(granted)
	return p
}

// Granted implements PermissionChecker
func (p *StaticPermission) Granted() bool {
	return p.granted.Load()
}

// Set updates the permission and reports whether it changed
func (p *StaticPermission) Set(granted bool) bool {
	return p.granted.Swap(granted) != granted
}

// ProbePermission treats the shared root as granted when it is an existing
// directory the process can write to.
type ProbePermission struct {
	root string
}

// NewProbePermission probes sharedRoot on every call
func NewProbePermission(sharedRoot string) *ProbePermission {
	return &ProbePermission{root: sharedRoot}
}

// Granted implements PermissionChecker
func (p *ProbePermission) Granted() bool {
	if p.root == "" {
		return false
	}
	info, err := os.Stat(p.root)
	if err != nil || !info.IsDir() {
		return false
	}
	return unix.Access(p.root, unix.W_OK|unix.X_OK) == nil
}

// CommandRequester runs a host command that opens the permission settings
// surface. With no command configured it only logs the request.
type CommandRequester struct {
	argv   []string
	logger *logging.Logger
}

// NewCommandRequester creates a requester; argv may be empty
func NewCommandRequester(argv []string, logger *logging.Logger) *CommandRequester {
	return &CommandRequester{argv: argv, logger: logger.For("permission")}
}

// Request implements PermissionRequester
func (r *CommandRequester) Request(ctx context.Context) error {
	if len(r.argv) == 0 {
		r.logger.Warn("Broad storage access not granted; grant it in the host settings")
		return nil
	}

	r.logger.Info("Requesting broad storage access", zap.Strings("command", r.argv))
	out, err := exec.CommandContext(ctx, r.argv[0], r.argv[1:]...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("permission request %q: %w (%s)", r.argv[0], err, out)
	}
	return nil
}
