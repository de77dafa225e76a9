package home

import (
	"github.com/GriffinCanCode/x11host/internal/shared/paths"
)

// Resolver computes the active home directory
type Resolver struct {
	perm       PermissionChecker
	sharedRoot string
	privateDir string
}

// NewResolver creates a resolver. privateDir is the application's private
// files directory; sharedRoot is the device's shared storage root.
func NewResolver(perm PermissionChecker, sharedRoot, privateDir string) *Resolver {
	return &Resolver{
		perm:       perm,
		sharedRoot: sharedRoot,
		privateDir: privateDir,
	}
}

// Resolve returns the shared root when broad access is granted, the private
// directory otherwise, and "/" when neither is known.
func (r *Resolver) Resolve() string {
	if r.Granted() && r.sharedRoot != "" {
		return r.sharedRoot
	}
	if r.privateDir != "" {
		return r.privateDir
	}
	return paths.Root
}

// Granted reports the current permission state
func (r *Resolver) Granted() bool {
	return r.perm != nil && r.perm.Granted()
}
