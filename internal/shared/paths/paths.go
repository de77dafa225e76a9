package paths

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscape marks an entry that would land outside the private root
var ErrEscape = errors.New("path escapes private root")

// Userland subdirectories relative to the private root
const (
	Usr        = "usr"
	Bin        = "usr/bin"
	Libexec    = "usr/libexec"
	MarkerName = ".installed"
)

// Root is the last-resort home directory
const Root = "/"

// Layout resolves userland paths under a private root
type Layout struct {
	root string
}

// NewLayout returns a layout rooted at privateRoot
func NewLayout(privateRoot string) Layout {
	return Layout{root: filepath.Clean(privateRoot)}
}

// Root returns the private root
func (l Layout) Root() string {
	return l.root
}

// UsrDir returns the top-level extraction directory
func (l Layout) UsrDir() string {
	return filepath.Join(l.root, Usr)
}

// BinDir returns the userland binary directory
func (l Layout) BinDir() string {
	return filepath.Join(l.root, Bin)
}

// ExecutableDirs returns directories whose files must carry the exec bit
func (l Layout) ExecutableDirs() []string {
	return []string{
		filepath.Join(l.root, Bin),
		filepath.Join(l.root, Libexec),
	}
}

// Marker returns the bootstrap marker path
func (l Layout) Marker() string {
	return filepath.Join(l.root, Usr, MarkerName)
}

// Within joins an archive entry name onto the root, rejecting names that
// would escape it.
func (l Layout) Within(name string) (string, error) {
	dest := filepath.Join(l.root, name)
	rel, err := filepath.Rel(l.root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q: %w", name, ErrEscape)
	}
	return dest, nil
}

// Secure is Within plus a walk of the existing parents of the destination:
// a parent that is a symlink would redirect the write, so it is rejected.
// The final component is not checked; callers replace it.
func (l Layout) Secure(name string) (string, error) {
	dest, err := l.Within(name)
	if err != nil {
		return "", err
	}
	rel, _ := filepath.Rel(l.root, dest)
	if rel == "." {
		return dest, nil
	}

	parts := strings.Split(rel, string(os.PathSeparator))
	cur := l.root
	for _, part := range parts[:len(parts)-1] {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			break
		}
		if err != nil {
			return "", err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return "", fmt.Errorf("entry %q passes through symlink %s: %w", name, cur, ErrEscape)
		}
	}
	return dest, nil
}
