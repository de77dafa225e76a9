package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	l := NewLayout("/data/files/")

	assert.Equal(t, "/data/files", l.Root())
	assert.Equal(t, "/data/files/usr", l.UsrDir())
	assert.Equal(t, "/data/files/usr/bin", l.BinDir())
	assert.Equal(t, "/data/files/usr/.installed", l.Marker())
	assert.Equal(t, []string{"/data/files/usr/bin", "/data/files/usr/libexec"}, l.ExecutableDirs())
}

func TestWithin(t *testing.T) {
	l := NewLayout("/data/files")

	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{name: "nested file", entry: "usr/bin/sh", want: "/data/files/usr/bin/sh"},
		{name: "directory entry", entry: "usr/lib/", want: "/data/files/usr/lib"},
		{name: "root itself", entry: "./", want: "/data/files"},
		{name: "parent escape", entry: "../evil", wantErr: true},
		{name: "deep escape", entry: "usr/../../etc/passwd", wantErr: true},
		{name: "sibling prefix", entry: "../files-other/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Within(tt.entry)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrEscape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.want), got)
		})
	}
}

func TestWithinFilesystemRoot(t *testing.T) {
	l := NewLayout("/")

	got, err := l.Within("usr/bin/sh")
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/sh", got)

	got, err = l.Within("../usr")
	require.NoError(t, err)
	assert.Equal(t, "/usr", got)
}

func TestSecure(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "usr/bin"), 0o755))
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "usr/link")))
	l := NewLayout(root)

	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{name: "existing parents", entry: "usr/bin/sh"},
		{name: "missing parents", entry: "usr/share/doc/README"},
		{name: "symlink leaf", entry: "usr/link"},
		{name: "through symlink", entry: "usr/link/pwned", wantErr: true},
		{name: "deep through symlink", entry: "usr/link/a/b", wantErr: true},
		{name: "textual escape", entry: "../x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.Secure(tt.entry)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrEscape)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(root, tt.entry), got)
		})
	}
}
