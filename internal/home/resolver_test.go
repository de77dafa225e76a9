package home

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		granted bool
		shared  string
		private string
		want    string
	}{
		{name: "granted", granted: true, shared: "/storage/emulated/0", private: "/data/files", want: "/storage/emulated/0"},
		{name: "denied", granted: false, shared: "/storage/emulated/0", private: "/data/files", want: "/data/files"},
		{name: "granted without shared root", granted: true, shared: "", private: "/data/files", want: "/data/files"},
		{name: "nothing known", granted: false, shared: "", private: "", want: "/"},
		{name: "granted nothing known", granted: true, shared: "", private: "", want: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(NewStaticPermission(tt.granted), tt.shared, tt.private)
			assert.Equal(t, tt.want, r.Resolve())
		})
	}
}

func TestResolveFollowsToggles(t *testing.T) {
	perm := NewStaticPermission(false)
	r := NewResolver(perm, "/sdcard", "/data/files")

	sequence := []bool{false, true, true, false, true, false}
	for i, granted := range sequence {
		perm.Set(granted)
		want := "/data/files"
		if granted {
			want = "/sdcard"
		}
		assert.Equal(t, want, r.Resolve(), "step %d", i)
		assert.Equal(t, granted, r.Granted(), "step %d", i)
	}
}

func TestResolveNilPermission(t *testing.T) {
	r := NewResolver(nil, "/sdcard", "/data/files")
	assert.Equal(t, "/data/files", r.Resolve())
}

func TestStaticPermissionSetReportsChange(t *testing.T) {
	p := NewStaticPermission(false)

	assert.False(t, p.Set(false))
	assert.True(t, p.Set(true))
	assert.False(t, p.Set(true))
	assert.True(t, p.Granted())
}

func TestProbePermission(t *testing.T) {
	dir := t.TempDir()

	assert.True(t, NewProbePermission(dir).Granted())
	assert.False(t, NewProbePermission(filepath.Join(dir, "missing")).Granted())
	assert.False(t, NewProbePermission("").Granted())

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.False(t, NewProbePermission(file).Granted())
}

func TestCommandRequester(t *testing.T) {
	logger := logging.NewNop()

	assert.NoError(t, NewCommandRequester(nil, logger).Request(context.Background()))
	assert.NoError(t, NewCommandRequester([]string{"true"}, logger).Request(context.Background()))
	assert.Error(t, NewCommandRequester([]string{"false"}, logger).Request(context.Background()))
}
