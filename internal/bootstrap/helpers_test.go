package bootstrap

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name string
	body string
	mode int64
	dir  bool
	link string
}

var userland = []testEntry{
	{name: "usr/", dir: true},
	{name: "usr/bin/", dir: true},
	{name: "usr/bin/busybox", body: "#!/system/bin/sh\necho busybox\n", mode: 0o755},
	{name: "usr/etc/profile", body: "export PS1='$ '\n", mode: 0o644},
	{name: "usr/share/doc/README", body: "userland\n"},
}

func buildZip(t *testing.T, entries []testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(fs.FileMode(e.mode))
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if !e.dir {
			_, err = io.WriteString(w, e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func buildTar(t *testing.T, entries []testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: e.mode, ModTime: time.Unix(0, 0)}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			if hdr.Mode == 0 {
				hdr.Mode = 0o755
			}
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.body))
			if hdr.Mode == 0 {
				hdr.Mode = 0o644
			}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := io.WriteString(tw, e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(data)
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll(data, nil)
}

func writeArchive(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

// countingSource counts how often the archive is opened
type countingSource struct {
	Source
	opens atomic.Int32
}

func (c *countingSource) Open() (fs.File, error) {
	c.opens.Add(1)
	return c.Source.Open()
}

// failingSource serves data then fails after limit bytes
type failingSource struct {
	data  []byte
	limit int
}

var errDiskRead = errors.New("injected read failure")

func (s failingSource) Open() (fs.File, error) {
	return &failingFile{r: bytes.NewReader(s.data[:s.limit])}, nil
}

func (s failingSource) String() string { return "failing.tar" }

type failingFile struct {
	r *bytes.Reader
}

func (f *failingFile) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, errDiskRead
	}
	return n, err
}

func (f *failingFile) Stat() (fs.FileInfo, error) {
	return nil, fs.ErrInvalid
}

func (f *failingFile) Close() error { return nil }

func readFile(t *testing.T, p string) string {
	t.Helper()
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	return string(data)
}
