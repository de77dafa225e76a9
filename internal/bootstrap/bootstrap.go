package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
	"github.com/GriffinCanCode/x11host/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/x11host/internal/shared/paths"
)

// copyBufferSize is the transfer buffer used for file contents
const copyBufferSize = 8 << 10

const markerContent = "ok"

// Options tunes extraction
type Options struct {
	// FixExecBits marks files under usr/bin and usr/libexec executable after
	// extraction, for archives that do not carry mode bits.
	FixExecBits bool
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
}

// Result describes one EnsureExtracted call
type Result struct {
	Skipped  bool
	Format   Format
	Entries  int
	Rejected int
}

// Bootstrapper performs the one-time userland extraction
type Bootstrapper struct {
	source  Source
	layout  paths.Layout
	opts    Options
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex
}

// New creates a bootstrapper extracting source under layout's root
func New(source Source, layout paths.Layout, opts Options) *Bootstrapper {
	return &Bootstrapper{
		source:  source,
		layout:  layout,
		opts:    opts,
		logger:  opts.Logger.For("bootstrap"),
		metrics: opts.Metrics,
	}
}

// Installed reports whether the marker exists
func (b *Bootstrapper) Installed() bool {
	_, err := os.Stat(b.layout.Marker())
	return err == nil
}

// EnsureExtracted extracts the archive unless the marker is present.
//
// Failures are logged as warnings and returned so the caller can note them;
// they never leave a marker behind. Concurrent callers are serialized, so the
// archive is extracted at most once.
func (b *Bootstrapper) EnsureExtracted(ctx context.Context) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Installed() {
		b.metrics.RecordBootstrap("skipped", 0)
		return Result{Skipped: true}, nil
	}

	res, err := b.extract(ctx)
	if err != nil {
		b.logger.Warn("No bundled userland found",
			zap.String("archive", b.source.String()),
			zap.Int("entries_written", res.Entries),
			zap.Error(err),
		)
		b.metrics.RecordBootstrap("failed", res.Entries)
		return res, err
	}

	if b.opts.FixExecBits {
		if err := b.fixExecBits(); err != nil {
			b.logger.Warn("Failed to mark userland binaries executable", zap.Error(err))
		}
	}

	if err := b.writeMarker(); err != nil {
		b.metrics.RecordBootstrap("failed", res.Entries)
		return res, err
	}

	b.logger.Info("Userland extracted",
		zap.String("archive", b.source.String()),
		zap.String("format", string(res.Format)),
		zap.Int("entries", res.Entries),
		zap.Int("rejected", res.Rejected),
	)
	b.metrics.RecordBootstrap("extracted", res.Entries)
	return res, nil
}

func (b *Bootstrapper) extract(ctx context.Context) (Result, error) {
	var res Result

	f, err := b.source.Open()
	if err != nil {
		return res, fmt.Errorf("open archive %s: %w", b.source, err)
	}
	defer f.Close()

	buf := make([]byte, copyBufferSize)

	format, err := walkArchive(f, b.source.String(), func(e entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		dest, err := b.layout.Secure(e.name)
		if err == nil && e.kind == kindHardlink {
			e.linkname, err = b.layout.Secure(e.linkname)
		}
		if errors.Is(err, paths.ErrEscape) {
			b.logger.Warn("Skipping archive entry outside private root",
				zap.String("entry", e.name), zap.Error(err))
			res.Rejected++
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", e.name, err)
		}

		if err := b.materialize(e, dest, buf); err != nil {
			return fmt.Errorf("extract %s: %w", e.name, err)
		}
		res.Entries++
		return nil
	})
	res.Format = format
	return res, err
}

// materialize writes one entry at dest. A symlink already sitting at dest is
// replaced, never followed. For hardlinks e.linkname is the resolved target.
func (b *Bootstrapper) materialize(e entry, dest string, buf []byte) error {
	if err := removeSymlink(dest); err != nil {
		return err
	}

	switch e.kind {
	case kindDir:
		return os.MkdirAll(dest, dirPerm(e.perm))

	case kindSymlink:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.Symlink(e.linkname, dest)

	case kindHardlink:
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		if err := os.Remove(dest); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return os.Link(e.linkname, dest)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	in, err := e.open()
	if err != nil {
		return err
	}
	defer in.Close()

	perm := filePerm(e.perm)
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	// onlyWriter hides ReadFrom so the fixed buffer is actually used
	_, err = io.CopyBuffer(onlyWriter{out}, in, buf)
	if err == nil {
		err = out.Chmod(perm)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func (b *Bootstrapper) fixExecBits() error {
	var fixed atomic.Int64
	conf := fastwalk.Config{Follow: false}

	for _, dir := range b.layout.ExecutableDirs() {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil || !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			mode := info.Mode().Perm()
			want := mode | (mode&0o444)>>2
			if want == mode {
				return nil
			}
			if err := os.Chmod(p, want); err != nil {
				return err
			}
			fixed.Add(1)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if n := fixed.Load(); n > 0 {
		b.logger.Debug("Marked userland files executable", zap.Int64("files", n))
	}
	return nil
}

func (b *Bootstrapper) writeMarker() error {
	if err := os.MkdirAll(b.layout.UsrDir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", b.layout.UsrDir(), err)
	}

	f, err := os.OpenFile(b.layout.Marker(), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("write marker: %w", err)
	}

	_, err = io.WriteString(f, markerContent)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(b.layout.Marker())
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

func removeSymlink(p string) error {
	info, err := os.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return nil
	}
	return os.Remove(p)
}

type onlyWriter struct {
	io.Writer
}

func filePerm(p fs.FileMode) fs.FileMode {
	if p == 0 {
		return 0o644
	}
	return p | 0o600
}

func dirPerm(p fs.FileMode) fs.FileMode {
	if p == 0 {
		return 0o755
	}
	return p | 0o700
}
