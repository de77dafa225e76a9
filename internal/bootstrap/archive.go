package bootstrap

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Format identifies an archive container
type Format string

const (
	FormatZip     Format = "zip"
	FormatTar     Format = "tar"
	FormatTarGzip Format = "tar.gz"
	FormatTarZstd Format = "tar.zst"
)

// sniffLen is how much of the archive is inspected for format detection
const sniffLen = 3072

// ErrUnsupportedFormat is returned when the archive type cannot be read
var ErrUnsupportedFormat = errors.New("unsupported archive format")

type entryKind int

const (
	kindFile entryKind = iota
	kindDir
	kindSymlink
	kindHardlink
)

// entry is one archive member in stored order
type entry struct {
	name     string
	kind     entryKind
	perm     fs.FileMode
	linkname string
	open     func() (io.ReadCloser, error)
}

// detectFormat classifies an archive by its leading bytes, falling back to
// the source name when the content is not recognized.
func detectFormat(header []byte, name string) (Format, error) {
	for m := mimetype.Detect(header); m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return FormatZip, nil
		case m.Is("application/gzip"):
			return FormatTarGzip, nil
		case m.Is("application/zstd"):
			return FormatTarZstd, nil
		case m.Is("application/x-tar"):
			return FormatTar, nil
		}
	}

	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGzip, nil
	case strings.HasSuffix(lower, ".tar.zst"), strings.HasSuffix(lower, ".tzst"):
		return FormatTarZstd, nil
	case strings.HasSuffix(lower, ".tar"):
		return FormatTar, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
}

// walkArchive detects the format of f and calls visit for every entry in
// the order stored in the archive. Any read error aborts the walk.
func walkArchive(f fs.File, name string, visit func(entry) error) (Format, error) {
	br := bufio.NewReaderSize(f, sniffLen)
	header, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("read archive header: %w", err)
	}

	format, err := detectFormat(header, name)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatZip:
		return format, walkZip(f, br, visit)
	case FormatTarGzip:
		gz, err := gzip.NewReader(br)
		if err != nil {
			return format, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return format, walkTar(tar.NewReader(gz), visit)
	case FormatTarZstd:
		zr, err := zstd.NewReader(br)
		if err != nil {
			return format, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		return format, walkTar(tar.NewReader(zr), visit)
	default:
		return format, walkTar(tar.NewReader(br), visit)
	}
}

// walkZip needs random access. Files that support ReadAt are used directly,
// anything else is buffered in memory first.
func walkZip(f fs.File, buffered io.Reader, visit func(entry) error) error {
	var (
		ra   io.ReaderAt
		size int64
	)

	if at, ok := f.(io.ReaderAt); ok {
		if info, err := f.Stat(); err == nil && info.Mode().IsRegular() {
			ra, size = at, info.Size()
		}
	}
	if ra == nil {
		data, err := io.ReadAll(buffered)
		if err != nil {
			return fmt.Errorf("read zip: %w", err)
		}
		ra, size = bytes.NewReader(data), int64(len(data))
	}

	zr, err := zip.NewReader(ra, size)
	if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
		// unsafe names are rejected per entry by the caller
		err = nil
	}
	if err != nil {
		return fmt.Errorf("zip: %w", err)
	}

	for _, zf := range zr.File {
		e := entry{
			name: zf.Name,
			kind: kindFile,
			perm: zf.Mode().Perm(),
			open: zf.Open,
		}
		if zf.FileInfo().IsDir() {
			e.kind = kindDir
		}
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

func walkTar(tr *tar.Reader, visit func(entry) error) error {
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar: %w", err)
		}

		e := entry{
			name: hdr.Name,
			perm: fs.FileMode(hdr.Mode).Perm(),
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			e.kind = kindDir
		case tar.TypeSymlink:
			e.kind = kindSymlink
			e.linkname = hdr.Linkname
		case tar.TypeLink:
			e.kind = kindHardlink
			e.linkname = path.Clean(hdr.Linkname)
		case tar.TypeXGlobalHeader, tar.TypeXHeader, tar.TypeChar, tar.TypeBlock, tar.TypeFifo:
			continue
		default:
			e.kind = kindFile
			e.open = func() (io.ReadCloser, error) {
				return io.NopCloser(tr), nil
			}
		}

		if err := visit(e); err != nil {
			return err
		}
	}
}
