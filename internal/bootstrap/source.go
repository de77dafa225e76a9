package bootstrap

import (
	"io/fs"
	"os"
)

// Source opens the bundled archive.
type Source interface {
	Open() (fs.File, error)
	String() string
}

type fileSource string

// FromFile returns a Source reading the archive from a path on disk.
func FromFile(path string) Source {
	return fileSource(path)
}

func (s fileSource) Open() (fs.File, error) {
	return os.Open(string(s))
}

func (s fileSource) String() string {
	return string(s)
}

type fsSource struct {
	fsys fs.FS
	name string
}

// FromFS returns a Source reading the archive from a filesystem, such as an
// embed.FS compiled into the binary.
func FromFS(fsys fs.FS, name string) Source {
	return fsSource{fsys: fsys, name: name}
}

func (s fsSource) Open() (fs.File, error) {
	return s.fsys.Open(s.name)
}

func (s fsSource) String() string {
	return s.name
}
