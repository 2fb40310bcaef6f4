// Package flat keeps append-only gzipped archives on disk, one directory per tracker.
package flat

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

const (
	TrackersDir    = "trackers"
	FixesFileName  = "fixes.geojson.gz"
	EventsFileName = "events.ndjson.gz"
)

type Flat struct {
	// path includes the root directory.
	path string
}

func NewFlatWithRoot(root string) *Flat {
	root = filepath.Clean(root)
	if !filepath.IsAbs(root) {
		root, _ = filepath.Abs(root)
	}
	return &Flat{path: root}
}

// ForTracker returns the archive directory for the named tracker.
func (f *Flat) ForTracker(name string) *Flat {
	return f.Joining(TrackersDir, name)
}

// Joining returns a new Flat at path joined with paths.
func (f *Flat) Joining(paths ...string) *Flat {
	return &Flat{path: filepath.Join(append([]string{f.path}, paths...)...)}
}

func (f *Flat) Exists() bool {
	_, err := os.Stat(f.path)
	return err == nil
}

func (f *Flat) MkdirAll() error {
	return os.MkdirAll(f.path, 0770)
}

func (f *Flat) Path() string {
	return f.path
}

func (f *Flat) NamedGZWriter(name string, config *GZFileWriterConfig) (*GZFileWriter, error) {
	if config == nil {
		config = DefaultGZFileWriterConfig()
	}
	return NewFlatGZWriter(filepath.Join(f.path, name), config)
}

func (f *Flat) NamedGZReader(name string) (*GZFileReader, error) {
	return NewFlatGZReader(filepath.Join(f.path, name))
}

// GZFileWriter appends a gzip member to a file.
// An exclusive flock is held from the first Write until Close.
type GZFileWriter struct {
	f      *os.File
	gzw    *gzip.Writer
	locked bool
}

type GZFileWriterConfig struct {
	CompressionLevel int
	Flag             int
	FilePerm         os.FileMode
	DirPerm          os.FileMode
}

func DefaultGZFileWriterConfig() *GZFileWriterConfig {
	return &GZFileWriterConfig{
		CompressionLevel: gzip.DefaultCompression,
		Flag:             os.O_WRONLY | os.O_APPEND | os.O_CREATE,
		FilePerm:         0660,
		DirPerm:          0770,
	}
}

func NewFlatGZWriter(path string, config *GZFileWriterConfig) (*GZFileWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), config.DirPerm); err != nil {
		return nil, err
	}
	fi, err := os.OpenFile(path, config.Flag, config.FilePerm)
	if err != nil {
		return nil, err
	}
	gzw, err := gzip.NewWriterLevel(fi, config.CompressionLevel)
	if err != nil {
		fi.Close()
		return nil, err
	}
	return &GZFileWriter{f: fi, gzw: gzw}, nil
}

func (g *GZFileWriter) Write(p []byte) (int, error) {
	if !g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_EX); err != nil {
			return 0, err
		}
		g.locked = true
	}
	return g.gzw.Write(p)
}

// Flush pushes buffered data to the file without ending the gzip member.
func (g *GZFileWriter) Flush() error {
	return g.gzw.Flush()
}

func (g *GZFileWriter) Close() error {
	if err := g.gzw.Close(); err != nil {
		return err
	}
	if err := g.f.Sync(); err != nil {
		return err
	}
	if g.locked {
		if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
			return err
		}
		g.locked = false
	}
	return g.f.Close()
}

func (g *GZFileWriter) Path() string {
	return g.f.Name()
}

// GZFileReader reads every gzip member of a file as one stream,
// holding a shared flock until Close.
type GZFileReader struct {
	f      *os.File
	gzr    *gzip.Reader
	closed bool
}

func NewFlatGZReader(path string) (*GZFileReader, error) {
	fi, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(fi.Fd()), syscall.LOCK_SH); err != nil {
		fi.Close()
		return nil, err
	}
	gzr, err := gzip.NewReader(fi)
	if err != nil {
		syscall.Flock(int(fi.Fd()), syscall.LOCK_UN)
		fi.Close()
		return nil, err
	}
	return &GZFileReader{f: fi, gzr: gzr}, nil
}

func (g *GZFileReader) Read(p []byte) (int, error) {
	if g.closed {
		return 0, io.ErrClosedPipe
	}
	return g.gzr.Read(p)
}

func (g *GZFileReader) Close() error {
	if g.closed {
		return nil
	}
	g.closed = true
	if err := g.gzr.Close(); err != nil {
		return err
	}
	if err := syscall.Flock(int(g.f.Fd()), syscall.LOCK_UN); err != nil {
		return err
	}
	return g.f.Close()
}
