// Package paramfile reads simulator parameter fragments and assembles the
// combined parameter file shared by every replica of a block.
package paramfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// DefaultMaxSizeMB is the slurp ceiling applied unless overridden.
const DefaultMaxSizeMB = 50

// ErrTooLarge is returned when a file exceeds the slurp ceiling
var ErrTooLarge = errors.New("file exceeds slurp size limit")

// Open opens path for reading, transparently decompressing it when the
// name ends in .gz.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}
	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to open gzip stream %s: %w", path, err)
	}
	return &gzipFile{Reader: zr, f: f}, nil
}

type gzipFile struct {
	*gzip.Reader
	f *os.File
}

func (g *gzipFile) Close() error {
	zerr := g.Reader.Close()
	ferr := g.f.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// Slurp reads the whole file into memory. Files whose on-disk size is
// above maxSizeMB megabytes are rejected; maxSizeMB <= 0 disables the check.
func Slurp(path string, maxSizeMB int) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if maxSizeMB > 0 && info.Size() > int64(maxSizeMB)*1024*1024 {
		return nil, fmt.Errorf("%w: %s (size=%d, limit=%dMB)", ErrTooLarge, path, info.Size(), maxSizeMB)
	}

	r, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
