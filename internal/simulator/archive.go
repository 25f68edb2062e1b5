package simulator

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// TpedFiles lists the per-population outputs written under prefix, that
// is every file in prefix's directory whose name starts with its base
// name followed by "_". The prefix is matched literally, so block ids may
// contain glob metacharacters.
func TpedFiles(prefix string) ([]string, error) {
	dir, base := filepath.Dir(prefix), filepath.Base(prefix)+"_"
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list tped outputs in %s: %w", dir, err)
	}
	var matches []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base) {
			continue
		}
		matches = append(matches, filepath.Join(dir, e.Name()))
	}
	sort.Strings(matches)
	return matches, nil
}

// PackTpeds bundles every prefix_* file into a gzipped tar at dest.
// Entries are stored by base name. It is an error for no file to match.
func PackTpeds(prefix, dest string) (err error) {
	files, err := TpedFiles(prefix)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no tped outputs match %s_*", prefix)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close archive %s: %w", dest, cerr)
		}
	}()

	zw := gzip.NewWriter(out)
	tw := tar.NewWriter(zw)
	for _, f := range files {
		if err := addFile(tw, f); err != nil {
			return err
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func addFile(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build tar header for %s: %w", path, err)
	}
	hdr.Name = filepath.Base(path)
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, f); err != nil {
		return fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return nil
}
