// Package dataset prepares a downloaded dataset on disk: it unpacks the
// archive and moves the images out of the numbered sub-folders they ship in.
package dataset

import (
	"archive/tar"
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsafePath is returned for archive entries that would land outside
// the destination directory.
var ErrUnsafePath = errors.New("unsafe path in archive")

// SubdirCount is the number of numbered sub-folders (00..99).
const SubdirCount = 100

// ExtractTar unpacks a .tar (optionally gzip-compressed) archive into dest
// and returns the number of files written. Symlinks and other special
// entries are skipped.
func ExtractTar(archive, dest string) (int, error) {
	file, err := os.Open(archive)
	if err != nil {
		return 0, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(dest, 0755); err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dest, err)
	}

	r, err := maybeGzip(bufio.NewReader(file))
	if err != nil {
		return 0, fmt.Errorf("failed to read archive %s: %w", archive, err)
	}

	tr := tar.NewReader(r)
	written := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil && !errors.Is(err, tar.ErrInsecurePath) {
			return written, fmt.Errorf("failed to read archive %s: %w", archive, err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return written, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return written, fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(target, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func maybeGzip(r *bufio.Reader) (io.Reader, error) {
	magic, err := r.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		return gzip.NewReader(r)
	}
	return r, nil
}

func safeJoin(dest, name string) (string, error) {
	if name == "" || strings.ContainsRune(name, 0) || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return target, nil
}

func writeEntry(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// SubdirName is the name of the i-th numbered sub-folder: "00".."99".
func SubdirName(i int) string {
	return fmt.Sprintf("%02d", i)
}

// Flatten moves every file of dest/subfolder/00 .. dest/subfolder/99 into
// dest and removes the emptied sub-folders. Missing sub-folders are
// ignored. It returns the number of files moved.
func Flatten(dest, subfolder string) (int, error) {
	moved := 0
	for i := 0; i < SubdirCount; i++ {
		dir := filepath.Join(dest, subfolder, SubdirName(i))
		entries, err := os.ReadDir(dir)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return moved, fmt.Errorf("failed to read %s: %w", dir, err)
		}

		for _, entry := range entries {
			if !entry.Type().IsRegular() {
				continue
			}
			src := filepath.Join(dir, entry.Name())
			if err := os.Rename(src, filepath.Join(dest, entry.Name())); err != nil {
				return moved, fmt.Errorf("failed to move %s: %w", src, err)
			}
			moved++
		}

		if err := os.Remove(dir); err != nil {
			return moved, fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	return moved, nil
}
