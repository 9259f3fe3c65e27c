// Package fsutil provides small filesystem helpers shared by the sync
// engine. All functions operate on billy filesystems rooted at the source or
// target folder, using slash-separated paths relative to that root.
package fsutil

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
)

// Dot maps the empty relative path (the root) to ".".
func Dot(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// Exists reports whether anything exists at the given path.
func Exists(fs billy.Filesystem, rel string) (bool, error) {
	_, err := fs.Stat(Dot(rel))
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
}

// IsDir reports whether the given path exists and is a directory.
func IsDir(fs billy.Filesystem, rel string) (bool, error) {
	info, err := fs.Stat(Dot(rel))
	switch {
	case err == nil:
		return info.IsDir(), nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat %s: %w", rel, err)
	}
}

// CopyFile copies a file from one filesystem to another with an atomic
// write: the content goes into a temp file next to the destination and a
// single rename puts it in place.
func CopyFile(src billy.Filesystem, from string, dst billy.Filesystem, to string) error {
	srcFile, err := src.Open(from)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", from, err)
	}
	defer func() {
		_ = srcFile.Close()
	}()

	dir := path.Dir(to)
	if dir != "." {
		if err := dst.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	tmpFile, err := dst.TempFile(dir, ".gosink-tmp-")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = dst.Remove(tmpPath)
	}() // cleanup on error

	if _, err := io.Copy(tmpFile, srcFile); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to copy %s: %w", from, err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := dst.Rename(tmpPath, to); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", to, err)
	}

	return nil
}

// FileMD5 computes the MD5 hash of a file's content.
func FileMD5(fs billy.Filesystem, rel string) (string, error) {
	f, err := fs.Open(rel)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", rel, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
