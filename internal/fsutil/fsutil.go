// Package fsutil holds the small file helpers shared by commands that write
// batch and qualification directories.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so readers never observe a partial file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync() // best-effort durability
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Exists reports whether path names an existing file or directory.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// CopyFile copies src to dst, creating or truncating dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}

// Stage creates a staging directory inside parent for a tree that will be
// published with Publish. The caller should defer Discard.
func Stage(parent, pattern string) (string, error) {
	dir, err := os.MkdirTemp(parent, pattern)
	if err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	if err := os.Chmod(dir, 0o755); err != nil {
		os.RemoveAll(dir)
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	return dir, nil
}

// Publish renames a staging directory to target. It refuses to replace an
// existing target.
func Publish(staging, target string) error {
	exists, err := Exists(target)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%s already exists", target)
	}
	if err := os.Rename(staging, target); err != nil {
		return fmt.Errorf("publish %s: %w", target, err)
	}
	return nil
}

// Discard removes a staging directory. It is a no-op once the directory has
// been published.
func Discard(staging string) {
	_ = os.RemoveAll(staging)
}
