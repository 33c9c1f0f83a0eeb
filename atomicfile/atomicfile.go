// Package atomicfile writes and copies files so that readers of the
// destination never observe a partially written file: content is staged
// next to the destination and renamed into place.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrRead          = errors.New("read failed")
	ErrWrite         = errors.New("write failed")
	ErrCopy          = errors.New("copy failed")
	ErrMkdir         = errors.New("directory creation failed")
	ErrReplace       = errors.New("atomic replace failed")
	ErrTempCollision = errors.New("staging file already exists")
)

// StagingPath returns the fixed staging location used for dst. A leftover
// staging file means another writer is active (or crashed) and is reported
// as ErrTempCollision instead of being overwritten.
func StagingPath(dst string) string {
	return filepath.Join(filepath.Dir(dst), "."+filepath.Base(dst)+".staging")
}

// WriteFile atomically replaces path with data, creating parent directories.
func WriteFile(path string, data []byte, perm fs.FileMode) error {
	f, staging, err := openStaging(path, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		abort(f, staging)
		return fmt.Errorf("%w: %s: %w", ErrWrite, staging, err)
	}
	return commit(f, staging, path)
}

// Replace copies src over dst atomically. src is left untouched.
func Replace(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRead, src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrCopy, src)
	}

	f, staging, err := openStaging(dst, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, in); err != nil {
		abort(f, staging)
		return fmt.Errorf("%w: %s -> %s: %w", ErrCopy, src, staging, err)
	}
	return commit(f, staging, dst)
}

func openStaging(dst string, perm fs.FileMode) (*os.File, string, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %w", ErrMkdir, filepath.Dir(dst), err)
	}
	staging := StagingPath(dst)
	f, err := os.OpenFile(staging, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, "", fmt.Errorf("%w: %s", ErrTempCollision, staging)
		}
		return nil, "", fmt.Errorf("%w: %s: %w", ErrWrite, staging, err)
	}
	return f, staging, nil
}

func commit(f *os.File, staging, dst string) error {
	if err := f.Sync(); err != nil {
		abort(f, staging)
		return fmt.Errorf("%w: %s: %w", ErrWrite, staging, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return fmt.Errorf("%w: %s: %w", ErrWrite, staging, err)
	}
	if err := os.Rename(staging, dst); err != nil {
		os.Remove(staging)
		return fmt.Errorf("%w: %s: %w", ErrReplace, dst, err)
	}
	return nil
}

func abort(f *os.File, staging string) {
	f.Close()
	os.Remove(staging)
}
