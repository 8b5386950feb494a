package file

import (
	"crypto/md5" //nolint:gosec // archive checksums are MD5
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const appDirPerm os.FileMode = 0o750

// ErrDestinationExists is returned by Move instead of replacing a file.
var ErrDestinationExists = errors.New("destination exists")

// EnsureDir creates the directory if it does not exist.
func EnsureDir(dirPath string) error {
	if dirPath == "" {
		return errors.New("empty dir path")
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned data dir
		return fmt.Errorf("ensure dir: %w", err)
	}
	return nil
}

// WriteJSONAtomic marshals the value and writes it to filename through a temp file and rename.
func WriteJSONAtomic(filename string, v any) error {
	if filename == "" {
		return errors.New("empty filename")
	}
	return writeAtomic(filename, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}

// CopyAtomic writes data provided by the reader to the destination file atomically.
func CopyAtomic(filename string, reader io.Reader) error {
	return writeAtomic(filename, func(w io.Writer) error {
		if _, err := io.Copy(w, reader); err != nil {
			return fmt.Errorf("copy to temp: %w", err)
		}
		return nil
	})
}

func writeAtomic(filename string, fill func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tempFile.Name()
	if err := fill(tempFile); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return err
	}
	// ensure data hits disk
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}

// Move relocates src into destDir, keeping the base name. The source is gone afterwards and the
// destination holds identical content. An existing destination file is never replaced.
// Falls back to copy+remove across filesystems.
func Move(src, destDir string) (string, error) {
	if err := EnsureDir(destDir); err != nil {
		return "", err
	}
	dest := filepath.Join(destDir, filepath.Base(src))
	if _, err := os.Lstat(dest); err == nil {
		return "", fmt.Errorf("move %s: %w: %s", src, ErrDestinationExists, dest)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("stat destination: %w", err)
	}
	if err := os.Rename(src, dest); err == nil {
		return dest, nil
	}
	in, err := os.Open(src) //nolint:gosec // path comes from the directory listing
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	err = CopyAtomic(dest, in)
	_ = in.Close()
	if err != nil {
		return "", err
	}
	if err := os.Remove(src); err != nil {
		return "", fmt.Errorf("remove source: %w", err)
	}
	return dest, nil
}

// MD5 returns the hex digest and size of the file at path.
func MD5(path string) (string, int64, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the directory listing
	if err != nil {
		return "", 0, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()
	h := md5.New() //nolint:gosec
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("checksum: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
