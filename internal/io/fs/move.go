package fs

import (
	"fmt"
	"os"
	"path/filepath"
)

// SimpleAtomicMove performs an atomic move operation from src to dst.
// If the destination already exists, it removes it before attempting the move.
// It returns an error if the move operation fails for any reason, including
// if the source file does not exist or if the destination cannot be created.
func SimpleAtomicMove(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
		}

		// If the destination already exists, remove it and try again
		if err = os.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to remove existing destination %s: %w", dst, err)
		}

		if err = os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to move %s to %s after removing existing: %w", src, dst, err)
		}
	}
	return nil
}

// WriteFileAtomic replaces the content of path with data. The data is first
// written to a temporary file in the same directory and then moved over path,
// so readers observe either the old or the new content, never a partial
// write. The mode of an existing file is preserved.
func WriteFileAtomic(path string, data []byte, defaultMode os.FileMode) error {
	mode := defaultMode
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// Only exists if something went wrong before the move
		_ = os.Remove(tmpName)
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temporary file for %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file for %s: %w", path, err)
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to set mode on temporary file for %s: %w", path, err)
	}
	return SimpleAtomicMove(tmpName, path)
}
