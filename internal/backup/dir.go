package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/akuity/npmauth/internal/pipeline"
)

// rootDirName is the directory created under the chosen root to hold the
// backup directories of a build.
const rootDirName = "npmAuthenticate"

// Variables is the subset of build variable access the backup directory
// bookkeeping needs.
type Variables interface {
	Get(name string) string
	Set(name, value string) error
}

// AcquireDir returns the backup directory of the current build. A directory
// published by an earlier invocation is reused. Otherwise a new one is created
// below the first non-empty root, falling back to the user's cache directory,
// and published for later invocations and the cleanup step.
func AcquireDir(vars Variables, roots ...string) (string, error) {
	if dir := vars.Get(pipeline.VarSaveNpmrcPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("error ensuring backup directory %s: %w", dir, err)
		}
		return dir, nil
	}
	root := xdg.CacheHome
	for _, r := range roots {
		if r != "" {
			root = r
			break
		}
	}
	tempDir := filepath.Join(root, rootDirName)
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return "", fmt.Errorf("error creating %s: %w", tempDir, err)
	}
	dir, err := os.MkdirTemp(tempDir, "")
	if err != nil {
		return "", fmt.Errorf("error creating backup directory in %s: %w", tempDir, err)
	}
	if err = vars.Set(pipeline.VarSaveNpmrcPath, dir); err != nil {
		return "", fmt.Errorf("error publishing backup directory: %w", err)
	}
	if err = vars.Set(pipeline.VarTempDirectory, tempDir); err != nil {
		return "", fmt.Errorf("error publishing backup root directory: %w", err)
	}
	return dir, nil
}

// RemoveRoot deletes the backup root published by AcquireDir, if any, and
// clears the variables that point into it. It returns true if there was a root
// to remove.
func RemoveRoot(vars Variables) (bool, error) {
	root := vars.Get(pipeline.VarTempDirectory)
	if root == "" {
		return false, nil
	}
	if err := os.RemoveAll(root); err != nil {
		return false, fmt.Errorf("error removing %s: %w", root, err)
	}
	// Clear the variables only after the directory is gone
	if err := vars.Set(pipeline.VarSaveNpmrcPath, ""); err != nil {
		return true, err
	}
	if err := vars.Set(pipeline.VarTempDirectory, ""); err != nil {
		return true, err
	}
	return true, nil
}
