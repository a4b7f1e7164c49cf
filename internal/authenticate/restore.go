package authenticate

import (
	"context"
	"fmt"

	"github.com/akuity/npmauth/internal/backup"
	"github.com/akuity/npmauth/internal/pipeline"
	"github.com/akuity/npmauth/pkg/logging"
)

// Restore puts back every .npmrc file backed up during the build and removes
// the backups. It is a no-op if nothing was backed up. Backups are kept if any
// file cannot be restored.
func Restore(ctx context.Context, vars *pipeline.Variables) error {
	logger := logging.LoggerFromContext(ctx)

	dir := vars.Get(pipeline.VarSaveNpmrcPath)
	if dir == "" {
		logger.Info("no backups found; nothing to restore")
		return nil
	}
	idx, err := backup.Open(dir)
	if err != nil {
		return err
	}
	for _, path := range idx.Paths() {
		id, _ := idx.Lookup(path)
		logger.Debug("restoring .npmrc file", "file", path, "backup", id)
	}
	if err = idx.RestoreAll(); err != nil {
		return fmt.Errorf("error restoring .npmrc files: %w", err)
	}
	logger.Info("restored .npmrc files", "count", len(idx.Paths()))

	removed, err := backup.RemoveRoot(vars)
	if err != nil {
		return err
	}
	if removed {
		return nil
	}
	// The backup directory was provided rather than created by this tool
	logger.Debug("removing backup directory", "dir", idx.Dir())
	if err = idx.Remove(); err != nil {
		return err
	}
	return vars.Set(pipeline.VarSaveNpmrcPath, "")
}
