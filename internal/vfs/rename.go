package vfs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
)

// Rename moves a file or a directory tree.
//
// Files move with a single-row key update. Directories rewrite every
// descendant key (and the explicit row, if any) with one LIKE-keyed
// UPDATE; the rewrite is not atomic with respect to concurrent writers
// under the old prefix.
func (s *Store) Rename(ctx context.Context, oldP, newP string) error {
	oldK := CleanPath(oldP)
	newK := CleanPath(newP)
	if oldK == "/" || newK == "/" {
		return newError(EINVAL, "rename", oldK, "cannot rename root")
	}
	if len(newK)+1 > MaxPathLen {
		return newError(EINVAL, "rename", newK, "path too long")
	}

	srcFile, err := s.statFile(ctx, oldK)
	if err != nil {
		return err
	}
	if srcFile != nil && !HadTrailingSlash(oldP) {
		return s.renameFile(ctx, oldK, newK)
	}

	srcDir, err := s.statDir(ctx, oldK)
	if err != nil {
		return err
	}
	if srcDir == nil {
		return newError(ENOENT, "rename", oldK, "no such file or directory")
	}
	return s.renameDir(ctx, oldK, newK)
}

func (s *Store) renameFile(ctx context.Context, oldK, newK string) error {
	destFile, err := s.statFile(ctx, newK)
	if err != nil {
		return err
	}
	if destFile != nil {
		return newError(EEXIST, "rename", newK, "file exists")
	}
	destDir, err := s.statDir(ctx, newK)
	if err != nil {
		return err
	}
	if destDir != nil {
		return newError(EISDIR, "rename", newK, "is a directory")
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename_file", time.Since(start)) }()

	_, err = s.db.ExecContext(ctx,
		s.q(`UPDATE %s SET path = ?, modified_at = ? WHERE path = ?`),
		newK, nowMillis(), oldK)
	if err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldK, newK, err)
	}

	logging.Debug("renamed file", zap.String("from", oldK), zap.String("to", newK))
	return nil
}

func (s *Store) renameDir(ctx context.Context, oldK, newK string) error {
	destDir, err := s.rowExists(ctx, DirKey(newK))
	if err != nil {
		return err
	}
	if destDir {
		return newError(EEXIST, "rename", newK, "file exists")
	}

	oldPrefix := DirKey(oldK)
	newPrefix := DirKey(newK)

	start := time.Now()
	defer func() { metrics.RecordDBQuery("rename_dir", time.Since(start)) }()

	// One statement rewrites the explicit row and every descendant:
	// the prefix swap is string surgery on the key. `||` concatenation
	// and two-arg substr are portable across postgres and sqlite.
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE %s SET path = ? || substr(path, ?), modified_at = ? WHERE path LIKE ? ESCAPE '\'`),
		newPrefix, len(oldPrefix)+1, nowMillis(), likePrefix(oldPrefix))
	if err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldK, newK, err)
	}

	rows, _ := res.RowsAffected()
	logging.Debug("renamed directory",
		zap.String("from", oldK),
		zap.String("to", newK),
		zap.Int64("rows", rows))
	return nil
}
