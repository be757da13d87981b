package vfs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
)

// CopyFile duplicates a file row under a new key with fresh timestamps.
// The copy happens inside the database; content never crosses the wire.
func (s *Store) CopyFile(ctx context.Context, src, dest string) error {
	srcK := CleanPath(src)
	destK := CleanPath(dest)

	if HadTrailingSlash(src) || srcK == "/" {
		return newError(EINVAL, "copyfile", srcK, "source is a directory")
	}
	if HadTrailingSlash(dest) || destK == "/" {
		return newError(EISDIR, "copyfile", destK, "destination is a directory")
	}
	if len(destK) > MaxPathLen {
		return newError(EINVAL, "copyfile", destK, "path too long")
	}

	destDir, err := s.statDir(ctx, destK)
	if err != nil {
		return err
	}
	if destDir != nil {
		return newError(EISDIR, "copyfile", destK, "destination is a directory")
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("copy_file", time.Since(start)) }()

	now := nowMillis()
	res, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO %s (path, created_at, modified_at, size, etag, content)
SELECT ?, ?, ?, size, etag, content FROM %s WHERE path = ? AND content IS NOT NULL
ON CONFLICT (path) DO UPDATE SET
	created_at = excluded.created_at,
	modified_at = excluded.modified_at,
	size = excluded.size,
	etag = excluded.etag,
	content = excluded.content`),
		destK, now, now, srcK)
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", srcK, destK, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("copy %s -> %s: %w", srcK, destK, err)
	}
	if rows == 0 {
		return newError(ENOENT, "copyfile", srcK, "no such file or directory")
	}

	logging.Debug("copied file", zap.String("from", srcK), zap.String("to", destK))
	return nil
}
