package vfs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
)

// Rmdir removes a directory. Without Recursive the directory must be
// empty; with it, the explicit row and every descendant go in one
// LIKE-keyed DELETE.
func (s *Store) Rmdir(ctx context.Context, p string, opts RmdirOptions) error {
	k := CleanPath(p)

	if !HadTrailingSlash(p) && k != "/" {
		fi, err := s.statFile(ctx, k)
		if err != nil {
			return err
		}
		if fi != nil {
			return newError(ENOTDIR, "rmdir", k, "not a directory")
		}
	}

	fi, err := s.statDir(ctx, k)
	if err != nil {
		return err
	}
	if fi == nil {
		return newError(ENOENT, "rmdir", k, "no such file or directory")
	}

	dirKey := DirKey(k)

	if !opts.Recursive {
		entries, err := s.ReadDir(ctx, k, ReadDirOptions{})
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			return newError(ENOTEMPTY, "rmdir", k, "directory not empty")
		}
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("rmdir", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM %s WHERE path = ? OR path LIKE ? ESCAPE '\'`),
		dirKey, likePrefix(dirKey))
	if err != nil {
		return fmt.Errorf("rmdir %s: %w", k, err)
	}

	rows, _ := res.RowsAffected()
	logging.Debug("removed directory", zap.String("path", k), zap.Int64("rows", rows))
	return nil
}

// Unlink removes a file row.
func (s *Store) Unlink(ctx context.Context, p string) error {
	k := CleanPath(p)
	if HadTrailingSlash(p) || k == "/" {
		return newError(EISDIR, "unlink", k, "is a directory")
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("unlink", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM %s WHERE path = ?`), k)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", k, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("unlink %s: %w", k, err)
	}
	if rows == 0 {
		return newError(ENOENT, "unlink", k, "no such file or directory")
	}

	logging.Debug("unlinked file", zap.String("path", k))
	return nil
}

// Remove resolves the path and dispatches to Rmdir or Unlink. Force
// swallows ENOENT, including for paths that never existed.
func (s *Store) Remove(ctx context.Context, p string, opts RemoveOptions) error {
	fi, err := s.Stat(ctx, p)
	if err != nil {
		if opts.Force && CodeOf(err) == ENOENT {
			return nil
		}
		return err
	}

	if fi.Dir {
		err = s.Rmdir(ctx, p, RmdirOptions{Recursive: opts.Recursive})
	} else {
		err = s.Unlink(ctx, p)
	}
	if err != nil && opts.Force && CodeOf(err) == ENOENT {
		return nil
	}
	return err
}
