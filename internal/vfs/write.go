package vfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
)

// WriteFile creates or overwrites a file. Missing ancestors do not need
// rows: they become implicit directories the moment the file row lands.
func (s *Store) WriteFile(ctx context.Context, p string, data []byte) error {
	k := CleanPath(p)
	if HadTrailingSlash(p) || k == "/" {
		return newError(EISDIR, "write", k, "is a directory")
	}
	if len(k) > MaxPathLen {
		return newError(EINVAL, "write", k, "path too long")
	}

	// A file and an explicit directory may not share a base path.
	isDir, err := s.rowExists(ctx, DirKey(k))
	if err != nil {
		return err
	}
	if isDir {
		return newError(EISDIR, "write", k, "is a directory")
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("write_file", time.Since(start)) }()

	// A nil slice would bind as NULL, which marks a directory row; a
	// zero-byte file still needs non-NULL content.
	if data == nil {
		data = []byte{}
	}

	now := nowMillis()
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO %s (path, created_at, modified_at, size, etag, content)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (path) DO UPDATE SET
	modified_at = excluded.modified_at,
	size = excluded.size,
	etag = excluded.etag,
	content = excluded.content`),
		k, now, now, int64(len(data)), ETagFor(data), data)
	if err != nil {
		return fmt.Errorf("write %s: %w", k, err)
	}

	metrics.RecordContentWrite(int64(len(data)))
	logging.Debug("wrote file", zap.String("path", k), zap.Int("size", len(data)))
	return nil
}

// Mkdir creates an explicit directory row.
//
// It fails EEXIST when the path already resolves — as a file or as any
// directory, implicit included. Without Recursive the parent must
// already exist. Returns the created path when Recursive, matching the
// contract's "first created directory" result.
func (s *Store) Mkdir(ctx context.Context, p string, opts MkdirOptions) (string, error) {
	k := CleanPath(p)
	if k == "/" {
		return "", newError(EEXIST, "mkdir", k, "file exists")
	}
	if len(k)+1 > MaxPathLen {
		return "", newError(EINVAL, "mkdir", k, "path too long")
	}

	if _, err := s.Stat(ctx, k); err == nil {
		return "", newError(EEXIST, "mkdir", k, "file exists")
	} else if CodeOf(err) != ENOENT {
		return "", err
	}

	if !opts.Recursive {
		parent := ParentPath(k)
		if parent != "/" {
			fi, err := s.statDir(ctx, parent)
			if err != nil {
				return "", err
			}
			if fi == nil {
				return "", newError(ENOENT, "mkdir", k, "no such file or directory")
			}
		}
	}

	start := time.Now()
	defer func() { metrics.RecordDBQuery("mkdir", time.Since(start)) }()

	now := nowMillis()
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO %s (path, created_at, modified_at, size, etag, content)
VALUES (?, ?, ?, 0, '', NULL)`),
		DirKey(k), now, now)
	if err != nil {
		return "", fmt.Errorf("mkdir %s: %w", k, err)
	}

	logging.Debug("created directory", zap.String("path", k))
	if opts.Recursive {
		return k, nil
	}
	return "", nil
}

// rowExists checks for an exact key.
func (s *Store) rowExists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT 1 FROM %s WHERE path = ?`), key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %s: %w", key, err)
	}
	return true, nil
}
