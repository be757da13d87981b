package vfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// Stat resolves a path to a FileInfo.
//
// Resolution order: file row first, then explicit directory row, then
// implicit directory derived from descendant keys. A trailing slash in
// the raw input skips the file lookup.
func (s *Store) Stat(ctx context.Context, p string) (*FileInfo, error) {
	k := CleanPath(p)

	if !HadTrailingSlash(p) && k != "/" {
		fi, err := s.statFile(ctx, k)
		if err != nil {
			return nil, err
		}
		if fi != nil {
			return fi, nil
		}
	}

	fi, err := s.statDir(ctx, k)
	if err != nil {
		return nil, err
	}
	if fi == nil {
		return nil, newError(ENOENT, "stat", k, "no such file or directory")
	}
	return fi, nil
}

// Access succeeds iff the path resolves.
func (s *Store) Access(ctx context.Context, p string) error {
	if _, err := s.Stat(ctx, p); err != nil {
		if code := CodeOf(err); code != "" {
			return newError(code, "access", CleanPath(p), "")
		}
		return err
	}
	return nil
}

func (s *Store) statFile(ctx context.Context, k string) (*FileInfo, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("stat_file", time.Since(start)) }()

	var (
		created, modified, size int64
		etag                    string
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT created_at, modified_at, size, etag FROM %s WHERE path = ?`),
		k).Scan(&created, &modified, &size, &etag)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat file %s: %w", k, err)
	}

	return &FileInfo{
		Path:     k,
		Explicit: true,
		Size:     size,
		Created:  millisToTime(created),
		Modified: millisToTime(modified),
		ETag:     etag,
	}, nil
}

// statDir resolves k as a directory: its explicit row if one exists,
// otherwise an implicit directory aggregated from descendant rows.
// Returns nil when neither form exists.
func (s *Store) statDir(ctx context.Context, k string) (*FileInfo, error) {
	dirKey := DirKey(k)

	if dirKey != "/" {
		start := time.Now()
		var created, modified int64
		err := s.db.QueryRowContext(ctx,
			s.q(`SELECT created_at, modified_at FROM %s WHERE path = ?`),
			dirKey).Scan(&created, &modified)
		metrics.RecordDBQuery("stat_dir", time.Since(start))
		if err == nil {
			return &FileInfo{
				Path:     k,
				Dir:      true,
				Explicit: true,
				Created:  millisToTime(created),
				Modified: millisToTime(modified),
			}, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("stat dir %s: %w", k, err)
		}
	}

	start := time.Now()
	var (
		count            int64
		created, modified sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*), MIN(created_at), MAX(modified_at) FROM %s WHERE path LIKE ? ESCAPE '\' AND path <> ?`),
		likePrefix(dirKey), dirKey).Scan(&count, &created, &modified)
	metrics.RecordDBQuery("stat_dir_implicit", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("stat implicit dir %s: %w", k, err)
	}
	if count == 0 {
		return nil, nil
	}

	return &FileInfo{
		Path:     k,
		Dir:      true,
		Created:  millisToTime(created.Int64),
		Modified: millisToTime(modified.Int64),
	}, nil
}
