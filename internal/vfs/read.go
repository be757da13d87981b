package vfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// ReadFile returns the full content of a file. Directory rows (NULL
// content) and missing paths are ENOENT.
func (s *Store) ReadFile(ctx context.Context, p string) ([]byte, error) {
	k := CleanPath(p)

	start := time.Now()
	defer func() { metrics.RecordDBQuery("read_file", time.Since(start)) }()

	var (
		content []byte
		isNull  bool
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT content, content IS NULL FROM %s WHERE path = ?`), k).Scan(&content, &isNull)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, newError(ENOENT, "read", k, "no such file or directory")
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", k, err)
	}
	if isNull {
		// Directory row: content is NULL by construction.
		return nil, newError(ENOENT, "read", k, "no such file or directory")
	}
	if content == nil {
		content = []byte{}
	}

	metrics.RecordContentRead(int64(len(content)))
	return content, nil
}
