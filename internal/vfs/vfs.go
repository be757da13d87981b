// Package vfs implements a POSIX-like virtual filesystem stored in a
// single relational table.
//
// Every row is keyed by a normalized path. A trailing slash marks an
// explicit directory row; directories that only exist as prefixes of
// deeper keys are implicit and still first-class for Stat and ReadDir.
// Content lives in the row itself (BYTEA/BLOB), so the whole filesystem
// — hierarchy and bytes — is one table.
package vfs

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// FS is the filesystem contract the protocol layers consume.
//
// All paths are normalized on entry. Implementations must be safe for
// concurrent use; the table (or a substitute backing store) is the only
// source of truth.
type FS interface {
	Stat(ctx context.Context, path string) (*FileInfo, error)
	Access(ctx context.Context, path string) error
	Mkdir(ctx context.Context, path string, opts MkdirOptions) (string, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	ReadFile(ctx context.Context, path string) ([]byte, error)
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	ReadDir(ctx context.Context, path string, opts ReadDirOptions) ([]DirEntry, error)
	Rename(ctx context.Context, oldPath, newPath string) error
	Rmdir(ctx context.Context, path string, opts RmdirOptions) error
	Unlink(ctx context.Context, path string) error
	Remove(ctx context.Context, path string, opts RemoveOptions) error
	CopyFile(ctx context.Context, src, dest string) error
}

// Store implements FS over a SQL table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string

	// readChunk caps the bytes fetched per round-trip by OpenRead.
	readChunk int
}

var _ FS = (*Store)(nil)

// Options configures a Store.
type Options struct {
	// TableName overrides DefaultTableName.
	TableName string

	// ReadChunk caps streamed-read round-trips; defaults to 1 MiB.
	ReadChunk int
}

// DefaultReadChunk is the streamed-read chunk cap.
const DefaultReadChunk = 1024 * 1024

// New creates a Store over db. It does not touch the database; call
// EnsureSchema to bootstrap the table.
func New(db *sql.DB, dialect Dialect, opts Options) (*Store, error) {
	table := opts.TableName
	if table == "" {
		table = DefaultTableName
	}
	if !ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	chunk := opts.ReadChunk
	if chunk <= 0 {
		chunk = DefaultReadChunk
	}
	return &Store{db: db, dialect: dialect, table: table, readChunk: chunk}, nil
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics refreshes the database connection gauges.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// RowCount returns the number of rows in the filesystem table.
func (s *Store) RowCount(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("row_count", time.Since(start)) }()

	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count)
	return count, err
}

// q substitutes the table name for every %s and rewrites ?-placeholders
// for the active dialect.
func (s *Store) q(format string) string {
	return s.dialect.Rebind(strings.ReplaceAll(format, "%s", s.table))
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}
