package vfs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// OpenRead returns a finite, non-restartable reader over a file's
// content. Each Read issues one bounded substr query, sized to the
// caller's buffer and capped at the store's chunk limit, so large blobs
// never materialize in server memory at once.
func (s *Store) OpenRead(ctx context.Context, p string) (io.ReadCloser, error) {
	k := CleanPath(p)

	// Fail fast on missing files so callers see ENOENT before the
	// first Read.
	fi, err := s.Stat(ctx, k)
	if err != nil {
		return nil, err
	}
	if fi.Dir {
		return nil, newError(EISDIR, "open", k, "is a directory")
	}

	metrics.RecordStreamedRead()
	return &blobReader{ctx: ctx, store: s, path: k, offset: 1}, nil
}

// blobReader streams a content blob with repeated substr queries.
// SQL substr is 1-indexed; offset starts at 1 and advances by the bytes
// actually returned. A query returning no bytes terminates the stream.
type blobReader struct {
	ctx    context.Context
	store  *Store
	path   string
	offset int64
	done   bool
}

func (r *blobReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	chunk := len(p)
	if chunk > r.store.readChunk {
		chunk = r.store.readChunk
	}

	start := time.Now()
	var part []byte
	err := r.store.db.QueryRowContext(r.ctx,
		r.store.q(`SELECT substr(content, ?, ?) FROM %s WHERE path = ?`),
		r.offset, chunk, r.path).Scan(&part)
	metrics.RecordDBQuery("read_chunk", time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		// File vanished mid-stream; the sequence is finite, end it.
		r.done = true
		return 0, io.EOF
	}
	if err != nil {
		return 0, fmt.Errorf("read chunk %s at %d: %w", r.path, r.offset, err)
	}

	if len(part) == 0 {
		r.done = true
		return 0, io.EOF
	}

	n := copy(p, part)
	r.offset += int64(n)
	metrics.RecordContentRead(int64(n))
	if n < chunk {
		// Short chunk: the blob is exhausted.
		r.done = true
	}
	return n, nil
}

func (r *blobReader) Close() error {
	r.done = true
	return nil
}
