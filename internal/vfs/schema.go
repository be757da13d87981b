package vfs

import (
	"context"
	"fmt"
	"regexp"
)

// DefaultTableName is the table used when configuration does not
// override it.
const DefaultTableName = "filesystem"

// tableNameRe guards the one identifier that is interpolated into SQL
// text; everything else is bound as a parameter.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidTableName reports whether name is a safe SQL identifier.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// EnsureSchema creates the filesystem table if it does not exist.
//
// One row per file or explicit directory. Directory rows have a
// trailing-slash path, a NULL content column and an empty etag; implicit
// directories have no row at all and are derived from key prefixes.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	path        VARCHAR(%d) PRIMARY KEY,
	created_at  BIGINT NOT NULL,
	modified_at BIGINT NOT NULL,
	size        BIGINT NOT NULL DEFAULT 0,
	etag        TEXT NOT NULL DEFAULT '',
	content     %s,
	meta        TEXT
)`, s.table, MaxPathLen, s.dialect.BlobType)

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}
