package vfs

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"       // postgres driver
	_ "modernc.org/sqlite"      // sqlite driver (pure Go)
)

// Dialect captures the per-engine differences the store needs: the
// database/sql driver name, the blob column type, and the placeholder
// style. Queries are written with `?` placeholders and rebound for
// engines that number them.
type Dialect struct {
	// Name is the database/sql driver name ("postgres" or "sqlite").
	Name string

	// BlobType is the column type used for the content blob.
	BlobType string

	// NumberedPlaceholders is true for engines using $1-style binding.
	NumberedPlaceholders bool
}

var (
	// Postgres speaks $n placeholders and stores content as BYTEA.
	Postgres = Dialect{Name: "postgres", BlobType: "BYTEA", NumberedPlaceholders: true}

	// SQLite speaks ? placeholders and stores content as BLOB.
	SQLite = Dialect{Name: "sqlite", BlobType: "BLOB"}
)

// Rebind converts a `?`-placeholder query into the dialect's native
// placeholder style.
func (d Dialect) Rebind(query string) string {
	if !d.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Open connects to the database named by url and returns the connection
// together with the dialect it speaks.
//
// Accepted URL forms:
//   - postgres://... or postgresql://...  (lib/pq DSN)
//   - sqlite:<path>, sqlite::memory:      (modernc.org/sqlite DSN)
//   - file:<path>                          (sqlite URI filename)
func Open(url string) (*sql.DB, Dialect, error) {
	var (
		dialect Dialect
		dsn     string
	)
	switch {
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		dialect = Postgres
		dsn = url
	case strings.HasPrefix(url, "sqlite:"):
		dialect = SQLite
		dsn = strings.TrimPrefix(url, "sqlite:")
	case strings.HasPrefix(url, "file:"):
		dialect = SQLite
		dsn = url
	default:
		return nil, Dialect{}, fmt.Errorf("unsupported database URL %q", url)
	}

	db, err := sql.Open(dialect.Name, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("open database: %w", err)
	}
	return db, dialect, nil
}
