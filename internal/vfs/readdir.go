package vfs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tabledav/tabledav/internal/metrics"
)

// ReadDir lists a directory.
//
// Immediate children come in two kinds: file rows whose relative key has
// no separator, and directories — explicit child rows plus the first
// segments of deeper keys. Recursive listings enumerate every descendant
// file and every directory segment on the way down. Results are sorted
// directories first, then files, both lexicographic.
func (s *Store) ReadDir(ctx context.Context, p string, opts ReadDirOptions) ([]DirEntry, error) {
	k := CleanPath(p)
	dirKey := DirKey(k)

	if k != "/" && !HadTrailingSlash(p) {
		fi, err := s.statFile(ctx, k)
		if err != nil {
			return nil, err
		}
		if fi != nil {
			return nil, newError(ENOTDIR, "readdir", k, "not a directory")
		}
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT path FROM %s WHERE path LIKE ? ESCAPE '\' ORDER BY path`),
		likePrefix(dirKey))
	metrics.RecordDBQuery("readdir", time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", k, err)
	}
	defer rows.Close()

	var (
		sawSelf bool
		rels    []string
	)
	for rows.Next() {
		var rowPath string
		if err := rows.Scan(&rowPath); err != nil {
			return nil, fmt.Errorf("readdir %s: %w", k, err)
		}
		if rowPath == dirKey {
			sawSelf = true
			continue
		}
		rels = append(rels, strings.TrimPrefix(rowPath, dirKey))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("readdir %s: %w", k, err)
	}

	if len(rels) == 0 && !sawSelf && k != "/" {
		return nil, newError(ENOENT, "readdir", k, "no such file or directory")
	}

	dirSet := make(map[string]bool)
	var files []string

	for _, rel := range rels {
		explicitDir := strings.HasSuffix(rel, "/")
		if explicitDir {
			rel = strings.TrimSuffix(rel, "/")
		}
		if rel == "" {
			continue
		}

		if opts.Recursive {
			if explicitDir {
				addSegments(dirSet, rel, true)
			} else {
				files = append(files, rel)
				addSegments(dirSet, rel, false)
			}
			continue
		}

		switch {
		case !strings.Contains(rel, "/"):
			if explicitDir {
				dirSet[rel] = true
			} else {
				files = append(files, rel)
			}
		default:
			first, _, _ := strings.Cut(rel, "/")
			dirSet[first] = true
		}
	}

	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	sort.Strings(files)

	entries := make([]DirEntry, 0, len(dirs)+len(files))
	for _, rel := range dirs {
		entries = append(entries, makeEntry(k, rel, true))
	}
	for _, rel := range files {
		entries = append(entries, makeEntry(k, rel, false))
	}
	return entries, nil
}

// addSegments records rel's directory ancestry; includeSelf marks rel
// itself as a directory (explicit child-directory rows).
func addSegments(dirSet map[string]bool, rel string, includeSelf bool) {
	segs := strings.Split(rel, "/")
	limit := len(segs) - 1
	if includeSelf {
		limit = len(segs)
	}
	for i := 1; i <= limit; i++ {
		dirSet[strings.Join(segs[:i], "/")] = true
	}
}

func makeEntry(dir, rel string, isDir bool) DirEntry {
	name := rel
	parent := dir
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		name = rel[i+1:]
		parent = joinPath(dir, rel[:i])
	}
	return DirEntry{Name: name, Path: rel, Parent: parent, Dir: isDir}
}

func joinPath(dir, rel string) string {
	if dir == "/" {
		return "/" + rel
	}
	return dir + "/" + rel
}
