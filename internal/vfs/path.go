package vfs

import (
	gopath "path"
	"strings"
)

// MaxPathLen is the longest key the filesystem table accepts.
const MaxPathLen = 4096

// CleanPath canonicalizes a user-supplied path into a table key: POSIX
// separators, leading slash, `//` collapsed, `.` and `..` resolved, no
// trailing slash except for the root itself.
//
// Trailing-slash intent (explicit directory addressing) is lost here;
// callers that care check the raw input with HadTrailingSlash first.
func CleanPath(p string) string {
	if p == "" {
		return "/"
	}
	p = strings.ReplaceAll(p, "\\", "/")
	cleaned := gopath.Clean("/" + p)
	return cleaned
}

// HadTrailingSlash reports whether the raw input addressed a directory
// explicitly (ends with a slash and is not just the root).
func HadTrailingSlash(p string) bool {
	return len(p) > 1 && strings.HasSuffix(p, "/")
}

// DirKey returns the table key of the explicit-directory row for a
// cleaned path: the path plus a trailing slash ("/" stays "/").
func DirKey(cleaned string) string {
	if cleaned == "/" {
		return "/"
	}
	return cleaned + "/"
}

// ParentPath returns the parent directory of a cleaned path ("/" for
// top-level entries and for the root itself).
func ParentPath(cleaned string) string {
	if cleaned == "/" {
		return "/"
	}
	return gopath.Dir(cleaned)
}

// BaseName returns the final path segment of a cleaned path.
func BaseName(cleaned string) string {
	return gopath.Base(cleaned)
}

// EscapeLike escapes `\`, `%` and `_` in s so it can be embedded in a
// LIKE pattern run with ESCAPE '\'. Without this, a file named "/a%b"
// would match siblings like "/axb" in prefix queries.
func EscapeLike(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', '%', '_':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// likePrefix builds the LIKE pattern matching every key strictly under
// dirKey (the dirKey row itself also matches; callers skip it).
func likePrefix(dirKey string) string {
	return EscapeLike(dirKey) + "%"
}
