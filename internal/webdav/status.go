package webdav

import (
	"net/http"
	"strconv"

	"github.com/tabledav/tabledav/internal/vfs"
)

// davStatus maps a filesystem error to the HTTP status the WebDAV
// surface answers with. Copy/move destinations map EEXIST to 412
// through the planner instead; this is the general mapping.
func davStatus(err error) int {
	switch vfs.CodeOf(err) {
	case vfs.ENOENT:
		return http.StatusNotFound
	case vfs.EEXIST:
		return http.StatusBadRequest
	case vfs.ENOTDIR, vfs.EISDIR, vfs.ENOTEMPTY:
		return http.StatusConflict
	case vfs.EINVAL:
		return http.StatusBadRequest
	case vfs.EACCES, vfs.EPERM:
		return http.StatusForbidden
	case vfs.ENOSPC, vfs.EFBIG:
		return http.StatusInsufficientStorage
	case "":
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// statusLine renders "HTTP/1.1 404 Not Found" for multistatus bodies.
func statusLine(code int) string {
	return "HTTP/1.1 " + strconv.Itoa(code) + " " + http.StatusText(code)
}
