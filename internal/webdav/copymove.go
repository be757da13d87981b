package webdav

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/tabledav/tabledav/internal/events"
	"github.com/tabledav/tabledav/internal/vfs"
)

// depthInfinity is the recursion depth for "Depth: infinity".
const depthInfinity = -1

// resourceError is one per-resource failure collected during a
// recursive copy; a non-empty list turns the response into a 207.
type resourceError struct {
	href        string
	status      int
	description string
}

// copyMoveRequest is a parsed and precondition-checked COPY or MOVE.
type copyMoveRequest struct {
	src        string
	dest       string
	depth      int // 0 or depthInfinity
	overwrite  bool
	destExists bool
	srcInfo    *vfs.FileInfo
}

// handleCopyMove parses headers, checks preconditions and runs the
// copy plan (plus source removal for MOVE).
func (h *Handler) handleCopyMove(w http.ResponseWriter, r *http.Request, reqPath string, move bool) {
	ctx := r.Context()

	req, status, msg := h.parseCopyMove(ctx, r, reqPath, move)
	if status != 0 {
		http.Error(w, msg, status)
		return
	}

	// An existing destination is replaced wholesale under Overwrite: T.
	if req.destExists {
		if err := h.fs.Remove(ctx, req.dest, vfs.RemoveOptions{Recursive: true, Force: true}); err != nil {
			http.Error(w, err.Error(), davStatus(err))
			return
		}
	}

	var errs []resourceError
	if req.srcInfo.Dir {
		errs = h.copyDirectory(ctx, req.src, req.dest, req.depth)
	} else {
		if err := h.fs.CopyFile(ctx, req.src, req.dest); err != nil {
			http.Error(w, err.Error(), copyStatus(err))
			return
		}
	}

	if move && len(errs) == 0 {
		if err := h.fs.Remove(ctx, req.src, vfs.RemoveOptions{Recursive: true, Force: true}); err != nil {
			http.Error(w, err.Error(), davStatus(err))
			return
		}
	}

	if len(errs) > 0 {
		writeXML(w, http.StatusMultiStatus, multistatusErrors(errs))
		return
	}

	op := events.OpCopy
	if move {
		op = events.OpMove
	}
	h.publish(events.Change{
		Op:   op,
		Path: req.src,
		Dest: req.dest,
		Size: req.srcInfo.Size,
		ETag: req.srcInfo.ETag,
	})

	if req.destExists {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Location", encodeHref(req.dest))
	w.WriteHeader(http.StatusCreated)
}

// parseCopyMove returns either a validated request or a non-zero
// top-level failure status with its message.
func (h *Handler) parseCopyMove(ctx context.Context, r *http.Request, reqPath string, move bool) (*copyMoveRequest, int, string) {
	destHeader := r.Header.Get("Destination")
	if destHeader == "" {
		return nil, http.StatusBadRequest, "missing Destination header"
	}
	// Tolerant decoding: a Destination that does not parse as a URI is
	// taken verbatim as a path.
	var dest string
	if destURL, err := url.Parse(destHeader); err == nil {
		if destURL.Host != "" && destURL.Host != r.Host {
			return nil, http.StatusBadGateway, "Destination is on another server"
		}
		dest = destURL.Path
	} else {
		dest = destHeader
	}
	dest = vfs.CleanPath(dest)

	overwrite := true
	switch r.Header.Get("Overwrite") {
	case "", "T":
	case "F":
		overwrite = false
	default:
		return nil, http.StatusBadRequest, "invalid Overwrite header"
	}

	depth := depthInfinity
	switch r.Header.Get("Depth") {
	case "", "infinity":
	case "0":
		depth = 0
	default:
		return nil, http.StatusBadRequest, "invalid Depth header"
	}

	src := vfs.CleanPath(reqPath)

	srcInfo, err := h.fs.Stat(ctx, src)
	if err != nil {
		return nil, davStatus(err), "source not found"
	}

	if move && src == "/" {
		return nil, http.StatusForbidden, "cannot move the root collection"
	}
	if move && srcInfo.Dir && depth == 0 {
		return nil, http.StatusBadRequest, "MOVE of a collection requires Depth: infinity"
	}
	if dest == src {
		return nil, http.StatusForbidden, "source and destination are the same resource"
	}
	if srcInfo.Dir && (src == "/" || strings.HasPrefix(dest, src+"/")) {
		return nil, http.StatusForbidden, "destination is inside the source collection"
	}
	if dest == "/" {
		return nil, http.StatusForbidden, "destination cannot be the root collection"
	}

	parent := vfs.ParentPath(dest)
	if parent != "/" {
		parentInfo, err := h.fs.Stat(ctx, parent)
		if err != nil || !parentInfo.Dir {
			return nil, http.StatusConflict, "destination parent does not exist"
		}
	}

	destExists := h.fs.Access(ctx, dest) == nil
	if destExists && !overwrite {
		return nil, http.StatusPreconditionFailed, "destination exists and Overwrite is F"
	}

	return &copyMoveRequest{
		src:        src,
		dest:       dest,
		depth:      depth,
		overwrite:  overwrite,
		destExists: destExists,
		srcInfo:    srcInfo,
	}, 0, ""
}

// copyDirectory copies a collection. Failures on individual resources
// are collected rather than aborting the traversal.
func (h *Handler) copyDirectory(ctx context.Context, src, dest string, depth int) []resourceError {
	var errs []resourceError

	if _, err := h.fs.Mkdir(ctx, dest, vfs.MkdirOptions{}); err != nil {
		if vfs.CodeOf(err) != vfs.EEXIST {
			errs = append(errs, resourceError{
				href:        encodeHref(dest) + "/",
				status:      davStatus(err),
				description: err.Error(),
			})
			return errs
		}
		// A directory that already exists still receives children.
	}

	if depth == 0 {
		return errs
	}

	entries, err := h.fs.ReadDir(ctx, src, vfs.ReadDirOptions{})
	if err != nil {
		errs = append(errs, resourceError{
			href:        encodeHref(src) + "/",
			status:      davStatus(err),
			description: err.Error(),
		})
		return errs
	}

	for _, entry := range entries {
		childSrc := childKey(src, entry.Name)
		childDest := childKey(dest, entry.Name)
		if entry.Dir {
			errs = append(errs, h.copyDirectory(ctx, childSrc, childDest, depth)...)
			continue
		}
		if err := h.fs.CopyFile(ctx, childSrc, childDest); err != nil {
			errs = append(errs, resourceError{
				href:        encodeHref(childDest),
				status:      copyStatus(err),
				description: err.Error(),
			})
		}
	}
	return errs
}

// copyStatus maps filesystem errors for copy destinations: an existing
// destination is a failed precondition, not a bad request.
func copyStatus(err error) int {
	if vfs.CodeOf(err) == vfs.EEXIST {
		return http.StatusPreconditionFailed
	}
	return davStatus(err)
}

// multistatusErrors renders the 207 body for partial copy failures.
func multistatusErrors(errs []resourceError) string {
	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<d:multistatus xmlns:d="DAV:">`)
	for _, re := range errs {
		b.WriteString(`<d:response>`)
		b.WriteString(`<d:href>`)
		b.WriteString(xmlEscape(re.href))
		b.WriteString(`</d:href>`)
		b.WriteString(`<d:status>`)
		b.WriteString(statusLine(re.status))
		b.WriteString(`</d:status>`)
		b.WriteString(`<d:responsedescription>`)
		b.WriteString(xmlEscape(re.description))
		b.WriteString(`</d:responsedescription>`)
		b.WriteString(`</d:response>`)
	}
	b.WriteString(`</d:multistatus>`)
	return b.String()
}
