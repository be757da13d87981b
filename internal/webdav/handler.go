// Package webdav implements a Class 1 WebDAV handler over the virtual
// filesystem: PROPFIND, MKCOL, PUT, GET, DELETE, MOVE, COPY, OPTIONS,
// with RFC 4918 Depth/Overwrite/Destination semantics and 207
// Multi-Status partial-failure bodies. LOCK/UNLOCK are out of scope.
package webdav

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tabledav/tabledav/internal/config"
	"github.com/tabledav/tabledav/internal/events"
	"github.com/tabledav/tabledav/internal/logging"
	"github.com/tabledav/tabledav/internal/metrics"
	"github.com/tabledav/tabledav/internal/vfs"
)

// allowedMethods is what OPTIONS advertises and what 405 responses
// carry in their Allow header.
const allowedMethods = "PROPFIND, MOVE, DELETE, GET, PUT, MKCOL"

// StreamThreshold is the body size above which GET responses switch
// from a materialized read to the chunked read stream.
const StreamThreshold = 1024 * 1024

// MaxUploadSize caps PUT bodies.
const MaxUploadSize = 1 << 30

// Handler dispatches WebDAV methods onto a vfs.FS.
type Handler struct {
	fs      vfs.FS
	browser config.BrowserMode
	feed    *events.Feed
}

// Options configures a Handler.
type Options struct {
	// Browser selects the browser-facing GET behavior.
	Browser config.BrowserMode

	// Feed, when set, receives a change for every successful mutation.
	Feed *events.Feed
}

// NewHandler creates a WebDAV handler over fs.
func NewHandler(fs vfs.FS, opts Options) *Handler {
	browser := opts.Browser
	if browser == "" {
		browser = config.BrowserDisabled
	}
	return &Handler{fs: fs, browser: browser, feed: opts.Feed}
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() { metrics.RecordDAVOperation(r.Method, rec.status) }()

	// net/http has already percent-decoded the request path; only the
	// Destination header still needs decoding (see parseCopyMove).
	reqPath := r.URL.Path

	switch r.Method {
	case http.MethodOptions:
		h.handleOptions(rec)
	case "PROPFIND":
		h.handlePropfind(rec, r, reqPath)
	case http.MethodGet:
		h.handleGet(rec, r, reqPath)
	case http.MethodPut:
		h.handlePut(rec, r, reqPath)
	case http.MethodDelete:
		h.handleDelete(rec, r, reqPath)
	case "MKCOL":
		h.handleMkcol(rec, r, reqPath)
	case "MOVE":
		h.handleCopyMove(rec, r, reqPath, true)
	case "COPY":
		h.handleCopyMove(rec, r, reqPath, false)
	case "PROPPATCH":
		http.Error(rec, "PROPPATCH not implemented", http.StatusNotImplemented)
	default:
		rec.Header().Set("Allow", allowedMethods)
		http.Error(rec, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// IsBrowserRequest reports whether the request comes from an
// interactive browser (the class of clients the optional index serves).
func IsBrowserRequest(r *http.Request) bool {
	return strings.HasPrefix(r.UserAgent(), "Mozilla/")
}

func (h *Handler) handleOptions(w http.ResponseWriter) {
	hd := w.Header()
	hd.Set("Allow", allowedMethods)
	hd.Set("DAV", "1")
	hd.Set("Access-Control-Allow-Origin", "*")
	hd.Set("Access-Control-Allow-Methods", allowedMethods+", OPTIONS")
	hd.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Depth, Destination, Overwrite")
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, reqPath string) {
	if h.browser != config.BrowserDisabled && IsBrowserRequest(r) {
		h.serveBrowser(w, r, reqPath)
		return
	}

	ctx := r.Context()
	fi, err := h.fs.Stat(ctx, reqPath)
	if err != nil || fi.Dir {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if notModified(r, fi) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	hd := w.Header()
	hd.Set("Content-Type", "application/octet-stream")
	hd.Set("Content-Disposition", `attachment; filename="`+vfs.BaseName(fi.Path)+`"`)
	hd.Set("Content-Length", strconv.FormatInt(fi.Size, 10))
	hd.Set("ETag", fi.ETag)
	hd.Set("Last-Modified", fi.Modified.UTC().Format(http.TimeFormat))

	h.serveContent(w, r, fi)
}

// serveContent writes a file body, materialized below the streaming
// threshold and chunk-streamed above it.
func (h *Handler) serveContent(w http.ResponseWriter, r *http.Request, fi *vfs.FileInfo) {
	ctx := r.Context()

	if fi.Size <= StreamThreshold {
		data, err := h.fs.ReadFile(ctx, fi.Path)
		if err != nil {
			http.Error(w, err.Error(), davStatus(err))
			return
		}
		w.Write(data)
		return
	}

	rc, err := h.fs.OpenRead(ctx, fi.Path)
	if err != nil {
		http.Error(w, err.Error(), davStatus(err))
		return
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all we can do is log.
		logging.Warn("streamed read aborted",
			zap.String("path", fi.Path), zap.Error(err))
	}
}

// notModified evaluates If-None-Match and If-Modified-Since against the
// file's ETag and modification time.
func notModified(r *http.Request, fi *vfs.FileInfo) bool {
	if fi.Dir {
		return false
	}
	if match := r.Header.Get("If-None-Match"); match != "" {
		return match == fi.ETag
	}
	if since := r.Header.Get("If-Modified-Since"); since != "" {
		if t, err := http.ParseTime(since); err == nil {
			return !fi.Modified.Truncate(time.Second).After(t)
		}
	}
	return false
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, reqPath string) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxUploadSize+1))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(body) > MaxUploadSize {
		http.Error(w, "body too large", http.StatusInsufficientStorage)
		return
	}

	if err := h.fs.WriteFile(r.Context(), reqPath, body); err != nil {
		http.Error(w, err.Error(), davStatus(err))
		return
	}

	h.publish(events.Change{
		Op:   events.OpModify,
		Path: vfs.CleanPath(reqPath),
		Size: int64(len(body)),
		ETag: vfs.ETagFor(body),
	})
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request, reqPath string) {
	err := h.fs.Remove(r.Context(), reqPath, vfs.RemoveOptions{Recursive: true, Force: true})
	if err != nil {
		http.Error(w, err.Error(), davStatus(err))
		return
	}

	h.publish(events.Change{Op: events.OpDelete, Path: vfs.CleanPath(reqPath)})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMkcol(w http.ResponseWriter, r *http.Request, reqPath string) {
	if _, err := h.fs.Mkdir(r.Context(), reqPath, vfs.MkdirOptions{Recursive: true}); err != nil {
		http.Error(w, err.Error(), davStatus(err))
		return
	}

	h.publish(events.Change{Op: events.OpCreate, Path: vfs.CleanPath(reqPath)})
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) publish(c events.Change) {
	if h.feed == nil {
		return
	}
	h.feed.Publish(c)
}
