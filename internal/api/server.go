// Package api assembles the HTTP surface: the WebDAV handler at the
// root, a read-only JSON management API, the SSE change feed, and the
// health endpoint.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/tabledav/tabledav/internal/auth"
	"github.com/tabledav/tabledav/internal/config"
	"github.com/tabledav/tabledav/internal/events"
	"github.com/tabledav/tabledav/internal/metrics"
	"github.com/tabledav/tabledav/internal/vfs"
	"github.com/tabledav/tabledav/internal/webdav"
)

// Server is the HTTP server.
type Server struct {
	store   *vfs.Store
	dav     *webdav.Handler
	gate    *auth.Gate
	feed    *events.Feed
	browser config.BrowserMode
}

// NewServer creates a new server.
func NewServer(store *vfs.Store, gate *auth.Gate, feed *events.Feed, browser config.BrowserMode) *Server {
	dav := webdav.NewHandler(store, webdav.Options{
		Browser: browser,
		Feed:    feed,
	})
	return &Server{
		store:   store,
		dav:     dav,
		gate:    gate,
		feed:    feed,
		browser: browser,
	}
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /api/v1/stat", s.gated(http.HandlerFunc(s.handleStat)))
	mux.Handle("GET /api/v1/list", s.gated(http.HandlerFunc(s.handleList)))
	mux.Handle("GET /api/v1/events", s.gated(http.HandlerFunc(s.handleEvents)))

	// Everything else is WebDAV namespace. Browser static serving
	// bypasses the gate by design; DAV clients do not.
	mux.Handle("/", s.gate.Middleware(s.dav, s.browserBypass))

	return withMetrics(mux)
}

// browserBypass lets interactive browsers reach the static-serve branch
// without credentials when the browser feature is on.
func (s *Server) browserBypass(r *http.Request) bool {
	return s.browser != config.BrowserDisabled &&
		r.Method == http.MethodGet &&
		webdav.IsBrowserRequest(r)
}

// gated applies the auth gate with no bypass.
func (s *Server) gated(next http.Handler) http.Handler {
	return s.gate.Middleware(next, nil)
}

// withMetrics records request counts and latency.
func withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.RecordHTTPRequest(r.Method, rec.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.RowCount(r.Context())
	if err != nil {
		s.sendError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	metrics.SetFilesystemRows(count)
	s.sendJSON(w, map[string]any{"status": "ok", "rows": count})
}

// statResponse is the JSON rendering of a FileInfo.
type statResponse struct {
	Path     string `json:"path"`
	Dir      bool   `json:"dir"`
	Size     int64  `json:"size"`
	Created  int64  `json:"created_at"`
	Modified int64  `json:"modified_at"`
	ETag     string `json:"etag,omitempty"`
}

func statJSON(fi *vfs.FileInfo) statResponse {
	return statResponse{
		Path:     fi.Path,
		Dir:      fi.Dir,
		Size:     fi.Size,
		Created:  fi.Created.UnixMilli(),
		Modified: fi.Modified.UnixMilli(),
		ETag:     fi.ETag,
	}
}

func (s *Server) handleStat(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		s.sendError(w, http.StatusBadRequest, "missing path parameter")
		return
	}

	fi, err := s.store.Stat(r.Context(), p)
	if err != nil {
		s.sendError(w, apiStatus(err), err.Error())
		return
	}
	s.sendJSON(w, statJSON(fi))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	p := r.URL.Query().Get("path")
	if p == "" {
		p = "/"
	}
	recursive := r.URL.Query().Get("recursive") == "true"

	entries, err := s.store.ReadDir(r.Context(), p, vfs.ReadDirOptions{Recursive: recursive})
	if err != nil {
		s.sendError(w, apiStatus(err), err.Error())
		return
	}

	type entryResponse struct {
		Name   string `json:"name"`
		Path   string `json:"path"`
		Parent string `json:"parent"`
		Dir    bool   `json:"dir"`
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{Name: e.Name, Path: e.Path, Parent: e.Parent, Dir: e.Dir})
	}
	s.sendJSON(w, map[string]any{"path": vfs.CleanPath(p), "entries": out})
}

// handleEvents streams filesystem changes over SSE. An optional
// ?path= query scopes the stream to a subtree; the default watches
// the whole namespace. Each SSE message carries the feed sequence
// number as its id so clients can detect missed changes.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	root := vfs.CleanPath(r.URL.Query().Get("path"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub := s.feed.Watch(root)
	defer s.feed.Cancel(sub)

	for {
		select {
		case <-r.Context().Done():
			return
		case change, open := <-sub.C:
			if !open {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", change.Seq, change.Op, data)
			flusher.Flush()
		}
	}
}

// apiStatus maps filesystem errors for the JSON surface; unlike the DAV
// mapping, EEXIST is a plain bad request here.
func apiStatus(err error) int {
	switch vfs.CodeOf(err) {
	case vfs.ENOENT:
		return http.StatusNotFound
	case vfs.EEXIST, vfs.EINVAL:
		return http.StatusBadRequest
	case vfs.ENOTDIR, vfs.EISDIR, vfs.ENOTEMPTY:
		return http.StatusConflict
	case vfs.EACCES, vfs.EPERM:
		return http.StatusForbidden
	case vfs.ENOSPC, vfs.EFBIG:
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
