package webdav

import (
	"html"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/tabledav/tabledav/internal/config"
	"github.com/tabledav/tabledav/internal/vfs"
)

// serveBrowser handles GET from interactive browsers: static file
// serving with index.html rewriting and conditional-GET headers, plus
// HTML directory listings in list mode.
func (h *Handler) serveBrowser(w http.ResponseWriter, r *http.Request, reqPath string) {
	ctx := r.Context()

	filePath := reqPath
	switch {
	case filePath == "" || filePath == "/":
		filePath = "/index.html"
	case strings.HasSuffix(filePath, "/"):
		filePath += "index.html"
	}

	fi, err := h.fs.Stat(ctx, filePath)
	if err == nil && fi.IsFile() {
		if notModified(r, fi) {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		hd := w.Header()
		hd.Set("Content-Type", mimeType(filePath))
		hd.Set("Content-Length", strconv.FormatInt(fi.Size, 10))
		hd.Set("ETag", fi.ETag)
		hd.Set("Last-Modified", fi.Modified.UTC().Format(http.TimeFormat))
		h.serveContent(w, r, fi)
		return
	}

	if h.browser != config.BrowserList {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	h.serveListing(w, r, reqPath)
}

func mimeType(p string) string {
	if mt := mime.TypeByExtension(path.Ext(p)); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

// serveListing renders an HTML index of a directory: subdirectories
// first, then files, both lexicographic, names escaped.
func (h *Handler) serveListing(w http.ResponseWriter, r *http.Request, reqPath string) {
	ctx := r.Context()
	dir := vfs.CleanPath(reqPath)

	entries, err := h.fs.ReadDir(ctx, dir, vfs.ReadDirOptions{})
	if err != nil {
		if dir == "/" {
			entries = nil
		} else {
			http.Error(w, "not found", davStatus(err))
			return
		}
	}

	// ReadDir already orders directories first, then files.
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>")
	b.WriteString(html.EscapeString(dir))
	b.WriteString("</title></head><body>\n<h1>")
	b.WriteString(html.EscapeString(dir))
	b.WriteString("</h1>\n<ul>\n")

	if dir != "/" {
		b.WriteString(`<li><a href="`)
		b.WriteString(html.EscapeString(encodeHref(vfs.ParentPath(dir))))
		b.WriteString(`">..</a></li>` + "\n")
	}

	for _, entry := range entries {
		name := entry.Name
		href := encodeHref(childKey(dir, name))
		if entry.Dir {
			name += "/"
			href += "/"
		}
		b.WriteString(`<li><a href="`)
		b.WriteString(html.EscapeString(href))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(name))
		b.WriteString("</a></li>\n")
	}

	b.WriteString("</ul>\n</body></html>\n")

	body := b.String()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write([]byte(body))
}
