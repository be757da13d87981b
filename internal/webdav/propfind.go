package webdav

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tabledav/tabledav/internal/vfs"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="no"?>` + "\n"

// handlePropfind answers PROPFIND with a 207 multistatus listing the
// target and, unless Depth is 0, its immediate children. The request
// body (requested-property filtering) is intentionally ignored; every
// response carries the full property set.
func (h *Handler) handlePropfind(w http.ResponseWriter, r *http.Request, reqPath string) {
	ctx := r.Context()

	fi, err := h.fs.Stat(ctx, reqPath)
	if err != nil {
		if vfs.CodeOf(err) == vfs.ENOENT && vfs.CleanPath(reqPath) == "/" {
			// The root is always browsable, even over an empty table.
			fi = &vfs.FileInfo{Path: "/", Dir: true}
		} else {
			http.Error(w, err.Error(), davStatus(err))
			return
		}
	}

	var b strings.Builder
	b.WriteString(xmlHeader)
	b.WriteString(`<d:multistatus xmlns:d="DAV:">`)
	writeResponse(&b, fi.Path, fi)

	if fi.Dir && r.Header.Get("Depth") != "0" {
		entries, err := h.fs.ReadDir(ctx, fi.Path, vfs.ReadDirOptions{})
		if err != nil && vfs.CodeOf(err) != vfs.ENOENT {
			http.Error(w, err.Error(), davStatus(err))
			return
		}
		for _, entry := range entries {
			childPath := childKey(fi.Path, entry.Name)
			childInfo, err := h.fs.Stat(ctx, childPath)
			if err != nil {
				// Concurrent mutation between readdir and stat;
				// best effort, skip the vanished child.
				continue
			}
			writeResponse(&b, childPath, childInfo)
		}
	}

	b.WriteString(`</d:multistatus>`)
	writeXML(w, http.StatusMultiStatus, b.String())
}

func childKey(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

// writeResponse emits one <d:response> with the full property set.
func writeResponse(b *strings.Builder, path string, fi *vfs.FileInfo) {
	href := encodeHref(path)
	if fi.Dir && href != "/" {
		href += "/"
	}

	b.WriteString(`<d:response>`)
	b.WriteString(`<d:href>`)
	b.WriteString(xmlEscape(href))
	b.WriteString(`</d:href>`)
	b.WriteString(`<d:propstat><d:prop>`)

	b.WriteString(`<d:displayname>`)
	b.WriteString(xmlEscape(displayName(path)))
	b.WriteString(`</d:displayname>`)

	b.WriteString(`<d:getcontentlength>`)
	b.WriteString(strconv.FormatInt(fi.Size, 10))
	b.WriteString(`</d:getcontentlength>`)

	b.WriteString(`<d:getlastmodified>`)
	b.WriteString(fi.Modified.UTC().Format(http.TimeFormat))
	b.WriteString(`</d:getlastmodified>`)

	if fi.Dir {
		b.WriteString(`<d:resourcetype><d:collection/></d:resourcetype>`)
		b.WriteString(`<d:getcontenttype>httpd/unix-directory</d:getcontenttype>`)
	} else {
		b.WriteString(`<d:resourcetype></d:resourcetype>`)
		b.WriteString(`<d:getcontenttype>application/octet-stream</d:getcontenttype>`)
	}

	b.WriteString(`</d:prop>`)
	b.WriteString(`<d:status>HTTP/1.1 200 OK</d:status>`)
	b.WriteString(`</d:propstat>`)
	b.WriteString(`</d:response>`)
}

func displayName(path string) string {
	if path == "/" {
		return "/"
	}
	return vfs.BaseName(path)
}

// encodeHref percent-encodes each path segment, preserving separators.
func encodeHref(path string) string {
	if path == "/" {
		return "/"
	}
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segs, "/")
}

// xmlEscape escapes XML text content.
func xmlEscape(s string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return r.Replace(s)
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", `application/xml; charset="utf-8"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	w.Write([]byte(body))
}
