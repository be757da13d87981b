package webdav

import (
	"net/http"
	"strings"
	"testing"
)

func TestPropfindEmptyRoot(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	// No rows at all: the root must still answer 207.
	w := doRequest(t, h, "PROPFIND", "/", nil, nil)
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND empty root = %d, want 207", w.Code)
	}

	body := w.Body.String()
	if !strings.HasPrefix(body, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>`) {
		t.Errorf("missing XML declaration:\n%s", body)
	}
	if !strings.Contains(body, `<d:multistatus xmlns:d="DAV:">`) {
		t.Errorf("missing multistatus element:\n%s", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Errorf("Content-Type = %q, want application/xml", ct)
	}
}

func TestPropfindDepthZero(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	doRequest(t, h, http.MethodPut, "/top/child.txt", []byte("c"), nil)

	w := doRequest(t, h, "PROPFIND", "/top", nil, map[string]string{"Depth": "0"})
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND depth 0 = %d, want 207", w.Code)
	}
	if strings.Contains(w.Body.String(), "child.txt") {
		t.Error("Depth: 0 must not list children")
	}
}

func TestPropfindFileTarget(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	doRequest(t, h, http.MethodPut, "/solo.txt", []byte("abcd"), nil)

	w := doRequest(t, h, "PROPFIND", "/solo.txt", nil, nil)
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("PROPFIND file = %d, want 207", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<d:getcontentlength>4</d:getcontentlength>") {
		t.Errorf("file length missing:\n%s", body)
	}
	if strings.Contains(body, "<d:collection/>") {
		t.Error("file must not be a collection")
	}
	if !strings.Contains(body, "<d:getcontenttype>application/octet-stream</d:getcontenttype>") {
		t.Errorf("file content type missing:\n%s", body)
	}
	if !strings.Contains(body, "<d:status>HTTP/1.1 200 OK</d:status>") {
		t.Errorf("propstat status missing:\n%s", body)
	}
}

func TestPropfindDirectoryProperties(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	doRequest(t, h, http.MethodPut, "/d/f.txt", []byte("f"), nil)

	w := doRequest(t, h, "PROPFIND", "/d", nil, nil)
	body := w.Body.String()
	if !strings.Contains(body, "<d:resourcetype><d:collection/></d:resourcetype>") {
		t.Errorf("directory resourcetype missing:\n%s", body)
	}
	if !strings.Contains(body, "<d:getcontenttype>httpd/unix-directory</d:getcontenttype>") {
		t.Errorf("directory content type missing:\n%s", body)
	}
	if !strings.Contains(body, "<d:displayname>d</d:displayname>") {
		t.Errorf("displayname missing:\n%s", body)
	}
	// HTTP-date format ends with GMT.
	if !strings.Contains(body, "GMT</d:getlastmodified>") {
		t.Errorf("getlastmodified should be an HTTP-date:\n%s", body)
	}
}

func TestPropfindMissing(t *testing.T) {
	h, _ := newTestHandler(t, Options{})
	w := doRequest(t, h, "PROPFIND", "/ghost", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("PROPFIND missing = %d, want 404", w.Code)
	}
}

func TestPropfindIgnoresBody(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	doRequest(t, h, http.MethodPut, "/p.txt", []byte("p"), nil)

	propfindBody := []byte(`<?xml version="1.0"?><d:propfind xmlns:d="DAV:"><d:prop><d:getetag/></d:prop></d:propfind>`)
	w := doRequest(t, h, "PROPFIND", "/p.txt", propfindBody, nil)
	if w.Code != http.StatusMultiStatus {
		t.Errorf("PROPFIND with body = %d, want 207", w.Code)
	}
	// The full property set is returned regardless of the request.
	if !strings.Contains(w.Body.String(), "<d:displayname>") {
		t.Error("full property set expected")
	}
}
