package webdav

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tabledav/tabledav/internal/config"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64)"

func TestBrowserServesIndexHTML(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserEnabled})

	doRequest(t, h, http.MethodPut, "/index.html", []byte("<h1>home</h1>"), nil)

	w := doRequest(t, h, http.MethodGet, "/", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusOK {
		t.Fatalf("browser GET / = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "<h1>home</h1>" {
		t.Errorf("body = %q", got)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestBrowserDirectoryIndexRewrite(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserEnabled})

	doRequest(t, h, http.MethodPut, "/docs/index.html", []byte("docs"), nil)

	w := doRequest(t, h, http.MethodGet, "/docs/", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusOK || w.Body.String() != "docs" {
		t.Errorf("GET /docs/ = %d %q, want 200 docs", w.Code, w.Body.String())
	}
}

func TestBrowserEnabledNoListing(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserEnabled})

	doRequest(t, h, http.MethodPut, "/dir/file.txt", []byte("f"), nil)

	w := doRequest(t, h, http.MethodGet, "/dir/", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusNotFound {
		t.Errorf("enabled mode without index = %d, want 404", w.Code)
	}
}

func TestBrowserListMode(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserList})

	doRequest(t, h, http.MethodPut, "/pub/zz.txt", []byte("z"), nil)
	doRequest(t, h, http.MethodPut, "/pub/aa.txt", []byte("a"), nil)
	doRequest(t, h, http.MethodPut, "/pub/sub/in.txt", []byte("i"), nil)

	w := doRequest(t, h, http.MethodGet, "/pub", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusOK {
		t.Fatalf("list mode GET = %d, want 200", w.Code)
	}
	body := w.Body.String()

	// Subdirectories first, then files.
	subIdx := strings.Index(body, "sub/")
	aaIdx := strings.Index(body, "aa.txt")
	zzIdx := strings.Index(body, "zz.txt")
	if subIdx < 0 || aaIdx < 0 || zzIdx < 0 {
		t.Fatalf("listing missing entries:\n%s", body)
	}
	if !(subIdx < aaIdx && aaIdx < zzIdx) {
		t.Errorf("listing order wrong (dirs first, lexicographic):\n%s", body)
	}

	// Parent link rendered for non-root.
	if !strings.Contains(body, ">..</a>") {
		t.Error("listing should include a parent link")
	}
}

func TestBrowserListEscapesNames(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserList})

	doRequest(t, h, http.MethodPut, "/esc/<script>.txt", []byte("x"), nil)

	w := doRequest(t, h, http.MethodGet, "/esc", nil, map[string]string{"User-Agent": browserUA})
	body := w.Body.String()
	if strings.Contains(body, "<script>") {
		t.Error("names must be HTML-escaped")
	}
	if !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("escaped name missing:\n%s", body)
	}
}

func TestBrowserConditionalGet(t *testing.T) {
	h, _ := newTestHandler(t, Options{Browser: config.BrowserEnabled})

	doRequest(t, h, http.MethodPut, "/page.html", []byte("p"), nil)

	w := doRequest(t, h, http.MethodGet, "/page.html", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d, want 200", w.Code)
	}
	etag := w.Header().Get("ETag")
	lastMod := w.Header().Get("Last-Modified")
	if etag == "" || lastMod == "" {
		t.Fatal("browser file serve should set ETag and Last-Modified")
	}

	w = doRequest(t, h, http.MethodGet, "/page.html", nil, map[string]string{
		"User-Agent":    browserUA,
		"If-None-Match": etag,
	})
	if w.Code != http.StatusNotModified {
		t.Errorf("If-None-Match = %d, want 304", w.Code)
	}

	w = doRequest(t, h, http.MethodGet, "/page.html", nil, map[string]string{
		"User-Agent":        browserUA,
		"If-Modified-Since": lastMod,
	})
	if w.Code != http.StatusNotModified {
		t.Errorf("If-Modified-Since = %d, want 304", w.Code)
	}
}

func TestBrowserDisabledFallsThrough(t *testing.T) {
	h, _ := newTestHandler(t, Options{})

	doRequest(t, h, http.MethodPut, "/f.txt", []byte("f"), nil)

	w := doRequest(t, h, http.MethodGet, "/f.txt", nil, map[string]string{"User-Agent": browserUA})
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d, want 200", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Error("disabled browser mode should serve attachments to browsers too")
	}
}
