package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tabledav/tabledav/internal/auth"
	"github.com/tabledav/tabledav/internal/config"
	"github.com/tabledav/tabledav/internal/events"
	"github.com/tabledav/tabledav/internal/vfs"
)

func newTestServer(t *testing.T, browser config.BrowserMode, gateOpts auth.Options) (*httptest.Server, *vfs.Store) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := vfs.New(db, vfs.SQLite, vfs.Options{})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	srv := NewServer(store, auth.New(gateOpts), events.NewFeed(), browser)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, store
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, config.BrowserDisabled, auth.Options{})

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d, want 200", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
}

func TestStatEndpoint(t *testing.T) {
	ts, store := newTestServer(t, config.BrowserDisabled, auth.Options{})
	ctx := context.Background()

	if err := store.WriteFile(ctx, "/doc.txt", []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}

	resp, err := http.Get(ts.URL + "/api/v1/stat?path=/doc.txt")
	if err != nil {
		t.Fatalf("get stat: %v", err)
	}
	defer resp.Body.Close()

	var body statResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Path != "/doc.txt" || body.Dir || body.Size != 3 {
		t.Errorf("stat = %+v", body)
	}
	if body.ETag != vfs.ETagFor([]byte("abc")) {
		t.Errorf("etag = %s", body.ETag)
	}

	resp, _ = http.Get(ts.URL + "/api/v1/stat?path=/nope")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing path = %d, want 404", resp.StatusCode)
	}

	resp, _ = http.Get(ts.URL + "/api/v1/stat")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no path param = %d, want 400", resp.StatusCode)
	}
}

func TestListEndpoint(t *testing.T) {
	ts, store := newTestServer(t, config.BrowserDisabled, auth.Options{})
	ctx := context.Background()

	store.WriteFile(ctx, "/d/a.txt", []byte("a"))
	store.WriteFile(ctx, "/d/sub/b.txt", []byte("b"))

	resp, err := http.Get(ts.URL + "/api/v1/list?path=/d")
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Path    string `json:"path"`
		Entries []struct {
			Name string `json:"name"`
			Dir  bool   `json:"dir"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Path != "/d" || len(body.Entries) != 2 {
		t.Fatalf("list = %+v", body)
	}
	if !body.Entries[0].Dir || body.Entries[0].Name != "sub" {
		t.Errorf("first entry should be the sub directory: %+v", body.Entries[0])
	}
}

func TestDAVMountedAtRoot(t *testing.T) {
	ts, _ := newTestServer(t, config.BrowserDisabled, auth.Options{})

	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/via-dav.txt", strings.NewReader("dav"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("PUT through server = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/via-dav.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET through server = %d, want 200", resp.StatusCode)
	}
}

func TestGateProtectsDAVAndAPI(t *testing.T) {
	ts, _ := newTestServer(t, config.BrowserDisabled, auth.Options{Username: "u", Password: "p"})

	// Unauthenticated DAV request.
	req, _ := http.NewRequest(http.MethodPut, ts.URL+"/f.txt", strings.NewReader("x"))
	resp, _ := http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated PUT = %d, want 401", resp.StatusCode)
	}

	// Unauthenticated API request.
	resp, _ = http.Get(ts.URL + "/api/v1/stat?path=/")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated stat = %d, want 401", resp.StatusCode)
	}

	// Health stays open.
	resp, _ = http.Get(ts.URL + "/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health behind gate = %d, want 200", resp.StatusCode)
	}

	// Authenticated request passes.
	req, _ = http.NewRequest(http.MethodPut, ts.URL+"/f.txt", strings.NewReader("x"))
	req.SetBasicAuth("u", "p")
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("authenticated PUT = %d, want 201", resp.StatusCode)
	}
}

func TestBrowserBypassesGate(t *testing.T) {
	ts, store := newTestServer(t, config.BrowserEnabled, auth.Options{Username: "u", Password: "p"})

	store.WriteFile(context.Background(), "/index.html", []byte("open"))

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("browser get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("browser static serve behind gate = %d, want 200", resp.StatusCode)
	}
}
