package vfs

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestOpenReadSmallFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := []byte("short stream")
	mustWrite(t, s, "/s", content)

	rc, err := s.OpenRead(ctx, "/s")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("streamed %q, want %q", got, content)
	}
}

func TestOpenReadChunked(t *testing.T) {
	s := newTestStore(t)
	s.readChunk = 16 // tiny chunks force many round trips
	ctx := context.Background()

	content := make([]byte, 1000)
	for i := range content {
		content[i] = byte(i % 251)
	}
	mustWrite(t, s, "/big", content)

	rc, err := s.OpenRead(ctx, "/big")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("chunked stream corrupted content (%d bytes vs %d)", len(got), len(content))
	}
}

func TestOpenReadEmptyFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "/zero", nil)

	rc, err := s.OpenRead(ctx, "/zero")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty stream, got %d bytes", len(got))
	}
}

func TestOpenReadMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.OpenRead(context.Background(), "/absent")
	wantCode(t, err, ENOENT)
}

func TestOpenReadDirectory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustMkdir(t, s, "/d")
	_, err := s.OpenRead(ctx, "/d")
	wantCode(t, err, EISDIR)
}

func TestOpenReadNotRestartable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "/once", []byte("abc"))

	rc, err := s.OpenRead(ctx, "/once")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := io.ReadAll(rc); err != nil {
		t.Fatalf("first read: %v", err)
	}

	// The sequence is finite and does not rewind.
	buf := make([]byte, 8)
	if n, err := rc.Read(buf); n != 0 || err != io.EOF {
		t.Errorf("expected EOF after exhaustion, got n=%d err=%v", n, err)
	}
}

func TestETagFor(t *testing.T) {
	// sha-256("hi") — the protocol round-trip tests rely on this too.
	const want = `"8f434346648f6b96df89dda901c5176b10a6d83961dd3c1ac88b59b2dc327aa4"`
	if got := ETagFor([]byte("hi")); got != want {
		t.Errorf("ETagFor(hi) = %s, want %s", got, want)
	}
	if got := ETagFor(nil); len(got) != 66 {
		t.Errorf("empty-content etag should still be a quoted sha-256, got %s", got)
	}
}
