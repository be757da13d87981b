package vfs

import (
	"bytes"
	"context"
	"testing"
)

func TestCopyFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := []byte("dolly")
	mustWrite(t, s, "/orig", content)

	if err := s.CopyFile(ctx, "/orig", "/clone"); err != nil {
		t.Fatalf("copy: %v", err)
	}

	got, err := s.ReadFile(ctx, "/clone")
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Error("copy content differs from source")
	}

	src, _ := s.Stat(ctx, "/orig")
	dst, _ := s.Stat(ctx, "/clone")
	if src.ETag != dst.ETag {
		t.Error("copy should keep the source etag")
	}
	if dst.Created.Before(src.Created) {
		t.Error("copy should carry fresh timestamps")
	}
}

func TestCopyFileMissingSource(t *testing.T) {
	s := newTestStore(t)
	wantCode(t, s.CopyFile(context.Background(), "/nope", "/dest"), ENOENT)
}

func TestCopyFileDirectorySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustMkdir(t, s, "/d")
	wantCode(t, s.CopyFile(ctx, "/d/", "/dest"), EINVAL)
}

func TestCopyFileDirectoryDestination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "/src", []byte("x"))
	mustMkdir(t, s, "/dir")
	wantCode(t, s.CopyFile(ctx, "/src", "/dir"), EISDIR)
	wantCode(t, s.CopyFile(ctx, "/src", "/dir/"), EISDIR)
}

func TestCopyFileOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mustWrite(t, s, "/a", []byte("new"))
	mustWrite(t, s, "/b", []byte("old-old-old"))

	if err := s.CopyFile(ctx, "/a", "/b"); err != nil {
		t.Fatalf("copy over existing: %v", err)
	}
	got, _ := s.ReadFile(ctx, "/b")
	if !bytes.Equal(got, []byte("new")) {
		t.Errorf("destination = %q, want %q", got, "new")
	}
	fi, _ := s.Stat(ctx, "/b")
	if fi.Size != 3 {
		t.Errorf("size = %d, want 3", fi.Size)
	}
}
