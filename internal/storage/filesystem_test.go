package storage

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSaveWritesUnderDatedPrefix(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	store.now = func() time.Time { return time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC) }

	key, url, err := store.Save(context.Background(), "images", "image/png", []byte("png"))
	if err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if !strings.HasPrefix(key, "images/2026/03/04/") || !strings.HasSuffix(key, ".png") {
		t.Fatalf("unexpected key: %s", key)
	}
	if url != "http://localhost:8080/static/"+key {
		t.Fatalf("unexpected url: %s", url)
	}
	data, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("Read returned error: %v", err)
	}
	if string(data) != "png" {
		t.Fatalf("unexpected data: %q", data)
	}
}

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := store.Write(context.Background(), "../../etc/passwd", []byte("x")); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
	key, err := store.Write(context.Background(), "/a/./b.txt", []byte("x"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if key != "a/b.txt" {
		t.Fatalf("unexpected key: %s", key)
	}
	if got := store.URL(key); got != "/a/b.txt" {
		t.Fatalf("unexpected url without base: %s", got)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/png":                ".png",
		"image/jpeg":               ".jpg",
		"video/mp4; codecs=avc1":   ".mp4",
		"application/octet-stream": ".bin",
	}
	for in, want := range cases {
		if got := extensionFor(in); got != want {
			t.Fatalf("extensionFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewFileStoreRequiresPath(t *testing.T) {
	if _, err := NewFileStore("  ", ""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
