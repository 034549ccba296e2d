package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStoragePutCopies(t *testing.T) {
	src := filepath.Join(t.TempDir(), "render.mp4")
	if err := os.WriteFile(src, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	s := NewLocalStorage(dir, "/videos")

	url, err := s.Put(context.Background(), src, "production-1.mp4")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "/videos/production-1.mp4" {
		t.Errorf("Put() url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "production-1.mp4"))
	if err != nil || string(data) != "video" {
		t.Errorf("artifact not copied: %q, %v", data, err)
	}
}

func TestLocalStoragePutInPlace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "production-2.mp4")
	if err := os.WriteFile(src, []byte("video"), 0644); err != nil {
		t.Fatal(err)
	}

	s := NewLocalStorage(dir, "")
	url, err := s.Put(context.Background(), src, "production-2.mp4")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != src {
		t.Errorf("Put() url = %q, want %q", url, src)
	}
}

func TestLocalStoragePutMissingSource(t *testing.T) {
	s := NewLocalStorage(t.TempDir(), "/videos")
	if _, err := s.Put(context.Background(), "/nonexistent/render.mp4", "x.mp4"); err == nil {
		t.Error("expected error for missing source")
	}
}

func TestLocalStorageList(t *testing.T) {
	tests := []struct {
		name      string
		files     []string
		wantCount int
	}{
		{name: "empty", files: nil, wantCount: 0},
		{name: "videosOnly", files: []string{"a.mp4", "b.mov", "notes.txt"}, wantCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, f), []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
			}
			got, err := NewLocalStorage(dir, "/videos").List(context.Background())
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("List() = %d artifacts, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestLocalStorageListMissingDir(t *testing.T) {
	got, err := NewLocalStorage("/nonexistent/dir", "").List(context.Background())
	if err != nil || len(got) != 0 {
		t.Errorf("List() = %v, %v", got, err)
	}
}
