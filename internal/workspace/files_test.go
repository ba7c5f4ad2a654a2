package workspace_test

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"jusdown/internal/workspace"
)

func TestListFiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"b.jpg", "a.jpg", "sub/c.png", "video.mp4.part", "x.ytdl"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatal(err)
		}

		if err := os.WriteFile(path, []byte(name), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := workspace.ListFiles(dir)
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}

	want := []string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.jpg"),
		filepath.Join(dir, "sub", "c.png"),
	}

	if !slices.Equal(got, want) {
		t.Errorf("ListFiles() = %v, want %v", got, want)
	}
}

func TestListFilesEmpty(t *testing.T) {
	got, err := workspace.ListFiles(t.TempDir())
	if err != nil {
		t.Fatalf("ListFiles() failed: %v", err)
	}

	if len(got) != 0 {
		t.Errorf("ListFiles() = %v, want none", got)
	}
}

func TestListFilesMissingDir(t *testing.T) {
	if _, err := workspace.ListFiles(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("ListFiles() of missing dir succeeded unexpectedly")
	}
}
