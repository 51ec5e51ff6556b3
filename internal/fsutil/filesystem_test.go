package fsutil

import (
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_Exists(t *testing.T) {
	fs := OSFileSystem{}

	if !fs.Exists("filesystem.go") {
		t.Error("expected filesystem.go to exist")
	}

	if fs.Exists("nonexistent_file_xyz.go") {
		t.Error("expected nonexistent file to not exist")
	}
}

func TestOSFileSystem_AtomicWriteAndReadDir(t *testing.T) {
	osfs := OSFileSystem{}
	dir := filepath.Join(t.TempDir(), "a", "b")

	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	// MkdirAll on an existing directory is not an error.
	if err := osfs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("second MkdirAll failed: %v", err)
	}

	path := filepath.Join(dir, "marker.txt")
	if err := WriteFileAtomic(osfs, path, []byte("rti"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(osfs, path, []byte("fft"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic overwrite failed: %v", err)
	}

	data, err := osfs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "fft" {
		t.Errorf("expected %q, got %q", "fft", data)
	}

	names, err := osfs.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 1 || names[0] != "marker.txt" {
		t.Errorf("expected only marker.txt, got %v", names)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	err := mfs.WriteFile("/test.txt", testData, 0644)
	if err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/test.txt")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}
}

func TestMemoryFileSystem_WriteNeedsParent(t *testing.T) {
	mfs := NewMemoryFileSystem()

	err := mfs.WriteFile("/missing/dir/file.txt", []byte("x"), 0644)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}

	if err := mfs.MkdirAll("/missing/dir", 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}
	if err := mfs.WriteFile("/missing/dir/file.txt", []byte("x"), 0644); err != nil {
		t.Fatalf("WriteFile after MkdirAll failed: %v", err)
	}
	if !mfs.Exists("/missing") {
		t.Error("expected parent directory to exist")
	}
}

func TestMemoryFileSystem_Rename(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/d", 0755)
	_ = mfs.WriteFile("/d/a", []byte("1"), 0644)

	if err := mfs.Rename("/d/a", "/d/b"); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if mfs.Exists("/d/a") {
		t.Error("expected old path to be gone")
	}
	if err := mfs.Rename("/d/a", "/d/c"); err == nil {
		t.Error("expected error renaming a missing file")
	}
}

func TestMemoryFileSystem_RemoveAllAndReadDir(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/root/x/y", 0755)
	_ = mfs.WriteFile("/root/x/f1", []byte("1"), 0644)
	_ = mfs.WriteFile("/root/x/y/f2", []byte("2"), 0644)
	_ = mfs.MkdirAll("/root/xz", 0755)
	_ = mfs.WriteFile("/root/xz/keep", []byte("3"), 0644)

	names, err := mfs.ReadDir("/root/x")
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(names) != 2 || names[0] != "f1" || names[1] != "y" {
		t.Errorf("unexpected entries %v", names)
	}

	if err := mfs.RemoveAll("/root/x"); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if mfs.Exists("/root/x/y/f2") || mfs.Exists("/root/x") {
		t.Error("expected /root/x to be removed")
	}
	if !mfs.Exists("/root/xz/keep") {
		t.Error("sibling with shared prefix should survive")
	}
	if _, err := mfs.ReadDir("/root/x"); err == nil {
		t.Error("expected ReadDir on removed dir to fail")
	}
}

func TestMemoryFileSystem_Stat(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.MkdirAll("/s", 0755)
	_ = mfs.WriteFile("/s/f", []byte("abc"), 0600)

	info, err := mfs.Stat("/s/f")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 3 || info.IsDir() || info.Name() != "f" {
		t.Errorf("unexpected file info %+v", info)
	}

	info, err = mfs.Stat("/s")
	if err != nil || !info.IsDir() {
		t.Errorf("expected /s to stat as a directory, err=%v", err)
	}

	if _, err := mfs.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}
