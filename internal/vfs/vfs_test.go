package vfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOSFS_Create(t *testing.T) {
	fs := Default()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	n, err := f.Write([]byte("hello"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Write returned %d, want 5", n)
	}
	if err := f.Sync(); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("Content = %q, want 'hello'", data)
	}
}

func TestOSFS_OpenAppend(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "append.log")

	for _, chunk := range []string{"first,", "second"} {
		f, err := fs.OpenAppend(path)
		if err != nil {
			t.Fatalf("OpenAppend failed: %v", err)
		}
		if _, err := f.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := f.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "first,second" {
		t.Errorf("Content = %q, want 'first,second'", data)
	}
}

func TestOSFS_Open(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("Read = %q, want 'hello world'", data)
	}

	if _, err := fs.Open(filepath.Join(t.TempDir(), "missing")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Open(missing) error = %v, want ErrNotExist", err)
	}
}

func TestOSFS_RenameRemove(t *testing.T) {
	fs := Default()
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.txt")
	newPath := filepath.Join(dir, "new.txt")
	if err := os.WriteFile(oldPath, []byte("content"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	if err := fs.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename failed: %v", err)
	}
	if fs.Exists(oldPath) {
		t.Error("old file should not exist after rename")
	}
	if !fs.Exists(newPath) {
		t.Error("new file should exist after rename")
	}
	if err := fs.SyncDir(dir); err != nil {
		t.Fatalf("SyncDir failed: %v", err)
	}

	if err := fs.Remove(newPath); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if fs.Exists(newPath) {
		t.Error("file should not exist after remove")
	}
}

func TestOSFS_MkdirAllListDirStat(t *testing.T) {
	fs := Default()
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	if err := fs.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	for _, name := range []string{"x", "y"} {
		if err := os.WriteFile(filepath.Join(nested, name), []byte(name), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	names, err := fs.ListDir(nested)
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	slices.Sort(names)
	if !slices.Equal(names, []string{"x", "y"}) {
		t.Errorf("ListDir = %v, want [x y]", names)
	}

	info, err := fs.Stat(filepath.Join(nested, "x"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 1 {
		t.Errorf("Size = %d, want 1", info.Size())
	}
}

func TestWritableFile_SizeTruncate(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "test.txt")

	f, err := fs.Create(path)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defer f.Close()

	if _, err := f.Write(bytes.Repeat([]byte("z"), 100)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	size, err := f.Size()
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 100 {
		t.Errorf("Size = %d, want 100", size)
	}

	if err := f.Truncate(40); err != nil {
		t.Fatalf("Truncate failed: %v", err)
	}
	size, _ = f.Size()
	if size != 40 {
		t.Errorf("Size after truncate = %d, want 40", size)
	}
}

func TestSequentialFile_Skip(t *testing.T) {
	fs := Default()
	path := filepath.Join(t.TempDir(), "test.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	f, err := fs.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()

	if err := f.Skip(6); err != nil {
		t.Fatalf("Skip failed: %v", err)
	}
	buf := make([]byte, 5)
	n, err := f.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "world" {
		t.Errorf("Read after skip = %q, want 'world'", buf[:n])
	}
}

func TestOSFS_Lock(t *testing.T) {
	fs := Default()
	lockPath := filepath.Join(t.TempDir(), "LOCK")

	lock1, err := fs.Lock(lockPath)
	if err != nil {
		t.Fatalf("First lock failed: %v", err)
	}

	_, err = fs.Lock(lockPath)
	if !errors.Is(err, ErrLockHeld) {
		t.Errorf("Second lock error = %v, want ErrLockHeld", err)
	}

	if err := lock1.Close(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	lock2, err := fs.Lock(lockPath)
	if err != nil {
		t.Fatalf("Lock after release failed: %v", err)
	}
	lock2.Close()
}

func TestOSFS_ProbeLock(t *testing.T) {
	fs := Default()
	lockPath := filepath.Join(t.TempDir(), "LOCK")

	held, err := fs.ProbeLock(lockPath)
	if err != nil {
		t.Fatalf("ProbeLock(missing) failed: %v", err)
	}
	if held {
		t.Error("missing lock file should report not held")
	}

	lock, err := fs.Lock(lockPath)
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	held, err = fs.ProbeLock(lockPath)
	if err != nil {
		t.Fatalf("ProbeLock failed: %v", err)
	}
	if !held {
		t.Error("ProbeLock should report held while locked")
	}

	// Probing must not take the lock away from a later writer.
	if err := lock.Close(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	held, _ = fs.ProbeLock(lockPath)
	if held {
		t.Error("ProbeLock should report free after release")
	}
	lock, err = fs.Lock(lockPath)
	if err != nil {
		t.Fatalf("Lock after probe failed: %v", err)
	}
	lock.Close()
}
