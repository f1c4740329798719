package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	data, err := os.ReadFile(lock.Path())
	if err != nil {
		t.Fatalf("lock file missing: %v", err)
	}
	if parsePID(string(data)) != os.Getpid() {
		t.Errorf("expected our pid in lock file, got %q", data)
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := os.Stat(lock.Path()); !os.IsNotExist(err) {
		t.Error("expected lock file to be removed")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected to reacquire after release: %v", err)
	}
	again.Release()
}

func TestAcquireConflict(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	_, err = AcquireLock(dir)
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected LockError, got %v", err)
	}
	if !strings.Contains(lockErr.Holder, "pid") {
		t.Errorf("expected holder pid in error, got %q", lockErr.Holder)
	}
	if !strings.Contains(err.Error(), LockFileName) {
		t.Errorf("expected lock path in message, got %q", err.Error())
	}
}

func TestParsePID(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"pid=1234\n", 1234},
		{"host=a\npid=42", 42},
		{"pid=abc", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parsePID(tt.in); got != tt.want {
			t.Errorf("parsePID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestProcessAlive(t *testing.T) {
	if !processAlive(os.Getpid()) {
		t.Error("expected current process to be alive")
	}
	if processAlive(999999) {
		t.Skip("pid 999999 unexpectedly exists")
	}
}
