//go:build linux

package serialport

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLockDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ttyFAKE")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	first, err := lockDevice(path)
	if err != nil {
		t.Fatalf("first lock: %v", err)
	}
	if _, err := lockDevice(path); !errors.Is(err, ErrLocked) {
		t.Errorf("second lock err = %v, want ErrLocked", err)
	}
	first.Close()
	second, err := lockDevice(path)
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	second.Close()
}
