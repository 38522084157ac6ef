package storage

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestCheckLocalFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	err := checkLocalFilesystem(filepath.Join(t.TempDir(), "state.db"), func(string) (string, error) {
		return "apfs", nil
	})
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystemRejectsNetwork(t *testing.T) {
	t.Parallel()

	for _, fsType := range []string{"nfs", "SMBFS", " cifs "} {
		err := checkLocalFilesystem(filepath.Join(t.TempDir(), "state.db"), func(string) (string, error) {
			return fsType, nil
		})
		if !errors.Is(err, ErrNetworkFilesystem) {
			t.Fatalf("%q: expected ErrNetworkFilesystem, got %v", fsType, err)
		}
	}
}

func TestCheckLocalFilesystemInspectsNearestParent(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	var inspected string
	err := checkLocalFilesystem(filepath.Join(root, "nested", "dir", "state.db"), func(p string) (string, error) {
		inspected = p
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("inspected %q, want %q", inspected, root)
	}
}

func TestCheckLocalFilesystemRealPath(t *testing.T) {
	t.Parallel()

	if err := CheckLocalFilesystem(filepath.Join(t.TempDir(), "state.db")); err != nil {
		t.Fatalf("temp dir should be local: %v", err)
	}
}
