package cursor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "uid_state.json"))

	state, err := store.Load()
	if err != nil {
		t.Fatalf("Load() returned error for missing file: %v", err)
	}
	if len(state) != 0 {
		t.Errorf("expected empty state, got %v", state)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uid_state.json")
	store := NewStore(path)

	state := map[string]uint32{
		"alice@example.com": 42,
		"bob@example.com":   7,
	}
	if err := store.Save(state); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded["alice@example.com"] != 42 {
		t.Errorf("expected cursor 42 for alice, got %d", loaded["alice@example.com"])
	}
	if loaded["bob@example.com"] != 7 {
		t.Errorf("expected cursor 7 for bob, got %d", loaded["bob@example.com"])
	}
}

func TestSaveReplacesWholeMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uid_state.json")
	store := NewStore(path)

	if err := store.Save(map[string]uint32{"alice@example.com": 1, "bob@example.com": 2}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}
	if err := store.Save(map[string]uint32{"alice@example.com": 5}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if len(loaded) != 1 || loaded["alice@example.com"] != 5 {
		t.Errorf("expected only alice=5 after overwrite, got %v", loaded)
	}
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uid_state.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if _, err := NewStore(path).Load(); err == nil {
		t.Error("expected error for corrupt state file")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uid_state.json")

	if err := NewStore(path).Save(map[string]uint32{"alice@example.com": 3}); err != nil {
		t.Fatalf("Save() returned error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the state file in %s, got %d entries", dir, len(entries))
	}
}
