package config

import (
	"path/filepath"
	"testing"
)

func TestLoadWorldRawMissingFileReturnsZeroValue(t *testing.T) {
	raw, err := LoadWorldRaw(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadWorldRaw() error = %v", err)
	}
	if raw.Name != "" || raw.Policy != "" {
		t.Errorf("expected zero value, got %+v", raw)
	}
}

func TestSaveAndLoadWorldRawRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")
	want := &WorldRaw{
		Name:         "factory-floor",
		Policy:       "never exceed 10 concurrent deployments",
		Capabilities: []string{"deploy", "observe"},
	}

	if err := SaveWorld(path, want); err != nil {
		t.Fatalf("SaveWorld() error = %v", err)
	}

	got, err := LoadWorldRaw(path)
	if err != nil {
		t.Fatalf("LoadWorldRaw() error = %v", err)
	}
	if got.Name != want.Name || got.Policy != want.Policy || len(got.Capabilities) != 2 {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestLoadWorldSnapshotHashChangesWithContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.yaml")

	if err := SaveWorld(path, &WorldRaw{Name: "a"}); err != nil {
		t.Fatalf("SaveWorld() error = %v", err)
	}
	snap1, err := LoadWorldSnapshot(path)
	if err != nil {
		t.Fatalf("LoadWorldSnapshot() error = %v", err)
	}

	if err := SaveWorld(path, &WorldRaw{Name: "b"}); err != nil {
		t.Fatalf("SaveWorld() error = %v", err)
	}
	snap2, err := LoadWorldSnapshot(path)
	if err != nil {
		t.Fatalf("LoadWorldSnapshot() error = %v", err)
	}

	if snap1.Hash == snap2.Hash {
		t.Error("expected hash to change when world content changes")
	}
}
