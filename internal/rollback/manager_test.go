package rollback

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type fakePointer struct {
	active string
	sets   []string
}

func (f *fakePointer) ActiveVersion() (string, error) { return f.active, nil }

func (f *fakePointer) SetActive(versionID string) error {
	f.active = versionID
	f.sets = append(f.sets, versionID)
	return nil
}

func writeArtifact(t *testing.T, dir, version, content string) {
	t.Helper()
	path := filepath.Join(dir, version)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(path, "weights.bin"), []byte(content), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}

func readArtifact(t *testing.T, dir, version string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, version, "weights.bin"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	return string(data)
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	pointer := &fakePointer{active: "v1"}
	m := NewManager(dir, pointer, nil)

	writeArtifact(t, dir, "v1", "original")
	if err := m.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	// Simulate a bad recompile clobbering the artifact.
	writeArtifact(t, dir, "v1", "corrupted")
	pointer.active = "v2"

	if err := m.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readArtifact(t, dir, "v1"); got != "original" {
		t.Fatalf("expected restored content, got %q", got)
	}
	if pointer.active != "v1" {
		t.Fatalf("restore must repoint to the backed-up version, active is %q", pointer.active)
	}
}

func TestRestoreWithoutBackupFailsLoudly(t *testing.T) {
	m := NewManager(t.TempDir(), &fakePointer{active: "v1"}, nil)
	if err := m.Restore(); !errors.Is(err, ErrNoBackup) {
		t.Fatalf("expected ErrNoBackup, got %v", err)
	}
}

func TestBackupIsSingleGeneration(t *testing.T) {
	dir := t.TempDir()
	pointer := &fakePointer{active: "v1"}
	m := NewManager(dir, pointer, nil)

	writeArtifact(t, dir, "v1", "first")
	if err := m.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	pointer.active = "v2"
	writeArtifact(t, dir, "v2", "second")
	if err := m.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	version, err := m.BackedUpVersion()
	if err != nil {
		t.Fatalf("BackedUpVersion: %v", err)
	}
	if version != "v2" {
		t.Fatalf("second backup must overwrite the first, slot holds %q", version)
	}

	if err := m.Restore(); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := readArtifact(t, dir, "v2"); got != "second" {
		t.Fatalf("expected second backup content, got %q", got)
	}
}

func TestBackupWithoutArtifactStillRecordsSlot(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir, &fakePointer{active: "base"}, nil)

	if err := m.Backup(); err != nil {
		t.Fatalf("Backup: %v", err)
	}
	version, err := m.BackedUpVersion()
	if err != nil {
		t.Fatalf("BackedUpVersion: %v", err)
	}
	if version != "base" {
		t.Fatalf("expected base recorded, got %q", version)
	}
}

func TestRollbackToBypassesBackupSlot(t *testing.T) {
	dir := t.TempDir()
	pointer := &fakePointer{active: "v3"}
	m := NewManager(dir, pointer, nil)

	if err := m.RollbackTo("v1"); err != nil {
		t.Fatalf("RollbackTo: %v", err)
	}
	if pointer.active != "v1" {
		t.Fatalf("expected pointer at v1, got %q", pointer.active)
	}
	if _, err := m.BackedUpVersion(); !errors.Is(err, ErrNoBackup) {
		t.Fatal("RollbackTo must not touch the backup slot")
	}
}
