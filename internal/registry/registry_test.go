package registry

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/krishitantra/seslm-controller/internal/modelrt"
)

func tempRegistry(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func register(t *testing.T, s *Store, versionID string) {
	t.Helper()
	diff := modelrt.ArchitectureDiff{
		VersionID:        versionID,
		Optimizations:    []string{"head_pruning"},
		ReductionPercent: 10,
	}
	validation := modelrt.ValidationReport{Status: modelrt.ValidationPass, SimilarityScore: 0.96}
	if err := s.Register(versionID, diff, validation); err != nil {
		t.Fatalf("Register %s: %v", versionID, err)
	}
	if err := s.SetActive(versionID); err != nil {
		t.Fatalf("SetActive %s: %v", versionID, err)
	}
}

func TestActiveDefaultsToRoot(t *testing.T) {
	s := tempRegistry(t)
	active, err := s.ActiveVersion()
	if err != nil {
		t.Fatalf("ActiveVersion: %v", err)
	}
	if active != RootVersion {
		t.Fatalf("expected %q before any activation, got %q", RootVersion, active)
	}
}

func TestRegisterParentIsActiveAtRegistration(t *testing.T) {
	s := tempRegistry(t)
	register(t, s, "v1")
	register(t, s, "v2")

	e, err := s.Get("v2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if e.ParentID != "v1" {
		t.Fatalf("expected parent v1, got %q", e.ParentID)
	}

	first, err := s.Get("v1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if first.ParentID != RootVersion {
		t.Fatalf("first version's parent should be the root sentinel, got %q", first.ParentID)
	}
}

func TestLineageTerminatesAtRoot(t *testing.T) {
	s := tempRegistry(t)
	register(t, s, "v1")
	register(t, s, "v2")
	register(t, s, "v3")

	chain, err := s.Lineage("v3")
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	want := []string{RootVersion, "v1", "v2", "v3"}
	if len(chain) != len(want) {
		t.Fatalf("expected %v, got %v", want, chain)
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, chain)
		}
	}
}

func TestLineageCycleIsFatal(t *testing.T) {
	s := tempRegistry(t)
	register(t, s, "v1")
	register(t, s, "v2")

	// Synthetic corruption: make v1's parent point forward to v2.
	if _, err := s.db.Exec(`UPDATE version_entries SET parent_id = 'v2' WHERE version_id = 'v1'`); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}

	_, err := s.Lineage("v2")
	if !errors.Is(err, ErrLineageCycle) {
		t.Fatalf("expected ErrLineageCycle, got %v", err)
	}
}

func TestLineageSelfReferenceIsFatal(t *testing.T) {
	s := tempRegistry(t)
	register(t, s, "v1")
	if _, err := s.db.Exec(`UPDATE version_entries SET parent_id = 'v1' WHERE version_id = 'v1'`); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}
	_, err := s.Lineage("v1")
	if !errors.Is(err, ErrLineageCycle) {
		t.Fatalf("expected ErrLineageCycle, got %v", err)
	}
}

func TestLineageDanglingParentIsFatal(t *testing.T) {
	s := tempRegistry(t)
	register(t, s, "v1")
	if _, err := s.db.Exec(`UPDATE version_entries SET parent_id = 'ghost' WHERE version_id = 'v1'`); err != nil {
		t.Fatalf("corrupt fixture: %v", err)
	}
	_, err := s.Lineage("v1")
	if !errors.Is(err, ErrDanglingParent) {
		t.Fatalf("expected ErrDanglingParent, got %v", err)
	}
}

func TestSetActiveUnknownVersion(t *testing.T) {
	s := tempRegistry(t)
	if err := s.SetActive("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetUnknownVersion(t *testing.T) {
	s := tempRegistry(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	s := tempRegistry(t)

	empty, err := s.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if empty.TotalVersions != 0 || empty.LatestVersion != RootVersion {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}

	register(t, s, "v1")
	register(t, s, "v2")

	summary, err := s.GetSummary()
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalVersions != 2 || summary.LatestVersion != "v2" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(summary.AllVersions) != 2 || summary.AllVersions[0] != "v1" {
		t.Fatalf("versions should be oldest-first: %v", summary.AllVersions)
	}
}
