package evolution

import "testing"

func TestGenerateCandidatesCounts(t *testing.T) {
	// For 3 blocks and cap 5: C(3,1)+C(3,2)+C(3,3) = 7.
	plans := GenerateCandidates([]string{"a", "b", "c"}, 5)
	if len(plans) != 7 {
		t.Fatalf("expected 7 plans, got %d", len(plans))
	}

	seen := make(map[int]int)
	for _, p := range plans {
		seen[len(p.PruneBlocks)]++
	}
	if seen[1] != 3 || seen[2] != 3 || seen[3] != 1 {
		t.Fatalf("unexpected subset size distribution: %v", seen)
	}
}

func TestGenerateCandidatesSubsetCap(t *testing.T) {
	blocks := []string{"a", "b", "c", "d", "e", "f", "g"}
	for _, p := range GenerateCandidates(blocks, 5) {
		if len(p.PruneBlocks) > 5 {
			t.Fatalf("subset exceeds cap: %v", p.PruneBlocks)
		}
	}
}

func TestGenerateCandidatesEmptyFallsBack(t *testing.T) {
	plans := GenerateCandidates(nil, 5)
	if len(plans) != 1 || len(plans[0].PruneBlocks) != 1 || plans[0].PruneBlocks[0] != DefaultPruneBlock {
		t.Fatalf("expected single default plan, got %v", plans)
	}
}

func TestGenerateCandidatesPlansAreIndependent(t *testing.T) {
	plans := GenerateCandidates([]string{"a", "b"}, 5)
	plans[0].PruneBlocks[0] = "mutated"
	for _, p := range plans[1:] {
		for _, b := range p.PruneBlocks {
			if b == "mutated" {
				t.Fatal("plans share backing arrays")
			}
		}
	}
}
