package evolution

// #region generate

// DefaultPruneBlock is the fallback target used when the analyzer found
// nothing prunable; the cycle still needs a plan to complete.
const DefaultPruneBlock = "default_pruning"

// GenerateCandidates enumerates every non-empty subset of the prunable set up
// to maxSubset elements, each subset becoming one plan. For k blocks that is
// sum C(k,r) for r = 1..min(maxSubset, k) candidates. An empty prunable set
// degrades to a single default plan.
func GenerateCandidates(prunable []string, maxSubset int) []PruningPlan {
	if maxSubset <= 0 {
		maxSubset = 1
	}
	if len(prunable) == 0 {
		return []PruningPlan{{PruneBlocks: []string{DefaultPruneBlock}}}
	}

	limit := maxSubset
	if limit > len(prunable) {
		limit = len(prunable)
	}

	var plans []PruningPlan
	for r := 1; r <= limit; r++ {
		combinations(prunable, r, func(combo []string) {
			blocks := make([]string, len(combo))
			copy(blocks, combo)
			plans = append(plans, PruningPlan{PruneBlocks: blocks})
		})
	}
	return plans
}

// combinations visits each r-element combination of items in lexicographic
// index order. The visited slice is reused between calls.
func combinations(items []string, r int, visit func([]string)) {
	indices := make([]int, r)
	for i := range indices {
		indices[i] = i
	}
	combo := make([]string, r)
	for {
		for i, idx := range indices {
			combo[i] = items[idx]
		}
		visit(combo)

		// Advance to the next combination.
		i := r - 1
		for i >= 0 && indices[i] == len(items)-r+i {
			i--
		}
		if i < 0 {
			return
		}
		indices[i]++
		for j := i + 1; j < r; j++ {
			indices[j] = indices[j-1] + 1
		}
	}
}

// #endregion generate
