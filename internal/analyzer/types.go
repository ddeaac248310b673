package analyzer

// #region importance-map

// ImportanceMap maps a component id (layer/head identifier) to a normalized
// importance score in [0,1]. Built fresh per analysis run; replaced, never
// mutated in place.
type ImportanceMap map[string]float64

// #endregion importance-map

// #region config

// Config holds the structural safety policy. Protected prefixes are a hard
// constraint: blocks under them are never proposed for pruning.
type Config struct {
	PruneThreshold    float64  // importance below this is a prune candidate
	MaxPruneRatio     float64  // cap on the fraction of candidates selected
	HighSparsity      float64  // sparsity above this marks a layer redundant
	PruneSparsity     float64  // sparsity above this upgrades compress to prune
	ProtectedPrefixes []string // top-level prefixes exempt from pruning
}

// DefaultConfig returns the shipped safety policy.
func DefaultConfig() Config {
	return Config{
		PruneThreshold: 0.15,
		MaxPruneRatio:  0.40,
		HighSparsity:   0.70,
		PruneSparsity:  0.85,
		ProtectedPrefixes: []string{
			"embedding", "output", "classifier", "safety", "shared",
		},
	}
}

// #endregion config

// #region redundant-layer

// RedundantLayer flags a feedforward layer whose activations are largely
// dormant.
type RedundantLayer struct {
	Layer          string  `json:"layer"`
	Sparsity       float64 `json:"sparsity"`
	Recommendation string  `json:"recommendation"` // "compress" | "prune"
}

// #endregion redundant-layer

// #region recommendation

// Recommendation is a proposed rewiring opportunity derived from analysis.
type Recommendation struct {
	Type                  string   `json:"type"`
	Description           string   `json:"description"`
	Targets               []string `json:"targets,omitempty"`
	EstimatedSpeedup      string   `json:"estimated_speedup,omitempty"`
	EstimatedMemorySaving string   `json:"estimated_memory_saving,omitempty"`
}

// #endregion recommendation

// #region analysis

// Constraints echoes the safety policy that was enforced during a run.
type Constraints struct {
	MaxPruneRatio     float64  `json:"max_prune_ratio"`
	PruneThreshold    float64  `json:"prune_threshold"`
	ProtectedPrefixes []string `json:"protected_prefixes"`
}

// Analysis is the full structural-analysis output consumed by the evolution
// orchestrator through the usage report.
type Analysis struct {
	PrunableBlocks  []string         `json:"prunable_blocks"`
	RiskScore       float64          `json:"risk_score"`
	BlockImportance ImportanceMap    `json:"block_importance"`
	NeuronScores    ImportanceMap    `json:"neuron_scores"`
	RedundantLayers []RedundantLayer `json:"redundant_layers"`
	Recommendations []Recommendation `json:"recommendations"`
	Constraints     Constraints      `json:"constraints"`
}

// #endregion analysis
