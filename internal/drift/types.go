package drift

import "context"

// #region embedder-interface

// Embedder abstracts the vectorization method so the detector can be tested
// without a live runtime. Implementations must return a consistent dimension
// for consistent inputs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// #endregion embedder-interface

// #region config

// Config holds the drift scoring knobs. The signal weights are policy
// constants tuned on the shipped model; keep their relative ordering.
type Config struct {
	WindowSize     int     // bounded FIFO window capacity
	Threshold      float64 // composite score above this flags drift
	SemanticWeight float64
	VocabWeight    float64
	VarianceWeight float64
}

// DefaultConfig returns the shipped drift tuning.
func DefaultConfig() Config {
	return Config{
		WindowSize:     20,
		Threshold:      0.35,
		SemanticWeight: 0.6,
		VocabWeight:    0.3,
		VarianceWeight: 0.1,
	}
}

// #endregion config

// #region report

// Components breaks the composite drift score into its three signals.
type Components struct {
	EmbeddingShift float64 `json:"embedding_shift"`
	VocabShift     float64 `json:"vocab_shift"`
	IntentVariance float64 `json:"intent_variance"`
}

// Report is the immutable per-request drift verdict.
type Report struct {
	Score      float64    `json:"drift_score"`
	Flagged    bool       `json:"is_drift"`
	Components Components `json:"components"`
}

// #endregion report

// #region status

// Status describes the detector's current window occupancy.
type Status struct {
	WindowSize int `json:"window_size"`
	Capacity   int `json:"capacity"`
}

// #endregion status
