package modelrt

// #region infer

// InferResult is the runtime's response to a single inference call,
// including the structural telemetry hooks the profiler consumes.
type InferResult struct {
	Output        string                        `json:"output"`
	InputTokens   int                           `json:"input_tokens"`
	OutputTokens  int                           `json:"output_tokens"`
	HeadStats     map[string]map[string]float64 `json:"head_stats"`     // layer -> head id -> activation magnitude
	LayerSparsity map[string]float64            `json:"layer_sparsity"` // layer -> mean activation sparsity
}

// #endregion infer

// #region architecture-diff

// ArchitectureDiff describes what the runtime's optimizer changed between the
// base artifact and a newly recompiled candidate version. Immutable once
// produced.
type ArchitectureDiff struct {
	VersionID           string           `json:"version_id"`
	BaseModel           string           `json:"base_model"`
	Optimizations       []string         `json:"optimizations"`
	BaseParameters      int64            `json:"base_parameters"`
	OptimizedParameters int64            `json:"optimized_parameters"`
	ReductionPercent    float64          `json:"reduction_percent"`
	BaseSizeMB          float64          `json:"base_size_mb"`
	OptimizedSizeMB     float64          `json:"optimized_size_mb"`
	PrunedHeads         map[string][]int `json:"pruned_heads,omitempty"`
	RemovedLayers       []int            `json:"removed_layers,omitempty"`
}

// #endregion architecture-diff

// #region validation-report

// Validation statuses.
const (
	ValidationPass = "PASS"
	ValidationFail = "FAIL"
)

// ValidationReport is the sandbox verdict on a candidate version. It gates
// registry commit: FAIL means the candidate never becomes active.
type ValidationReport struct {
	Status              string  `json:"status"` // PASS | FAIL
	Reason              string  `json:"reason,omitempty"`
	SimilarityScore     float64 `json:"similarity_score"`
	AccuracyDropPercent float64 `json:"accuracy_drop_percent"`
	HallucinationRate   float64 `json:"hallucination_rate"`
	LatencyBeforeMs     float64 `json:"latency_before_ms"`
	LatencyAfterMs      float64 `json:"latency_after_ms"`
}

// Passed reports whether the candidate cleared the validation gate.
func (r ValidationReport) Passed() bool {
	return r.Status == ValidationPass
}

// #endregion validation-report
