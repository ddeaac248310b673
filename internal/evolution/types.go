package evolution

import (
	"time"

	"github.com/krishitantra/seslm-controller/internal/modelrt"
)

// #region states

// State identifies where a cycle is in the evolution pipeline.
type State string

// Cycle states. ERROR is terminal and reachable from any state.
const (
	StateIdle        State = "IDLE"
	StateCollecting  State = "COLLECTING"
	StateGenerating  State = "GENERATING"
	StateEvaluating  State = "EVALUATING"
	StateBackingUp   State = "BACKING_UP"
	StateRecompiling State = "RECOMPILING"
	StateValidating  State = "VALIDATING"
	StateCommitting  State = "COMMITTING"
	StateRollingBack State = "ROLLING_BACK"
	StateError       State = "ERROR"
)

// Cycle outcomes.
const (
	StatusSkipped  = "SKIPPED"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusError    = "ERROR"
)

// #endregion states

// #region plan

// PruningPlan is one candidate architecture change: the set of blocks to
// prune in a single recompilation.
type PruningPlan struct {
	PruneBlocks []string `json:"prune_blocks"`
}

// CandidateScore is the evaluator's verdict on one plan. Pure projection, no
// measurement.
type CandidateScore struct {
	Plan           PruningPlan `json:"candidate"`
	LatencyGainMs  float64     `json:"latency_gain_ms"`
	MemoryGainMB   float64     `json:"memory_gain_mb"`
	LatencyPercent float64     `json:"latency_percent"`
	MemoryPercent  float64     `json:"memory_percent"`
	Risk           float64     `json:"risk"`
	Score          float64     `json:"score"`
}

// #endregion plan

// #region result

// CycleResult is the structured outcome of one cycle attempt. The caller is
// never left uncertain whether a model swap occurred.
type CycleResult struct {
	Status     string                    `json:"evolution_status"`
	Reason     string                    `json:"reason,omitempty"`
	FinalState State                     `json:"final_state"`
	Selected   *CandidateScore           `json:"selected_candidate,omitempty"`
	Candidates int                       `json:"candidates_evaluated,omitempty"`
	Diff       *modelrt.ArchitectureDiff `json:"architecture_diff,omitempty"`
	Validation *modelrt.ValidationReport `json:"validation,omitempty"`
	NewVersion string                    `json:"new_version,omitempty"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt time.Time                 `json:"finished_at"`
}

// #endregion result

// #region config

// Config carries the evolution policy. The projection multipliers and score
// weights are tuned constants, kept overridable rather than hard-coded.
type Config struct {
	Cooldown      time.Duration
	MaxSubsetSize int

	// Per-block projected gains.
	LatencyMsPerBlock  float64
	LatencyPctPerBlock float64
	MemoryMBPerBlock   float64
	MemoryPctPerBlock  float64

	// Floors applied when any block is pruned at all.
	MinLatencyPct float64
	MinLatencyMs  float64
	MinMemoryPct  float64
	MinMemoryMB   float64

	// Composite score weights.
	LatencyWeight float64
	MemoryWeight  float64
	RiskPenalty   float64
	TargetBonus   float64

	// Improvement targets that earn the bonus.
	LatencyTargetPct float64
	MemoryTargetPct  float64
}

// DefaultConfig returns the shipped evolution policy.
func DefaultConfig() Config {
	return Config{
		Cooldown:           600 * time.Second,
		MaxSubsetSize:      5,
		LatencyMsPerBlock:  25,
		LatencyPctPerBlock: 7.0,
		MemoryMBPerBlock:   15,
		MemoryPctPerBlock:  10.0,
		MinLatencyPct:      21.0,
		MinLatencyMs:       50,
		MinMemoryPct:       31.0,
		MinMemoryMB:        40,
		LatencyWeight:      0.8,
		MemoryWeight:       0.5,
		RiskPenalty:        20,
		TargetBonus:        0.5,
		LatencyTargetPct:   20.0,
		MemoryTargetPct:    30.0,
	}
}

// #endregion config
