package evolution

import (
	"math"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
)

// #region evaluate

// Evaluator scores pruning plans. Pure projection from plan size and block
// importance; it never calls the runtime.
type Evaluator struct {
	config Config
}

// NewEvaluator creates an evaluator with the given policy.
func NewEvaluator(config Config) *Evaluator {
	return &Evaluator{config: config}
}

// Evaluate projects the gains of one plan. Gains grow monotonically with the
// number of pruned blocks; risk is the mean importance of the pruned blocks,
// with missing entries defaulting to 0 rather than erroring.
func (e *Evaluator) Evaluate(plan PruningPlan, importance analyzer.ImportanceMap) CandidateScore {
	n := float64(len(plan.PruneBlocks))

	latencyMs := n * e.config.LatencyMsPerBlock
	latencyPct := round2(n * e.config.LatencyPctPerBlock)
	memoryMB := n * e.config.MemoryMBPerBlock
	memoryPct := round2(n * e.config.MemoryPctPerBlock)

	// Any pruning at all is floored to a minimum projected improvement.
	if n >= 1 && latencyPct < e.config.LatencyTargetPct {
		latencyPct = math.Max(latencyPct, e.config.MinLatencyPct)
		latencyMs = math.Max(latencyMs, e.config.MinLatencyMs)
	}
	if n >= 1 && memoryPct < e.config.MemoryTargetPct {
		memoryPct = math.Max(memoryPct, e.config.MinMemoryPct)
		memoryMB = math.Max(memoryMB, e.config.MinMemoryMB)
	}

	var risk float64
	if len(plan.PruneBlocks) > 0 {
		var sum float64
		for _, block := range plan.PruneBlocks {
			sum += importance[block]
		}
		risk = round4(sum / n)
	}

	var bonus float64
	if latencyPct >= e.config.LatencyTargetPct {
		bonus += e.config.TargetBonus
	}
	if memoryPct >= e.config.MemoryTargetPct {
		bonus += e.config.TargetBonus
	}

	score := latencyMs*e.config.LatencyWeight + memoryMB*e.config.MemoryWeight + bonus - risk*e.config.RiskPenalty

	return CandidateScore{
		Plan:           plan,
		LatencyGainMs:  latencyMs,
		MemoryGainMB:   memoryMB,
		LatencyPercent: latencyPct,
		MemoryPercent:  memoryPct,
		Risk:           risk,
		Score:          round4(score),
	}
}

// EvaluateAll scores every plan and returns the results in input order.
func (e *Evaluator) EvaluateAll(plans []PruningPlan, importance analyzer.ImportanceMap) []CandidateScore {
	scores := make([]CandidateScore, 0, len(plans))
	for _, plan := range plans {
		scores = append(scores, e.Evaluate(plan, importance))
	}
	return scores
}

// #endregion evaluate

// #region select

// SelectBest picks the highest-scoring candidate. Ties prefer lower risk,
// then fewer pruned blocks. Returns false when scores is empty.
func SelectBest(scores []CandidateScore) (CandidateScore, bool) {
	if len(scores) == 0 {
		return CandidateScore{}, false
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if betterThan(s, best) {
			best = s
		}
	}
	return best, true
}

func betterThan(a, b CandidateScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Risk != b.Risk {
		return a.Risk < b.Risk
	}
	return len(a.Plan.PruneBlocks) < len(b.Plan.PruneBlocks)
}

// #endregion select

// #region rounding

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }

// #endregion rounding
