package analyzer

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// #region analyzer

// Analyzer applies the structural safety policy to importance scores and
// sparsity telemetry. All methods tolerate empty or partial input and return
// degraded defaults rather than errors.
type Analyzer struct {
	config Config
}

// NewAnalyzer creates an analyzer with the given policy.
func NewAnalyzer(config Config) *Analyzer {
	return &Analyzer{config: config}
}

// #endregion analyzer

// #region identify-prunable

// IdentifyPrunable returns block ids safe to propose for pruning: below the
// importance threshold, not under a protected prefix, least important first,
// capped at max(1, floor(k * MaxPruneRatio)) where k is the candidate count.
// Protected prefixes are never returned regardless of score.
func (a *Analyzer) IdentifyPrunable(importance ImportanceMap) []string {
	type candidate struct {
		block string
		score float64
	}

	var candidates []candidate
	for block, score := range importance {
		if score >= a.config.PruneThreshold {
			continue
		}
		if a.isProtected(block) {
			continue
		}
		candidates = append(candidates, candidate{block, score})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score < candidates[j].score
		}
		return candidates[i].block < candidates[j].block
	})

	maxAllowed := int(math.Floor(float64(len(candidates)) * a.config.MaxPruneRatio))
	if maxAllowed < 1 {
		maxAllowed = 1
	}
	if maxAllowed > len(candidates) {
		maxAllowed = len(candidates)
	}

	selected := make([]string, 0, maxAllowed)
	for _, c := range candidates[:maxAllowed] {
		selected = append(selected, c.block)
	}
	return selected
}

// isProtected reports whether the block's top-level prefix is protected.
func (a *Analyzer) isProtected(block string) bool {
	prefix := block
	if i := strings.Index(block, "."); i >= 0 {
		prefix = block[:i]
	}
	for _, p := range a.config.ProtectedPrefixes {
		if prefix == p {
			return true
		}
	}
	return false
}

// #endregion identify-prunable

// #region risk

// ComputeRisk returns the mean importance of the selected blocks; lower is
// safer to prune. Blocks missing from the map are skipped; no blocks → 0.
func (a *Analyzer) ComputeRisk(blocks []string, importance ImportanceMap) float64 {
	var sum float64
	count := 0
	for _, b := range blocks {
		score, ok := importance[b]
		if !ok {
			continue
		}
		sum += score
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// #endregion risk

// #region redundant-layers

// DetectRedundantLayers flags layers above the sparsity threshold, protected
// prefixes excluded, sorted by sparsity descending.
func (a *Analyzer) DetectRedundantLayers(sparsity map[string]float64) []RedundantLayer {
	var redundant []RedundantLayer
	for layer, avg := range sparsity {
		if a.isProtected(layer) {
			continue
		}
		if avg <= a.config.HighSparsity {
			continue
		}
		rec := "compress"
		if avg > a.config.PruneSparsity {
			rec = "prune"
		}
		redundant = append(redundant, RedundantLayer{Layer: layer, Sparsity: avg, Recommendation: rec})
	}
	sort.Slice(redundant, func(i, j int) bool {
		if redundant[i].Sparsity != redundant[j].Sparsity {
			return redundant[i].Sparsity > redundant[j].Sparsity
		}
		return redundant[i].Layer < redundant[j].Layer
	})
	return redundant
}

// #endregion redundant-layers

// #region neuron-importance

// ScoreNeuronImportance flattens per-head activation magnitudes into
// "<layer>.head_<id>" keys normalized to [0,1] by the maximum observed value.
func (a *Analyzer) ScoreNeuronImportance(headStats map[string]map[string]float64) ImportanceMap {
	scores := make(ImportanceMap)
	maxVal := 0.0
	for layer, heads := range headStats {
		for headID, activation := range heads {
			key := fmt.Sprintf("%s.head_%s", layer, headID)
			scores[key] = activation
			if activation > maxVal {
				maxVal = activation
			}
		}
	}
	if maxVal <= 0 {
		maxVal = 1
	}
	for k, v := range scores {
		scores[k] = v / maxVal
	}
	return scores
}

// #endregion neuron-importance

// #region rewiring

// RecommendRewiring derives architecture rewiring opportunities from neuron
// scores and layer redundancy. Quantization is always applicable.
func (a *Analyzer) RecommendRewiring(neuronScores ImportanceMap, redundant []RedundantLayer) []Recommendation {
	var recommendations []Recommendation

	var lowHeads []string
	for k, v := range neuronScores {
		if v < a.config.PruneThreshold {
			lowHeads = append(lowHeads, k)
		}
	}
	sort.Strings(lowHeads)
	if len(lowHeads) > 0 {
		targets := lowHeads
		if len(targets) > 10 {
			targets = targets[:10]
		}
		recommendations = append(recommendations, Recommendation{
			Type:             "head_pruning",
			Description:      fmt.Sprintf("Remove %d low-importance attention heads", len(lowHeads)),
			Targets:          targets,
			EstimatedSpeedup: fmt.Sprintf("%d%%", len(lowHeads)*2),
		})
	}

	var prunable, compressible []string
	for _, r := range redundant {
		if r.Sparsity > a.config.PruneSparsity {
			prunable = append(prunable, r.Layer)
		}
		if r.Recommendation == "compress" {
			compressible = append(compressible, r.Layer)
		}
	}
	if len(prunable) > 0 {
		recommendations = append(recommendations, Recommendation{
			Type:                  "layer_pruning",
			Description:           fmt.Sprintf("Remove %d highly sparse feedforward layers", len(prunable)),
			Targets:               prunable,
			EstimatedMemorySaving: fmt.Sprintf("%d%%", len(prunable)*5),
		})
	}
	if len(compressible) > 0 {
		recommendations = append(recommendations, Recommendation{
			Type:             "sparse_rewiring",
			Description:      fmt.Sprintf("Apply sparse rewiring to %d feedforward layers", len(compressible)),
			Targets:          compressible,
			EstimatedSpeedup: fmt.Sprintf("%d%%", len(compressible)*3),
		})
	}

	recommendations = append(recommendations, Recommendation{
		Type:                  "quantization",
		Description:           "Apply INT8 dynamic quantization to all linear layers",
		EstimatedMemorySaving: "30-50%",
		EstimatedSpeedup:      "10-20%",
	})
	return recommendations
}

// #endregion rewiring

// #region full-analysis

// RunFullAnalysis produces the complete structural verdict for one profiling
// run: prunable blocks with risk, redundant layers, and rewiring
// recommendations.
func (a *Analyzer) RunFullAnalysis(headStats map[string]map[string]float64, sparsity map[string]float64) Analysis {
	neuronScores := a.ScoreNeuronImportance(headStats)

	// Block-level importance: mean activation per layer normalized by the
	// layer's own maximum.
	blockImportance := make(ImportanceMap)
	for layer, heads := range headStats {
		if len(heads) == 0 {
			continue
		}
		var sum, maxVal float64
		for _, v := range heads {
			sum += v
			if v > maxVal {
				maxVal = v
			}
		}
		if maxVal <= 0 {
			maxVal = 1
		}
		blockImportance[layer] = sum / (float64(len(heads)) * maxVal)
	}

	prunable := a.IdentifyPrunable(blockImportance)
	redundant := a.DetectRedundantLayers(sparsity)

	return Analysis{
		PrunableBlocks:  prunable,
		RiskScore:       a.ComputeRisk(prunable, blockImportance),
		BlockImportance: blockImportance,
		NeuronScores:    neuronScores,
		RedundantLayers: redundant,
		Recommendations: a.RecommendRewiring(neuronScores, redundant),
		Constraints: Constraints{
			MaxPruneRatio:     a.config.MaxPruneRatio,
			PruneThreshold:    a.config.PruneThreshold,
			ProtectedPrefixes: a.config.ProtectedPrefixes,
		},
	}
}

// #endregion full-analysis
