package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
)

// #region normalize

// Normalize scales raw magnitudes into [0,1] by the maximum observed value.
// Empty input yields an empty map; an all-zero category yields all zeros.
func Normalize(usage map[string]float64) analyzer.ImportanceMap {
	out := make(analyzer.ImportanceMap, len(usage))
	if len(usage) == 0 {
		return out
	}
	maxVal := 0.0
	for _, v := range usage {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		for k := range usage {
			out[k] = 0
		}
		return out
	}
	for k, v := range usage {
		out[k] = v / maxVal
	}
	return out
}

// #endregion normalize

// #region aggregate

// Aggregate converts raw structural telemetry into one normalized importance
// map. Head activations and layer sparsity are normalized within their own
// category before merging, so a dominant category cannot drown the other.
func Aggregate(headStats map[string]map[string]float64, layerStats map[string]float64) analyzer.ImportanceMap {
	flatHeads := make(map[string]float64)
	for layer, heads := range headStats {
		for headID, value := range heads {
			flatHeads[fmt.Sprintf("%s.head_%s", layer, headID)] = value
		}
	}

	out := Normalize(flatHeads)
	for k, v := range Normalize(layerStats) {
		out[k] = v
	}
	return out
}

// #endregion aggregate

// #region block-level

// BlockLevel averages fine-grained importance scores into block keys formed
// from the first three dot-separated segments of each component id.
func BlockLevel(importance analyzer.ImportanceMap) analyzer.ImportanceMap {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for component, score := range importance {
		parts := strings.Split(component, ".")
		var key string
		switch {
		case len(parts) >= 3:
			key = strings.Join(parts[:3], ".")
		case len(parts) == 2:
			key = strings.Join(parts[:2], ".")
		default:
			key = parts[0]
		}
		sums[key] += score
		counts[key]++
	}

	out := make(analyzer.ImportanceMap, len(sums))
	for key, sum := range sums {
		out[key] = sum / float64(counts[key])
	}
	return out
}

// #endregion block-level

// #region dormant

// DormantThreshold marks components whose normalized usage is effectively
// idle.
const DormantThreshold = 0.10

// Dormant returns component ids below the dormant threshold, sorted for
// stable output.
func Dormant(importance analyzer.ImportanceMap) []string {
	var dormant []string
	for component, score := range importance {
		if score < DormantThreshold {
			dormant = append(dormant, component)
		}
	}
	sort.Strings(dormant)
	return dormant
}

// #endregion dormant
