package profile

import (
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

func TestNormalize(t *testing.T) {
	got := Normalize(map[string]float64{"a": 10, "b": 5, "c": 0})
	if got["a"] != 1.0 || got["b"] != 0.5 || got["c"] != 0 {
		t.Fatalf("unexpected normalization: %v", got)
	}
}

func TestNormalizeEmptyAndZero(t *testing.T) {
	if got := Normalize(nil); len(got) != 0 {
		t.Fatalf("expected empty map, got %v", got)
	}
	got := Normalize(map[string]float64{"a": 0, "b": 0})
	if got["a"] != 0 || got["b"] != 0 {
		t.Fatalf("all-zero input should stay zero, got %v", got)
	}
}

func TestAggregateCategoriesNormalizedIndependently(t *testing.T) {
	got := Aggregate(
		map[string]map[string]float64{"encoder.block.0": {"0": 200, "1": 100}},
		map[string]float64{"ffn.layer.0": 0.8, "ffn.layer.1": 0.4},
	)

	if got["encoder.block.0.head_0"] != 1.0 {
		t.Fatalf("expected head max normalized to 1, got %f", got["encoder.block.0.head_0"])
	}
	if got["ffn.layer.0"] != 1.0 {
		t.Fatalf("layer category must be normalized by its own max, got %f", got["ffn.layer.0"])
	}
	if got["ffn.layer.1"] != 0.5 {
		t.Fatalf("expected 0.5, got %f", got["ffn.layer.1"])
	}
}

func TestBlockLevelAveraging(t *testing.T) {
	got := BlockLevel(analyzer.ImportanceMap{
		"encoder.block.0.head_0": 0.4,
		"encoder.block.0.head_1": 0.8,
		"ffn.layer":              0.6,
		"solo":                   0.2,
	})

	if v := got["encoder.block.0"]; math.Abs(v-0.6) > 1e-9 {
		t.Fatalf("expected block average 0.6, got %f", v)
	}
	if got["ffn.layer"] != 0.6 {
		t.Fatalf("two-segment key should group as-is, got %v", got)
	}
	if got["solo"] != 0.2 {
		t.Fatalf("single-segment key should group as-is, got %v", got)
	}
}

func TestDormant(t *testing.T) {
	got := Dormant(analyzer.ImportanceMap{"a": 0.05, "b": 0.5, "c": 0.09})
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("expected [a c], got %v", got)
	}
}

// stubTelemetry implements TelemetryReader with canned aggregates.
type stubTelemetry struct {
	heads    map[string]map[string]float64
	sparsity map[string]float64
}

func (s *stubTelemetry) AggregatedHeadStats() (map[string]map[string]float64, error) {
	return s.heads, nil
}

func (s *stubTelemetry) AggregatedLayerSparsity() (map[string]float64, error) {
	return s.sparsity, nil
}

func (s *stubTelemetry) Summary() (telemetry.Summary, error) {
	return telemetry.Summary{TotalRequests: 3}, nil
}

func TestGenerateReportAndLatest(t *testing.T) {
	p := NewProfiler(
		&stubTelemetry{
			heads:    map[string]map[string]float64{"encoder.block.0": {"0": 10, "1": 1}},
			sparsity: map[string]float64{"ffn.layer.0": 0.95},
		},
		analyzer.NewAnalyzer(analyzer.DefaultConfig()),
		zap.NewNop(),
	)

	if _, ok := p.Latest(); ok {
		t.Fatal("no report should exist before the first run")
	}

	report, err := p.GenerateReport()
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if report.Telemetry.TotalRequests != 3 {
		t.Fatalf("expected telemetry summary carried through, got %+v", report.Telemetry)
	}
	if report.HeadImportance["encoder.block.0.head_0"] != 1.0 {
		t.Fatalf("expected normalized head importance, got %v", report.HeadImportance)
	}
	if len(report.Structural.RedundantLayers) != 1 {
		t.Fatalf("expected structural analysis embedded, got %+v", report.Structural)
	}

	latest, ok := p.Latest()
	if !ok || latest != report {
		t.Fatal("Latest should return the generated report")
	}
}
