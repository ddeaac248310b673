package telemetry

import (
	"path/filepath"
	"strings"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSummaryEmpty(t *testing.T) {
	s := tempStore(t)
	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRequests != 0 || sum.AvgLatencyMs != 0 {
		t.Fatalf("expected zero summary, got %+v", sum)
	}
}

func TestRecordAndSummarize(t *testing.T) {
	s := tempStore(t)

	if err := s.RecordRequest("r1", 10, 20, 100); err != nil {
		t.Fatalf("RecordRequest: %v", err)
	}
	if err := s.RecordRequest("r2", 5, 15, 300); err != nil {
		t.Fatalf("RecordRequest: %v", err)
	}

	sum, err := s.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum.TotalRequests != 2 || sum.AvgLatencyMs != 200 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if sum.TotalInputTokens != 15 || sum.TotalOutputTokens != 35 {
		t.Fatalf("token totals wrong: %+v", sum)
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
}

func TestAggregatedHeadStatsSums(t *testing.T) {
	s := tempStore(t)

	stats := map[string]map[string]float64{"encoder.block.0": {"0": 2, "1": 1}}
	if err := s.RecordStructural("r1", stats, nil); err != nil {
		t.Fatalf("RecordStructural: %v", err)
	}
	if err := s.RecordStructural("r2", stats, nil); err != nil {
		t.Fatalf("RecordStructural: %v", err)
	}

	agg, err := s.AggregatedHeadStats()
	if err != nil {
		t.Fatalf("AggregatedHeadStats: %v", err)
	}
	if agg["encoder.block.0"]["0"] != 4 || agg["encoder.block.0"]["1"] != 2 {
		t.Fatalf("expected summed activations, got %v", agg)
	}
}

func TestAggregatedLayerSparsityAverages(t *testing.T) {
	s := tempStore(t)

	if err := s.RecordStructural("r1", nil, map[string]float64{"ffn.layer.0": 0.8}); err != nil {
		t.Fatalf("RecordStructural: %v", err)
	}
	if err := s.RecordStructural("r2", nil, map[string]float64{"ffn.layer.0": 0.4}); err != nil {
		t.Fatalf("RecordStructural: %v", err)
	}

	agg, err := s.AggregatedLayerSparsity()
	if err != nil {
		t.Fatalf("AggregatedLayerSparsity: %v", err)
	}
	if agg["ffn.layer.0"] != 0.6 {
		t.Fatalf("expected average 0.6, got %f", agg["ffn.layer.0"])
	}
}

func TestAggregatesSkipMalformedRows(t *testing.T) {
	s := tempStore(t)

	if err := s.RecordStructural("good", map[string]map[string]float64{"l": {"0": 1}}, nil); err != nil {
		t.Fatalf("RecordStructural: %v", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO telemetry_structural (request_id, head_stats_json, layer_stats_json, created_at)
		 VALUES ('bad', 'not json', 'not json', '2026-01-01T00:00:00Z')`,
	); err != nil {
		t.Fatalf("insert malformed row: %v", err)
	}

	agg, err := s.AggregatedHeadStats()
	if err != nil {
		t.Fatalf("malformed rows must be skipped, got error: %v", err)
	}
	if agg["l"]["0"] != 1 {
		t.Fatalf("good row lost: %v", agg)
	}
}

func TestDriftHistoryTruncatesText(t *testing.T) {
	s := tempStore(t)

	long := strings.Repeat("x", 500)
	if err := s.RecordDriftEvent(0.5, true, long, 0.4, 0.2, 0.1); err != nil {
		t.Fatalf("RecordDriftEvent: %v", err)
	}

	history, err := s.DriftHistory(10)
	if err != nil {
		t.Fatalf("DriftHistory: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 record, got %d", len(history))
	}
	if len(history[0].InputText) != 200 {
		t.Fatalf("expected truncation to 200, got %d", len(history[0].InputText))
	}
	if !history[0].Flagged || history[0].Score != 0.5 {
		t.Fatalf("unexpected record: %+v", history[0])
	}
}
