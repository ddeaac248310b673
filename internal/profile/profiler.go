package profile

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

// #region telemetry-reader

// TelemetryReader is the slice of the telemetry store the profiler needs.
type TelemetryReader interface {
	AggregatedHeadStats() (map[string]map[string]float64, error)
	AggregatedLayerSparsity() (map[string]float64, error)
	Summary() (telemetry.Summary, error)
}

// #endregion telemetry-reader

// #region usage-report

// UsageReport is one profiling run: normalized importance at fine and block
// granularity, dormant components, and the structural verdict. The evolution
// orchestrator's collect stage consumes the latest report.
type UsageReport struct {
	GeneratedAt     time.Time              `json:"generated_at"`
	Telemetry       telemetry.Summary      `json:"telemetry_summary"`
	HeadImportance  analyzer.ImportanceMap `json:"head_importance"`
	LayerImportance analyzer.ImportanceMap `json:"layer_importance"`
	BlockImportance analyzer.ImportanceMap `json:"block_importance"`
	DormantHeads    []string               `json:"dormant_heads"`
	DormantLayers   []string               `json:"dormant_layers"`
	Structural      analyzer.Analysis      `json:"structural_decisions"`
}

// #endregion usage-report

// #region profiler

// Profiler turns raw telemetry aggregates into usage reports.
type Profiler struct {
	telemetry TelemetryReader
	analyzer  *analyzer.Analyzer
	logger    *zap.Logger

	mu     sync.Mutex
	latest *UsageReport
}

// NewProfiler creates a profiler over the given telemetry source.
func NewProfiler(t TelemetryReader, a *analyzer.Analyzer, logger *zap.Logger) *Profiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Profiler{telemetry: t, analyzer: a, logger: logger}
}

// #endregion profiler

// #region generate

// GenerateReport reads aggregated telemetry, runs the structural analysis,
// and stores the result as the latest report.
func (p *Profiler) GenerateReport() (*UsageReport, error) {
	headStats, err := p.telemetry.AggregatedHeadStats()
	if err != nil {
		return nil, fmt.Errorf("read head stats: %w", err)
	}
	layerSparsity, err := p.telemetry.AggregatedLayerSparsity()
	if err != nil {
		return nil, fmt.Errorf("read layer sparsity: %w", err)
	}
	summary, err := p.telemetry.Summary()
	if err != nil {
		return nil, fmt.Errorf("read summary: %w", err)
	}

	flatHeads := make(map[string]float64)
	for layer, heads := range headStats {
		for headID, value := range heads {
			flatHeads[fmt.Sprintf("%s.head_%s", layer, headID)] = value
		}
	}
	headImportance := Normalize(flatHeads)
	layerImportance := Normalize(layerSparsity)

	analysis := p.analyzer.RunFullAnalysis(headStats, layerSparsity)

	report := &UsageReport{
		GeneratedAt:     time.Now().UTC(),
		Telemetry:       summary,
		HeadImportance:  headImportance,
		LayerImportance: layerImportance,
		BlockImportance: analysis.BlockImportance,
		DormantHeads:    Dormant(headImportance),
		DormantLayers:   Dormant(layerImportance),
		Structural:      analysis,
	}

	p.mu.Lock()
	p.latest = report
	p.mu.Unlock()

	p.logger.Info("usage report generated",
		zap.Int("prunable_blocks", len(analysis.PrunableBlocks)),
		zap.Float64("risk_score", analysis.RiskScore),
		zap.Int("dormant_heads", len(report.DormantHeads)),
	)
	return report, nil
}

// Latest returns the most recent report, if any run has completed.
func (p *Profiler) Latest() (*UsageReport, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.latest != nil
}

// #endregion generate
