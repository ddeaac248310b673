package serving

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/drift"
	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/observability"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

// #region collaborators

// Inferencer is the runtime slice the serving path calls.
type Inferencer interface {
	Infer(ctx context.Context, text string) (modelrt.InferResult, error)
}

// EvolutionDispatcher fires a background cycle attempt. Fire-and-forget: the
// triggering request's latency is never affected by the cycle.
type EvolutionDispatcher interface {
	RunAsync(triggeredBy string)
}

// #endregion collaborators

// #region response

// Response is one served inference plus the drift verdict for this request.
type Response struct {
	RequestID    string       `json:"request_id"`
	Output       string       `json:"output"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
	LatencyMs    float64      `json:"latency_ms"`
	Drift        drift.Report `json:"drift"`
}

// #endregion response

// #region service

// Service is the request path: run inference, append telemetry, score drift,
// and dispatch the evolution trigger when the score crosses the threshold.
type Service struct {
	runtime    Inferencer
	telemetry  *telemetry.Store
	detector   *drift.Detector
	dispatcher EvolutionDispatcher
	logger     *zap.Logger
}

// NewService wires the serving path.
func NewService(
	runtime Inferencer,
	store *telemetry.Store,
	detector *drift.Detector,
	dispatcher EvolutionDispatcher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		runtime:    runtime,
		telemetry:  store,
		detector:   detector,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// #endregion service

// #region handle

// Handle serves one inference request. Telemetry and drift bookkeeping
// failures are logged and never fail the request.
func (s *Service) Handle(ctx context.Context, text string) (Response, error) {
	requestID := uuid.New().String()
	start := time.Now()

	result, err := s.runtime.Infer(ctx, text)
	if err != nil {
		observability.InferenceRequests.WithLabelValues("error").Inc()
		return Response{}, fmt.Errorf("inference: %w", err)
	}
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	observability.InferenceRequests.WithLabelValues("ok").Inc()
	observability.InferenceLatency.Observe(time.Since(start).Seconds())
	observability.TokensProcessed.WithLabelValues("input").Add(float64(result.InputTokens))
	observability.TokensProcessed.WithLabelValues("output").Add(float64(result.OutputTokens))

	if err := s.telemetry.RecordRequest(requestID, result.InputTokens, result.OutputTokens, latencyMs); err != nil {
		s.logger.Warn("record request telemetry", zap.Error(err))
	}
	if len(result.HeadStats) > 0 || len(result.LayerSparsity) > 0 {
		if err := s.telemetry.RecordStructural(requestID, result.HeadStats, result.LayerSparsity); err != nil {
			s.logger.Warn("record structural telemetry", zap.Error(err))
		}
	}

	report := s.detector.Observe(ctx, text)
	observability.DriftScore.Observe(report.Score)

	if report.Flagged {
		observability.DriftEvents.Inc()
		if err := s.telemetry.RecordDriftEvent(
			report.Score, true, text,
			report.Components.EmbeddingShift,
			report.Components.VocabShift,
			report.Components.IntentVariance,
		); err != nil {
			s.logger.Warn("record drift event", zap.Error(err))
		}
		s.logger.Info("drift threshold crossed",
			zap.Float64("score", report.Score),
			zap.String("request_id", requestID),
		)
		if s.dispatcher != nil {
			s.dispatcher.RunAsync("drift_detection")
		}
	}

	return Response{
		RequestID:    requestID,
		Output:       result.Output,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		LatencyMs:    latencyMs,
		Drift:        report,
	}, nil
}

// #endregion handle
