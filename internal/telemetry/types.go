package telemetry

import "time"

// #region summary

// Summary aggregates the request-level telemetry table.
type Summary struct {
	TotalRequests     int     `json:"total_requests"`
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	MinLatencyMs      float64 `json:"min_latency_ms"`
	MaxLatencyMs      float64 `json:"max_latency_ms"`
	TotalInputTokens  int64   `json:"total_input_tokens"`
	TotalOutputTokens int64   `json:"total_output_tokens"`
}

// #endregion summary

// #region request-record

// RequestRecord is a single row from telemetry_requests.
type RequestRecord struct {
	RequestID    string    `json:"request_id"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	LatencyMs    float64   `json:"latency_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// #endregion request-record

// #region drift-record

// DriftRecord is a single row from drift_history.
type DriftRecord struct {
	CreatedAt      time.Time `json:"created_at"`
	Score          float64   `json:"drift_score"`
	Flagged        bool      `json:"drift_flag"`
	InputText      string    `json:"input_text"`
	EmbeddingShift float64   `json:"embedding_shift"`
	VocabShift     float64   `json:"vocab_shift"`
	IntentVariance float64   `json:"intent_variance"`
}

// #endregion drift-record
