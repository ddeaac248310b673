package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS telemetry_requests (
	request_id    TEXT PRIMARY KEY,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	latency_ms    REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS telemetry_structural (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id      TEXT NOT NULL,
	head_stats_json TEXT NOT NULL,
	layer_stats_json TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS drift_history (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at      TEXT NOT NULL,
	drift_score     REAL NOT NULL,
	drift_flag      INTEGER NOT NULL,
	input_text      TEXT,
	embedding_shift REAL NOT NULL DEFAULT 0,
	vocab_shift     REAL NOT NULL DEFAULT 0,
	intent_variance REAL NOT NULL DEFAULT 0
);
`

// #endregion schema

// #region store-struct

// Store persists per-request metrics, structural snapshots, and drift events.
// All tables are append-only; the profiler reads them back as aggregates.
type Store struct {
	db *sql.DB
}

// NewStore opens the telemetry database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreWithDB wraps an existing connection (shared with other stores).
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other stores.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store-struct

// #region record

// RecordRequest appends one request-level telemetry row.
func (s *Store) RecordRequest(requestID string, inputTokens, outputTokens int, latencyMs float64) error {
	_, err := s.db.Exec(
		`INSERT INTO telemetry_requests (request_id, input_tokens, output_tokens, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		requestID, inputTokens, outputTokens, latencyMs, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record request: %w", err)
	}
	return nil
}

// RecordStructural appends the per-request structural snapshot.
func (s *Store) RecordStructural(requestID string, headStats map[string]map[string]float64, layerSparsity map[string]float64) error {
	headJSON, err := json.Marshal(headStats)
	if err != nil {
		return fmt.Errorf("marshal head stats: %w", err)
	}
	layerJSON, err := json.Marshal(layerSparsity)
	if err != nil {
		return fmt.Errorf("marshal layer stats: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO telemetry_structural (request_id, head_stats_json, layer_stats_json, created_at)
		 VALUES (?, ?, ?, ?)`,
		requestID, string(headJSON), string(layerJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record structural: %w", err)
	}
	return nil
}

// RecordDriftEvent appends a drift observation. The input text is truncated;
// telemetry is not a transcript store.
func (s *Store) RecordDriftEvent(score float64, flagged bool, inputText string, embeddingShift, vocabShift, intentVariance float64) error {
	flag := 0
	if flagged {
		flag = 1
	}
	if len(inputText) > 200 {
		inputText = inputText[:200]
	}
	_, err := s.db.Exec(
		`INSERT INTO drift_history (created_at, drift_score, drift_flag, input_text, embedding_shift, vocab_shift, intent_variance)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), score, flag, inputText,
		embeddingShift, vocabShift, intentVariance,
	)
	if err != nil {
		return fmt.Errorf("record drift event: %w", err)
	}
	return nil
}

// #endregion record

// #region summary

// Summary aggregates request-level telemetry.
func (s *Store) Summary() (Summary, error) {
	var sum Summary
	err := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(latency_ms), 0),
		       COALESCE(MIN(latency_ms), 0),
		       COALESCE(MAX(latency_ms), 0),
		       COALESCE(SUM(input_tokens), 0),
		       COALESCE(SUM(output_tokens), 0)
		FROM telemetry_requests`,
	).Scan(&sum.TotalRequests, &sum.AvgLatencyMs, &sum.MinLatencyMs, &sum.MaxLatencyMs,
		&sum.TotalInputTokens, &sum.TotalOutputTokens)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}
	return sum, nil
}

// Recent returns the most recent request rows.
func (s *Store) Recent(limit int) ([]RequestRecord, error) {
	rows, err := s.db.Query(
		`SELECT request_id, input_tokens, output_tokens, latency_ms, created_at
		 FROM telemetry_requests ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()

	var records []RequestRecord
	for rows.Next() {
		var rec RequestRecord
		var createdStr string
		if err := rows.Scan(&rec.RequestID, &rec.InputTokens, &rec.OutputTokens, &rec.LatencyMs, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DriftHistory returns the most recent drift observations.
func (s *Store) DriftHistory(limit int) ([]DriftRecord, error) {
	rows, err := s.db.Query(
		`SELECT created_at, drift_score, drift_flag, input_text, embedding_shift, vocab_shift, intent_variance
		 FROM drift_history ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("drift history: %w", err)
	}
	defer rows.Close()

	var records []DriftRecord
	for rows.Next() {
		var rec DriftRecord
		var createdStr string
		var flag int
		if err := rows.Scan(&createdStr, &rec.Score, &flag, &rec.InputText,
			&rec.EmbeddingShift, &rec.VocabShift, &rec.IntentVariance); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.Flagged = flag == 1
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion summary

// #region aggregates

// AggregatedHeadStats sums per-head activation magnitudes across all
// structural snapshots. Malformed rows are skipped, not fatal.
func (s *Store) AggregatedHeadStats() (map[string]map[string]float64, error) {
	rows, err := s.db.Query(`SELECT head_stats_json FROM telemetry_structural`)
	if err != nil {
		return nil, fmt.Errorf("aggregate head stats: %w", err)
	}
	defer rows.Close()

	aggregated := make(map[string]map[string]float64)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var stats map[string]map[string]float64
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			continue
		}
		for layer, heads := range stats {
			if aggregated[layer] == nil {
				aggregated[layer] = make(map[string]float64)
			}
			for headID, value := range heads {
				aggregated[layer][headID] += value
			}
		}
	}
	return aggregated, rows.Err()
}

// AggregatedLayerSparsity averages per-layer sparsity across all structural
// snapshots.
func (s *Store) AggregatedLayerSparsity() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT layer_stats_json FROM telemetry_structural`)
	if err != nil {
		return nil, fmt.Errorf("aggregate layer sparsity: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]float64)
	count := 0
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var sparsity map[string]float64
		if err := json.Unmarshal([]byte(raw), &sparsity); err != nil {
			continue
		}
		for layer, v := range sparsity {
			sums[layer] += v
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if count > 0 {
		for layer := range sums {
			sums[layer] /= float64(count)
		}
	}
	return sums, nil
}

// #endregion aggregates
