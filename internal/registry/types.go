package registry

import (
	"errors"
	"time"
)

// RootVersion is the lineage sentinel every chain terminates at.
const RootVersion = "base"

// Lineage integrity failures. These are fatal, never silently tolerated.
var (
	ErrLineageCycle   = errors.New("registry: cycle in version lineage")
	ErrDanglingParent = errors.New("registry: parent version not found")
	ErrNotFound       = errors.New("registry: version not found")
)

// #region entry

// Entry is one immutable registry record. Parent is the version that was
// active immediately before this one was registered.
type Entry struct {
	VersionID           string    `json:"version"`
	ParentID            string    `json:"parent_version"`
	CreatedAt           time.Time `json:"timestamp"`
	Optimizations       []string  `json:"optimization"`
	CompressionPercent  float64   `json:"compression_percent"`
	BaseParameters      int64     `json:"base_parameters"`
	OptimizedParameters int64     `json:"optimized_parameters"`
	BaseSizeMB          float64   `json:"base_size_mb"`
	OptimizedSizeMB     float64   `json:"optimized_size_mb"`
	AccuracyDropPercent float64   `json:"accuracy_drop_percent"`
	SimilarityScore     float64   `json:"similarity_score"`
	HallucinationRate   float64   `json:"hallucination_rate"`
	ValidationStatus    string    `json:"validation_status"`
	Trigger             string    `json:"trigger"`
}

// #endregion entry

// #region summary

// Summary is the registry overview surfaced on the status endpoints.
type Summary struct {
	TotalVersions            int      `json:"total_versions"`
	LatestVersion            string   `json:"latest_version"`
	LatestCompressionPercent float64  `json:"latest_compression_percent"`
	LatestAccuracyDrop       float64  `json:"latest_accuracy_drop"`
	LatestValidation         string   `json:"latest_validation"`
	AllVersions              []string `json:"all_versions"`
}

// #endregion summary
