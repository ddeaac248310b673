package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/krishitantra/seslm-controller/internal/modelrt"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS version_entries (
	version_id            TEXT PRIMARY KEY,
	parent_id             TEXT NOT NULL,
	created_at            TEXT NOT NULL,
	optimizations_json    TEXT NOT NULL,
	compression_percent   REAL NOT NULL DEFAULT 0,
	base_parameters       INTEGER NOT NULL DEFAULT 0,
	optimized_parameters  INTEGER NOT NULL DEFAULT 0,
	base_size_mb          REAL NOT NULL DEFAULT 0,
	optimized_size_mb     REAL NOT NULL DEFAULT 0,
	accuracy_drop_percent REAL NOT NULL DEFAULT 0,
	similarity_score      REAL NOT NULL DEFAULT 0,
	hallucination_rate    REAL NOT NULL DEFAULT 0,
	validation_status     TEXT NOT NULL DEFAULT 'unknown',
	trigger_type          TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS active_model (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	version_id  TEXT NOT NULL
);
`

// #endregion schema

// #region store

// Store is the append-only version registry backed by SQLite, plus the
// active-model pointer row.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	return NewStoreWithDB(db)
}

// NewStoreWithDB runs migrations on an existing connection, for sharing one
// database file across stores.
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

// #endregion store

// #region register

// Register appends a new version entry. The parent is whatever version is
// active at registration time; it does not move the active pointer.
func (s *Store) Register(versionID string, diff modelrt.ArchitectureDiff, validation modelrt.ValidationReport) error {
	parent, err := s.ActiveVersion()
	if err != nil {
		return fmt.Errorf("resolve parent: %w", err)
	}

	optJSON, err := json.Marshal(diff.Optimizations)
	if err != nil {
		return fmt.Errorf("marshal optimizations: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO version_entries (
			version_id, parent_id, created_at, optimizations_json,
			compression_percent, base_parameters, optimized_parameters,
			base_size_mb, optimized_size_mb,
			accuracy_drop_percent, similarity_score, hallucination_rate,
			validation_status, trigger_type
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		versionID, parent, time.Now().UTC().Format(time.RFC3339Nano), string(optJSON),
		diff.ReductionPercent, diff.BaseParameters, diff.OptimizedParameters,
		diff.BaseSizeMB, diff.OptimizedSizeMB,
		validation.AccuracyDropPercent, validation.SimilarityScore, validation.HallucinationRate,
		validation.Status, "domain_drift",
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion register

// #region active-pointer

// ActiveVersion reads the active-model pointer. Before any version has been
// activated it reports the root sentinel.
func (s *Store) ActiveVersion() (string, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_model WHERE id = 1`).Scan(&versionID)
	if err == sql.ErrNoRows {
		return RootVersion, nil
	}
	if err != nil {
		return "", fmt.Errorf("get active: %w", err)
	}
	return versionID, nil
}

// SetActive repoints the active-model pointer to a registered version. The
// root sentinel is always a valid target so a restore can land on it.
func (s *Store) SetActive(versionID string) error {
	if versionID == RootVersion {
		_, err := s.db.Exec(
			`INSERT INTO active_model (id, version_id) VALUES (1, ?)
			 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
			versionID,
		)
		if err != nil {
			return fmt.Errorf("set active: %w", err)
		}
		return nil
	}
	var exists int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM version_entries WHERE version_id = ?`, versionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("activate %s: %w", versionID, ErrNotFound)
	}
	_, err = s.db.Exec(
		`INSERT INTO active_model (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		versionID,
	)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return nil
}

// #endregion active-pointer

// #region get

// Get looks up one registry entry by id.
func (s *Store) Get(versionID string) (Entry, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, created_at, optimizations_json,
			compression_percent, base_parameters, optimized_parameters,
			base_size_mb, optimized_size_mb,
			accuracy_drop_percent, similarity_score, hallucination_rate,
			validation_status, trigger_type
		 FROM version_entries WHERE version_id = ?`, versionID,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return Entry{}, fmt.Errorf("get %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get %s: %w", versionID, err)
	}
	return entry, nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, created_at, optimizations_json,
			compression_percent, base_parameters, optimized_parameters,
			base_size_mb, optimized_size_mb,
			accuracy_drop_percent, similarity_score, hallucination_rate,
			validation_status, trigger_type
		 FROM version_entries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scannable) (Entry, error) {
	var e Entry
	var createdStr, optJSON string
	err := row.Scan(
		&e.VersionID, &e.ParentID, &createdStr, &optJSON,
		&e.CompressionPercent, &e.BaseParameters, &e.OptimizedParameters,
		&e.BaseSizeMB, &e.OptimizedSizeMB,
		&e.AccuracyDropPercent, &e.SimilarityScore, &e.HallucinationRate,
		&e.ValidationStatus, &e.Trigger,
	)
	if err != nil {
		return Entry{}, err
	}
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	if err := json.Unmarshal([]byte(optJSON), &e.Optimizations); err != nil {
		return Entry{}, fmt.Errorf("unmarshal optimizations: %w", err)
	}
	return e, nil
}

// #endregion get

// #region lineage

// Lineage walks parent pointers from versionID back to the root sentinel and
// returns the chain root-first. A cycle or a dangling parent is a fatal
// integrity error. The walk is bounded by the registry size.
func (s *Store) Lineage(versionID string) ([]string, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM version_entries`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count versions: %w", err)
	}

	chain := []string{versionID}
	seen := map[string]bool{versionID: true}
	current := versionID

	for steps := 0; steps <= total; steps++ {
		var parent string
		err := s.db.QueryRow(
			`SELECT parent_id FROM version_entries WHERE version_id = ?`, current,
		).Scan(&parent)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("lineage of %s at %s: %w", versionID, current, ErrDanglingParent)
		}
		if err != nil {
			return nil, fmt.Errorf("lineage of %s: %w", versionID, err)
		}
		if parent == RootVersion {
			chain = append(chain, RootVersion)
			reverse(chain)
			return chain, nil
		}
		if parent == current || seen[parent] {
			return nil, fmt.Errorf("lineage of %s at %s: %w", versionID, parent, ErrLineageCycle)
		}
		seen[parent] = true
		chain = append(chain, parent)
		current = parent
	}
	return nil, fmt.Errorf("lineage of %s exceeds registry size: %w", versionID, ErrLineageCycle)
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// #endregion lineage

// #region summary

// GetSummary reports the registry overview.
func (s *Store) GetSummary() (Summary, error) {
	entries, err := s.List(1000)
	if err != nil {
		return Summary{}, err
	}
	if len(entries) == 0 {
		return Summary{LatestVersion: RootVersion}, nil
	}

	latest := entries[0]
	versions := make([]string, 0, len(entries))
	// List is newest-first; present versions oldest-first.
	for i := len(entries) - 1; i >= 0; i-- {
		versions = append(versions, entries[i].VersionID)
	}
	return Summary{
		TotalVersions:            len(entries),
		LatestVersion:            latest.VersionID,
		LatestCompressionPercent: latest.CompressionPercent,
		LatestAccuracyDrop:       latest.AccuracyDropPercent,
		LatestValidation:         latest.ValidationStatus,
		AllVersions:              versions,
	}, nil
}

// #endregion summary
