package governance

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/observability"
	"github.com/krishitantra/seslm-controller/internal/registry"
)

// #region collaborators

// Rollbacker restores or repoints the active model. The rollback manager
// satisfies this.
type Rollbacker interface {
	Restore() error
	RollbackTo(versionID string) error
}

// RegistrySource is the slice of the registry governance reads.
type RegistrySource interface {
	ActiveVersion() (string, error)
	GetSummary() (registry.Summary, error)
}

// #endregion collaborators

// #region results

// Rollback statuses.
const (
	StatusOK   = "OK"
	StatusFail = "FAIL"
)

// RollbackResult reports the outcome of a governance rollback.
type RollbackResult struct {
	Status       string `json:"status"`
	RolledBackTo string `json:"rolled_back_to,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// Decision reports an approval or rejection.
type Decision struct {
	Status            string `json:"status"`
	Version           string `json:"version"`
	Actor             string `json:"actor"`
	Reason            string `json:"reason,omitempty"`
	RollbackPerformed bool   `json:"rollback_performed,omitempty"`
}

// Summary is the governance overview.
type Summary struct {
	CurrentModel      string   `json:"current_model"`
	TotalEvolutions   int      `json:"total_evolutions"`
	RecentAuditEvents int      `json:"recent_audit_events"`
	LastAuditAction   string   `json:"last_audit_action"`
	RegistryVersions  []string `json:"registry_versions"`
}

// #endregion results

// #region manager

// Manager exposes the governance operations: instant rollback, change
// approval, and the audit trail.
type Manager struct {
	log      *Log
	registry RegistrySource
	rollback Rollbacker
	logger   *zap.Logger
}

// NewManager wires the governance surface.
func NewManager(log *Log, reg RegistrySource, rb Rollbacker, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{log: log, registry: reg, rollback: rb, logger: logger}
}

// AuditLog returns the recent audit trail.
func (m *Manager) AuditLog(limit int) ([]AuditEvent, error) {
	return m.log.Recent(limit)
}

// #endregion manager

// #region rollback

// PerformRollback rolls back to an explicit version, or to the backup slot
// when target is empty. The action and its outcome are always audited.
func (m *Manager) PerformRollback(target, reason string) RollbackResult {
	current, err := m.registry.ActiveVersion()
	if err != nil {
		current = "unknown"
	}

	var result RollbackResult
	action := "rollback_to_backup"
	if target != "" {
		action = fmt.Sprintf("rollback_to_%s", target)
		if err := m.rollback.RollbackTo(target); err != nil {
			result = RollbackResult{Status: StatusFail, Reason: err.Error()}
		} else {
			result = RollbackResult{Status: StatusOK, RolledBackTo: target}
			observability.Rollbacks.WithLabelValues("explicit").Inc()
		}
	} else {
		if err := m.rollback.Restore(); err != nil {
			result = RollbackResult{Status: StatusFail, Reason: err.Error()}
		} else {
			result = RollbackResult{Status: StatusOK, RolledBackTo: "backup"}
			observability.Rollbacks.WithLabelValues("backup").Inc()
		}
	}

	if err := m.log.Record(action, current, result.Status, "governance", map[string]interface{}{
		"reason": reason,
		"target": targetOrBackup(target),
		"result": result.Status,
	}); err != nil {
		m.logger.Warn("audit write failed", zap.Error(err))
	}
	return result
}

func targetOrBackup(target string) string {
	if target == "" {
		return "backup"
	}
	return target
}

// #endregion rollback

// #region decisions

// Approve records a post-validation approval of an evolved version.
func (m *Manager) Approve(version, approver string) (Decision, error) {
	if approver == "" {
		approver = "admin"
	}
	err := m.log.Record("evolution_approved", version, "APPROVED", approver, map[string]interface{}{
		"approver": approver,
	})
	if err != nil {
		return Decision{}, err
	}
	return Decision{Status: "APPROVED", Version: version, Actor: approver}, nil
}

// Reject rejects an evolved version and restores the previous model.
func (m *Manager) Reject(version, reason, rejector string) (Decision, error) {
	if rejector == "" {
		rejector = "admin"
	}

	rolledBack := true
	if err := m.rollback.Restore(); err != nil {
		rolledBack = false
		m.logger.Error("restore on rejection failed", zap.String("version", version), zap.Error(err))
	}

	err := m.log.Record("evolution_rejected", version, "REJECTED", rejector, map[string]interface{}{
		"rejector":           rejector,
		"reason":             reason,
		"rollback_performed": rolledBack,
	})
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		Status:            "REJECTED",
		Version:           version,
		Actor:             rejector,
		Reason:            reason,
		RollbackPerformed: rolledBack,
	}, nil
}

// #endregion decisions

// #region summary

// GetSummary reports the current governance state.
func (m *Manager) GetSummary() (Summary, error) {
	regSummary, err := m.registry.GetSummary()
	if err != nil {
		return Summary{}, fmt.Errorf("registry summary: %w", err)
	}
	current, err := m.registry.ActiveVersion()
	if err != nil {
		return Summary{}, fmt.Errorf("active version: %w", err)
	}

	recent, err := m.log.Recent(10)
	if err != nil {
		return Summary{}, fmt.Errorf("audit log: %w", err)
	}
	lastAction := "none"
	if len(recent) > 0 {
		lastAction = recent[0].Action
	}

	return Summary{
		CurrentModel:      current,
		TotalEvolutions:   regSummary.TotalVersions,
		RecentAuditEvents: len(recent),
		LastAuditAction:   lastAction,
		RegistryVersions:  regSummary.AllVersions,
	}, nil
}

// #endregion summary
