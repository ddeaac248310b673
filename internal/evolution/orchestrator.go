package evolution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/observability"
	"github.com/krishitantra/seslm-controller/internal/profile"
)

// #region collaborators

// ReportSource supplies the latest usage report. The profiler satisfies this.
type ReportSource interface {
	Latest() (*profile.UsageReport, bool)
}

// Optimizer recompiles and validates candidate versions. The runtime client
// satisfies this.
type Optimizer interface {
	Recompile(ctx context.Context, pruneBlocks []string) (modelrt.ArchitectureDiff, string, error)
	Validate(ctx context.Context, versionID string) (modelrt.ValidationReport, error)
}

// Registry is the slice of the version registry the orchestrator commits
// through.
type Registry interface {
	Register(versionID string, diff modelrt.ArchitectureDiff, validation modelrt.ValidationReport) error
	SetActive(versionID string) error
}

// BackupManager snapshots and restores the active artifact around a cycle.
type BackupManager interface {
	Backup() error
	Restore() error
}

// AuditSink records governance events. Decisions are audited before the
// mutation they authorize.
type AuditSink interface {
	Record(action, version, status, triggeredBy string, details map[string]interface{}) error
}

// #endregion collaborators

// #region orchestrator

// Orchestrator drives one evolution cycle through its state machine:
//
//	IDLE → COLLECTING → GENERATING → EVALUATING → BACKING_UP →
//	RECOMPILING → VALIDATING → {COMMITTING | ROLLING_BACK} → IDLE
//
// Any failure after BACKING_UP restores the backup before surfacing: either
// the new version is fully registered and active, or the previous state is
// fully restored.
type Orchestrator struct {
	reports   ReportSource
	evaluator *Evaluator
	optimizer Optimizer
	registry  Registry
	backup    BackupManager
	audit     AuditSink
	logger    *zap.Logger
	config    Config
}

// NewOrchestrator wires a cycle driver over its collaborators.
func NewOrchestrator(
	reports ReportSource,
	optimizer Optimizer,
	registry Registry,
	backup BackupManager,
	audit AuditSink,
	config Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		reports:   reports,
		evaluator: NewEvaluator(config),
		optimizer: optimizer,
		registry:  registry,
		backup:    backup,
		audit:     audit,
		logger:    logger,
		config:    config,
	}
}

// #endregion orchestrator

// #region cycle

// cycle carries the intermediates of one run through the state machine.
type cycle struct {
	state       State
	triggeredBy string
	report      *profile.UsageReport
	plans       []PruningPlan
	evaluated   []CandidateScore
	best        CandidateScore
	diff        modelrt.ArchitectureDiff
	versionID   string
	validation  modelrt.ValidationReport
	backedUp    bool
}

// RunCycle executes one full cycle attempt and returns its outcome. The
// caller is responsible for single-flight and cooldown enforcement.
func (o *Orchestrator) RunCycle(ctx context.Context, triggeredBy string) CycleResult {
	c := &cycle{state: StateCollecting, triggeredBy: triggeredBy}
	result := CycleResult{StartedAt: time.Now().UTC()}

	for {
		var done *CycleResult
		switch c.state {
		case StateCollecting:
			done = o.collect(c)
		case StateGenerating:
			done = o.generate(c)
		case StateEvaluating:
			done = o.evaluate(c)
		case StateBackingUp:
			done = o.backUp(c)
		case StateRecompiling:
			done = o.recompile(ctx, c)
		case StateValidating:
			done = o.validate(ctx, c)
		case StateCommitting:
			done = o.commit(c)
		default:
			done = o.fail(c, fmt.Errorf("unexpected state %s", c.state))
		}
		if done != nil {
			done.StartedAt = result.StartedAt
			done.FinishedAt = time.Now().UTC()
			observability.EvolutionCycles.WithLabelValues(done.Status).Inc()
			o.logger.Info("evolution cycle finished",
				zap.String("status", done.Status),
				zap.String("final_state", string(done.FinalState)),
				zap.String("triggered_by", triggeredBy),
			)
			return *done
		}
	}
}

func (o *Orchestrator) collect(c *cycle) *CycleResult {
	report, ok := o.reports.Latest()
	if !ok {
		// Nothing to act on is not an error.
		o.recordAudit("evolution_cycle", "", StatusSkipped, c.triggeredBy, map[string]interface{}{
			"reason": "no usage report available",
		})
		return &CycleResult{
			Status:     StatusSkipped,
			Reason:     "no usage report available; run the profiler first",
			FinalState: StateIdle,
		}
	}
	c.report = report
	c.state = StateGenerating
	return nil
}

func (o *Orchestrator) generate(c *cycle) *CycleResult {
	c.plans = GenerateCandidates(c.report.Structural.PrunableBlocks, o.config.MaxSubsetSize)
	c.state = StateEvaluating
	return nil
}

func (o *Orchestrator) evaluate(c *cycle) *CycleResult {
	c.evaluated = o.evaluator.EvaluateAll(c.plans, c.report.BlockImportance)
	best, ok := SelectBest(c.evaluated)
	if !ok {
		return &CycleResult{
			Status:     StatusSkipped,
			Reason:     "no candidates produced",
			FinalState: StateIdle,
		}
	}
	c.best = best

	// Audit the decision before any mutating action.
	o.recordAudit("evolution_candidate_selected", "", "LOGGED", c.triggeredBy, map[string]interface{}{
		"candidates_evaluated": len(c.evaluated),
		"selected_score":       best.Score,
		"selected_risk":        best.Risk,
		"prune_blocks":         best.Plan.PruneBlocks,
	})

	c.state = StateBackingUp
	return nil
}

func (o *Orchestrator) backUp(c *cycle) *CycleResult {
	// Backup failure aborts before any mutation is attempted.
	if err := o.backup.Backup(); err != nil {
		o.recordAudit("evolution_cycle", "", StatusError, c.triggeredBy, map[string]interface{}{
			"stage": string(StateBackingUp),
			"error": err.Error(),
		})
		return &CycleResult{
			Status:     StatusError,
			Reason:     fmt.Sprintf("backup failed: %v", err),
			FinalState: StateError,
			Selected:   &c.best,
			Candidates: len(c.evaluated),
		}
	}
	c.backedUp = true
	c.state = StateRecompiling
	return nil
}

func (o *Orchestrator) recompile(ctx context.Context, c *cycle) *CycleResult {
	diff, versionID, err := o.optimizer.Recompile(ctx, c.best.Plan.PruneBlocks)
	if err != nil {
		return o.fail(c, fmt.Errorf("recompile: %w", err))
	}
	c.diff = diff
	c.versionID = versionID
	c.state = StateValidating
	return nil
}

func (o *Orchestrator) validate(ctx context.Context, c *cycle) *CycleResult {
	report, err := o.optimizer.Validate(ctx, c.versionID)
	if err != nil {
		return o.fail(c, fmt.Errorf("validate: %w", err))
	}
	c.validation = report

	if !report.Passed() {
		// Validation gate: restore and reject, never commit.
		c.state = StateRollingBack
		if err := o.backup.Restore(); err != nil {
			c.backedUp = false // already attempted, do not retry in fail
			return o.fail(c, fmt.Errorf("restore after validation failure: %w", err))
		}
		o.recordAudit("evolution_rejected", c.versionID, StatusRejected, c.triggeredBy, map[string]interface{}{
			"reason":           report.Reason,
			"similarity_score": report.SimilarityScore,
		})
		return &CycleResult{
			Status:     StatusRejected,
			Reason:     "validation failed; rolled back to previous model",
			FinalState: StateIdle,
			Selected:   &c.best,
			Candidates: len(c.evaluated),
			Diff:       &c.diff,
			Validation: &c.validation,
		}
	}

	c.state = StateCommitting
	return nil
}

func (o *Orchestrator) commit(c *cycle) *CycleResult {
	if err := o.registry.Register(c.versionID, c.diff, c.validation); err != nil {
		return o.fail(c, fmt.Errorf("register version: %w", err))
	}
	if err := o.registry.SetActive(c.versionID); err != nil {
		return o.fail(c, fmt.Errorf("activate version: %w", err))
	}
	observability.RegisteredVersions.Inc()
	o.recordAudit("evolution_approved", c.versionID, StatusApproved, c.triggeredBy, map[string]interface{}{
		"reduction_percent": c.diff.ReductionPercent,
		"similarity_score":  c.validation.SimilarityScore,
	})
	return &CycleResult{
		Status:     StatusApproved,
		FinalState: StateIdle,
		Selected:   &c.best,
		Candidates: len(c.evaluated),
		Diff:       &c.diff,
		Validation: &c.validation,
		NewVersion: c.versionID,
	}
}

// fail compensates and reports a cycle-level failure. If a backup was taken,
// it is restored before the error surfaces; restore failures are logged but
// do not mask the original error.
func (o *Orchestrator) fail(c *cycle, err error) *CycleResult {
	if c.backedUp {
		if restoreErr := o.backup.Restore(); restoreErr != nil {
			o.logger.Error("restore after cycle failure",
				zap.Error(restoreErr),
				zap.NamedError("cycle_error", err),
			)
		}
	}
	o.recordAudit("evolution_cycle", c.versionID, StatusError, c.triggeredBy, map[string]interface{}{
		"stage": string(c.state),
		"error": err.Error(),
	})
	return &CycleResult{
		Status:     StatusError,
		Reason:     err.Error(),
		FinalState: StateError,
	}
}

// recordAudit writes a governance event; audit failures are logged, never
// allowed to abort a cycle.
func (o *Orchestrator) recordAudit(action, version, status, triggeredBy string, details map[string]interface{}) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Record(action, version, status, triggeredBy, details); err != nil {
		o.logger.Warn("audit write failed", zap.String("action", action), zap.Error(err))
	}
}

// #endregion cycle
