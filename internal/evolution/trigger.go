package evolution

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// #region trigger

// CycleRunner is what the trigger dispatches to. The orchestrator satisfies
// this.
type CycleRunner interface {
	RunCycle(ctx context.Context, triggeredBy string) CycleResult
}

// Trigger guards cycle dispatch: at most one cycle in flight, and attempts
// within the cooldown of the last cycle start are dropped, not queued. The
// mutex covers only the trigger decision, never the cycle body.
type Trigger struct {
	runner   CycleRunner
	audit    AuditSink
	logger   *zap.Logger
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	running   bool
	lastStart time.Time
	lastCycle *CycleResult
}

// NewTrigger creates a trigger with the given cooldown.
func NewTrigger(runner CycleRunner, audit AuditSink, cooldown time.Duration, logger *zap.Logger) *Trigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trigger{
		runner:   runner,
		audit:    audit,
		logger:   logger,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// #endregion trigger

// #region run

// tryAcquire makes the trigger decision under the lock: false means the
// attempt is dropped (cooldown active or a cycle already in flight).
func (t *Trigger) tryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if t.running {
		return false
	}
	if !t.lastStart.IsZero() && now.Sub(t.lastStart) < t.cooldown {
		return false
	}
	t.running = true
	t.lastStart = now
	return true
}

func (t *Trigger) release(result CycleResult) {
	t.mu.Lock()
	t.running = false
	t.lastCycle = &result
	t.mu.Unlock()
}

// Run executes a full cycle attempt synchronously. A dropped attempt returns
// a SKIPPED result and is audited; it is never queued for later.
func (t *Trigger) Run(ctx context.Context, triggeredBy string) CycleResult {
	if !t.tryAcquire() {
		t.logger.Info("evolution trigger dropped",
			zap.String("triggered_by", triggeredBy),
			zap.Duration("cooldown", t.cooldown),
		)
		if t.audit != nil {
			_ = t.audit.Record("evolution_trigger_dropped", "", StatusSkipped, triggeredBy, map[string]interface{}{
				"cooldown_seconds": t.cooldown.Seconds(),
			})
		}
		return CycleResult{
			Status:     StatusSkipped,
			Reason:     "cooldown active or cycle already running",
			FinalState: StateIdle,
		}
	}

	result := t.runner.RunCycle(ctx, triggeredBy)
	t.release(result)
	return result
}

// RunAsync dispatches a cycle attempt in the background, fire-and-forget.
// The serving path uses this so a drift-triggered cycle never affects the
// triggering request's latency.
func (t *Trigger) RunAsync(triggeredBy string) {
	go func() {
		t.Run(context.Background(), triggeredBy)
	}()
}

// LastCycle returns the most recent completed cycle outcome, if any.
func (t *Trigger) LastCycle() (CycleResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastCycle == nil {
		return CycleResult{}, false
	}
	return *t.lastCycle, true
}

// #endregion run
