package serving

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/krishitantra/seslm-controller/internal/drift"
	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

type fakeRuntime struct {
	err    error
	result modelrt.InferResult
}

func (f *fakeRuntime) Infer(context.Context, string) (modelrt.InferResult, error) {
	if f.err != nil {
		return modelrt.InferResult{}, f.err
	}
	return f.result, nil
}

type countingDispatcher struct {
	mu   sync.Mutex
	runs []string
}

func (c *countingDispatcher) RunAsync(triggeredBy string) {
	c.mu.Lock()
	c.runs = append(c.runs, triggeredBy)
	c.mu.Unlock()
}

func (c *countingDispatcher) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.runs)
}

func tempStore(t *testing.T) *telemetry.Store {
	t.Helper()
	s, err := telemetry.NewStore(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestHandleRecordsTelemetry(t *testing.T) {
	store := tempStore(t)
	runtime := &fakeRuntime{result: modelrt.InferResult{
		Output:       "hello",
		InputTokens:  3,
		OutputTokens: 5,
		HeadStats:    map[string]map[string]float64{"encoder.block.0": {"0": 1.5}},
	}}
	svc := NewService(runtime, store, drift.NewDetector(nil, drift.DefaultConfig()), nil, nil)

	resp, err := svc.Handle(context.Background(), "what is the capital of france")
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if resp.Output != "hello" || resp.RequestID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	summary, err := store.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalRequests != 1 {
		t.Fatalf("expected 1 recorded request, got %d", summary.TotalRequests)
	}
}

func TestHandleInferenceError(t *testing.T) {
	svc := NewService(
		&fakeRuntime{err: errors.New("runtime down")},
		tempStore(t),
		drift.NewDetector(nil, drift.DefaultConfig()),
		nil, nil,
	)
	if _, err := svc.Handle(context.Background(), "hi"); err == nil {
		t.Fatal("expected error from runtime failure")
	}
}

func TestDriftDispatchesEvolution(t *testing.T) {
	dispatcher := &countingDispatcher{}
	cfg := drift.DefaultConfig()
	cfg.Threshold = 0 // any nonzero score flags
	svc := NewService(
		&fakeRuntime{result: modelrt.InferResult{Output: "ok"}},
		tempStore(t),
		drift.NewDetector(nil, cfg),
		dispatcher, nil,
	)

	// First request seeds the window and cannot score against anything.
	if _, err := svc.Handle(context.Background(), "tell me about cooking pasta"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if dispatcher.count() != 0 {
		t.Fatal("first observation must not trigger")
	}

	// A vocabulary shift produces a nonzero score, crossing the threshold.
	if _, err := svc.Handle(context.Background(), "derivatives pricing under stochastic volatility"); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for dispatcher.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if dispatcher.count() != 1 {
		t.Fatalf("expected one dispatch, got %d", dispatcher.count())
	}
	if dispatcher.runs[0] != "drift_detection" {
		t.Fatalf("expected drift_detection trigger, got %q", dispatcher.runs[0])
	}
}
