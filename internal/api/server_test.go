package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/krishitantra/seslm-controller/internal/analyzer"
	"github.com/krishitantra/seslm-controller/internal/drift"
	"github.com/krishitantra/seslm-controller/internal/evolution"
	"github.com/krishitantra/seslm-controller/internal/governance"
	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/profile"
	"github.com/krishitantra/seslm-controller/internal/registry"
	"github.com/krishitantra/seslm-controller/internal/rollback"
	"github.com/krishitantra/seslm-controller/internal/serving"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

// stubRuntime fakes the inference runtime's HTTP surface.
func stubRuntime(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/infer", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelrt.InferResult{
			Output:       "a response",
			InputTokens:  4,
			OutputTokens: 8,
			HeadStats: map[string]map[string]float64{
				"encoder.block.0": {"0": 12.5, "1": 0.2},
			},
			LayerSparsity: map[string]float64{"ffn.layer.0": 0.4},
		})
	})
	mux.HandleFunc("/v1/embed", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string][]float64{"embedding": {0.1, 0.2, 0.3}})
	})
	mux.HandleFunc("/v1/recompile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"version_id": "v2",
			"diff": modelrt.ArchitectureDiff{
				VersionID:        "v2",
				Optimizations:    []string{"head_pruning"},
				ReductionPercent: 11.2,
			},
		})
	})
	mux.HandleFunc("/v1/validate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(modelrt.ValidationReport{
			Status:          modelrt.ValidationPass,
			SimilarityScore: 0.95,
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newTestServer wires the whole controller over a temp database and a stub
// runtime.
func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	store, err := telemetry.NewStore(filepath.Join(dir, "seslm.db"))
	if err != nil {
		t.Fatalf("telemetry store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg, err := registry.NewStoreWithDB(store.DB())
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	auditLog, err := governance.NewLogWithDB(store.DB())
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}

	runtime := modelrt.NewClient(stubRuntime(t).URL, 5*time.Second)
	detector := drift.NewDetector(runtime, drift.DefaultConfig())
	anlz := analyzer.NewAnalyzer(analyzer.DefaultConfig())
	profiler := profile.NewProfiler(store, anlz, nil)
	backup := rollback.NewManager(filepath.Join(dir, "models"), reg, nil)

	orch := evolution.NewOrchestrator(profiler, runtime, reg, backup, auditLog, evolution.DefaultConfig(), nil)
	trigger := evolution.NewTrigger(orch, auditLog, 0, nil)

	svc := serving.NewService(runtime, store, detector, trigger, nil)
	gov := governance.NewManager(auditLog, reg, backup, nil)

	return NewServer(svc, runtime, store, detector, profiler, trigger, reg, gov, nil)
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInferRecordsAndResponds(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/infer", `{"text":"what is drift"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp serving.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Output != "a response" || resp.InputTokens != 4 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	tw := do(t, s, http.MethodGet, "/telemetry", "")
	if tw.Code != http.StatusOK || !strings.Contains(tw.Body.String(), `"total_requests":1`) {
		t.Fatalf("telemetry not recorded: %d %s", tw.Code, tw.Body.String())
	}
}

func TestInferRejectsMissingText(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/infer", `{}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestProfilerAndAnalysis(t *testing.T) {
	s := newTestServer(t)

	if w := do(t, s, http.MethodGet, "/profiler/report", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first run, got %d", w.Code)
	}

	do(t, s, http.MethodPost, "/infer", `{"text":"seed telemetry"}`)
	if w := do(t, s, http.MethodPost, "/profiler/run", ""); w.Code != http.StatusOK {
		t.Fatalf("profiler run failed: %d %s", w.Code, w.Body.String())
	}
	if w := do(t, s, http.MethodGet, "/analysis", ""); w.Code != http.StatusOK {
		t.Fatalf("analysis failed: %d %s", w.Code, w.Body.String())
	}
}

func TestEvolveEndToEnd(t *testing.T) {
	s := newTestServer(t)

	// No usage report yet: the cycle is skipped, not failed.
	w := do(t, s, http.MethodPost, "/evolve", `{"triggered_by":"test"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), evolution.StatusSkipped) {
		t.Fatalf("expected SKIPPED, got %d %s", w.Code, w.Body.String())
	}

	do(t, s, http.MethodPost, "/infer", `{"text":"seed telemetry"}`)
	do(t, s, http.MethodPost, "/profiler/run", "")

	w = do(t, s, http.MethodPost, "/evolve", `{"triggered_by":"test"}`)
	var result evolution.CycleResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Status != evolution.StatusApproved || result.NewVersion != "v2" {
		t.Fatalf("expected APPROVED v2, got %+v", result)
	}

	// The new version is active and its lineage reaches the root.
	sw := do(t, s, http.MethodGet, "/status", "")
	if !strings.Contains(sw.Body.String(), `"active_version":"v2"`) {
		t.Fatalf("expected v2 active: %s", sw.Body.String())
	}
	lw := do(t, s, http.MethodGet, "/registry/v2/lineage", "")
	if lw.Code != http.StatusOK || !strings.Contains(lw.Body.String(), registry.RootVersion) {
		t.Fatalf("lineage failed: %d %s", lw.Code, lw.Body.String())
	}
}

func TestRegistryUnknownVersion(t *testing.T) {
	s := newTestServer(t)
	if w := do(t, s, http.MethodGet, "/registry/ghost", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGovernanceRollbackAfterCycle(t *testing.T) {
	s := newTestServer(t)

	do(t, s, http.MethodPost, "/infer", `{"text":"seed telemetry"}`)
	do(t, s, http.MethodPost, "/profiler/run", "")
	do(t, s, http.MethodPost, "/evolve", `{"triggered_by":"test"}`)

	w := do(t, s, http.MethodPost, "/governance/rollback", `{"reason":"quality regression"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"rolled_back_to":"backup"`) {
		t.Fatalf("rollback failed: %d %s", w.Code, w.Body.String())
	}

	aw := do(t, s, http.MethodGet, "/governance/audit", "")
	if aw.Code != http.StatusOK || !strings.Contains(aw.Body.String(), "rollback_to_backup") {
		t.Fatalf("rollback not audited: %d %s", aw.Code, aw.Body.String())
	}
}

func TestGovernanceRollbackWithoutBackupFails(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/governance/rollback", `{"reason":"nothing happened yet"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 with empty backup slot, got %d %s", w.Code, w.Body.String())
	}
}
