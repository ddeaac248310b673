package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/registry"
)

// #region requests

type inferRequest struct {
	Text string `json:"text" binding:"required"`
}

type evolveRequest struct {
	TriggeredBy string `json:"triggered_by"`
}

type rollbackRequest struct {
	TargetVersion string `json:"target_version"`
	Reason        string `json:"reason"`
}

type approveRequest struct {
	Approver string `json:"approver"`
}

type rejectRequest struct {
	Reason   string `json:"reason"`
	Rejector string `json:"rejector"`
}

// #endregion requests

// #region serving-handlers

func (s *Server) handleInfer(c *gin.Context) {
	var req inferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.serving.Handle(c.Request.Context(), req.Text)
	if err != nil {
		s.logger.Error("inference failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	runtimeStatus := "ok"
	if err := s.runtime.Health(c.Request.Context()); err != nil {
		status = "degraded"
		runtimeStatus = err.Error()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"runtime": runtimeStatus,
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	active, err := s.registry.ActiveVersion()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summary, err := s.registry.GetSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"active_version": active,
		"total_versions": summary.TotalVersions,
		"drift_window":   s.detector.Status(),
	}
	if last, ok := s.trigger.LastCycle(); ok {
		resp["last_cycle_outcome"] = last.Status
		resp["last_cycle_finished_at"] = last.FinishedAt
	} else {
		resp["last_cycle_outcome"] = "none"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDrift(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	history, err := s.telemetry.DriftHistory(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"window":  s.detector.Status(),
		"history": history,
	})
}

// #endregion serving-handlers

// #region telemetry-handlers

func (s *Server) handleTelemetry(c *gin.Context) {
	summary, err := s.telemetry.Summary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	recent, err := s.telemetry.Recent(intQuery(c, "limit", 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "recent": recent})
}

func (s *Server) handleStructural(c *gin.Context) {
	heads, err := s.telemetry.AggregatedHeadStats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sparsity, err := s.telemetry.AggregatedLayerSparsity()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"head_stats":     heads,
		"layer_sparsity": sparsity,
	})
}

// #endregion telemetry-handlers

// #region profiler-handlers

func (s *Server) handleProfilerRun(c *gin.Context) {
	report, err := s.profiler.GenerateReport()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleProfilerReport(c *gin.Context) {
	report, ok := s.profiler.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no usage report yet; run the profiler first"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleAnalysis(c *gin.Context) {
	report, ok := s.profiler.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no usage report yet; run the profiler first"})
		return
	}
	c.JSON(http.StatusOK, report.Structural)
}

// #endregion profiler-handlers

// #region evolution-handlers

func (s *Server) handleEvolve(c *gin.Context) {
	var req evolveRequest
	_ = c.ShouldBindJSON(&req)
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	result := s.trigger.Run(c.Request.Context(), req.TriggeredBy)
	c.JSON(http.StatusOK, result)
}

// #endregion evolution-handlers

// #region registry-handlers

func (s *Server) handleRegistrySummary(c *gin.Context) {
	summary, err := s.registry.GetSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleRegistryList(c *gin.Context) {
	entries, err := s.registry.List(intQuery(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": entries})
}

func (s *Server) handleRegistryGet(c *gin.Context) {
	entry, err := s.registry.Get(c.Param("version"))
	if errors.Is(err, registry.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleLineage(c *gin.Context) {
	version := c.Param("version")
	chain, err := s.registry.Lineage(version)
	if errors.Is(err, registry.ErrNotFound) || errors.Is(err, registry.ErrDanglingParent) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		// Cycle errors are integrity failures, surfaced as 500s.
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version, "lineage": chain})
}

// #endregion registry-handlers

// #region governance-handlers

func (s *Server) handleAudit(c *gin.Context) {
	summary, err := s.governance.GetSummary()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	events, err := s.governance.AuditLog(intQuery(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": summary, "audit_log": events})
}

func (s *Server) handleRollback(c *gin.Context) {
	var req rollbackRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual rollback"
	}

	result := s.governance.PerformRollback(req.TargetVersion, req.Reason)
	if result.Status != "OK" {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleApprove(c *gin.Context) {
	var req approveRequest
	_ = c.ShouldBindJSON(&req)

	decision, err := s.governance.Approve(c.Param("version"), req.Approver)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

func (s *Server) handleReject(c *gin.Context) {
	var req rejectRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual rejection"
	}

	decision, err := s.governance.Reject(c.Param("version"), req.Reason, req.Rejector)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// #endregion governance-handlers

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
