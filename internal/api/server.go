package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/krishitantra/seslm-controller/internal/drift"
	"github.com/krishitantra/seslm-controller/internal/evolution"
	"github.com/krishitantra/seslm-controller/internal/governance"
	"github.com/krishitantra/seslm-controller/internal/modelrt"
	"github.com/krishitantra/seslm-controller/internal/profile"
	"github.com/krishitantra/seslm-controller/internal/registry"
	"github.com/krishitantra/seslm-controller/internal/serving"
	"github.com/krishitantra/seslm-controller/internal/telemetry"
)

// #region server

// Server is the controller's HTTP surface.
type Server struct {
	router     *gin.Engine
	serving    *serving.Service
	runtime    *modelrt.Client
	telemetry  *telemetry.Store
	detector   *drift.Detector
	profiler   *profile.Profiler
	trigger    *evolution.Trigger
	registry   *registry.Store
	governance *governance.Manager
	logger     *zap.Logger
}

// NewServer wires the routes over the controller's components.
func NewServer(
	svc *serving.Service,
	runtime *modelrt.Client,
	store *telemetry.Store,
	detector *drift.Detector,
	profiler *profile.Profiler,
	trigger *evolution.Trigger,
	reg *registry.Store,
	gov *governance.Manager,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		router:     gin.New(),
		serving:    svc,
		runtime:    runtime,
		telemetry:  store,
		detector:   detector,
		profiler:   profiler,
		trigger:    trigger,
		registry:   reg,
		governance: gov,
		logger:     logger,
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/status", s.handleStatus)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.POST("/infer", s.handleInfer)
	s.router.GET("/drift", s.handleDrift)

	s.router.GET("/telemetry", s.handleTelemetry)
	s.router.GET("/telemetry/structural", s.handleStructural)

	s.router.POST("/profiler/run", s.handleProfilerRun)
	s.router.GET("/profiler/report", s.handleProfilerReport)
	s.router.GET("/analysis", s.handleAnalysis)

	s.router.POST("/evolve", s.handleEvolve)

	s.router.GET("/registry", s.handleRegistrySummary)
	s.router.GET("/registry/versions", s.handleRegistryList)
	s.router.GET("/registry/:version", s.handleRegistryGet)
	s.router.GET("/registry/:version/lineage", s.handleLineage)

	s.router.GET("/governance/audit", s.handleAudit)
	s.router.POST("/governance/rollback", s.handleRollback)
	s.router.POST("/governance/approve/:version", s.handleApprove)
	s.router.POST("/governance/reject/:version", s.handleReject)
}

// Run starts the HTTP listener, blocking until it fails.
func (s *Server) Run(addr string) error {
	s.logger.Info("api listening", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// #endregion server
