package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/cll-genie-server/internal/domain"
	"github.com/cll-genie-server/internal/middleware"
	"github.com/cll-genie-server/internal/results"
	"github.com/cll-genie-server/internal/service"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Services are the workflows served over HTTP.
type Services struct {
	Samples  *service.SampleService
	Analysis *service.AnalysisService
	Reports  *service.ReportService
	Results  *results.Store
	// Ping checks the storage backend for /health.
	Ping func(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	services      *Services
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, services *Services, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if gin.Mode() != gin.TestMode {
		if cfg.Logging.Level == "debug" {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
	}

	router := gin.New()

	router.Use(middleware.CorrelationID())
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))

	server := &Server{
		configManager: configManager,
		services:      services,
		router:        router,
		logger:        logger,
	}

	server.setupRoutes(cfg.Auth)

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and shuts it down when ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("starting server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes(auth domain.AuthConfig) {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1", middleware.ActingUser(auth))
	super := middleware.RequireSuperUser()
	{
		v1.POST("/samples", s.handleRegisterSample)
		v1.GET("/samples", s.handleListSamples)
		v1.GET("/samples/:id", s.handleGetSample)
		v1.PUT("/samples/:id/eligibility", s.handleSetEligibility)
		v1.PUT("/samples/:id/report-status", s.handleSetReportStatus)
		v1.POST("/samples/:id/vquest", s.handleRunAnalysis)

		v1.GET("/samples/:id/submissions/:sub", s.handleGetSubmission)
		v1.DELETE("/samples/:id/submissions/:sub", super, s.handleDeleteSubmission)
		v1.GET("/samples/:id/submissions/:sub/artifacts/:kind", s.handleDownloadArtifact)
		v1.GET("/samples/:id/submissions/:sub/summary", s.handleSuggestSummary)
		v1.POST("/samples/:id/submissions/:sub/comments", s.handleAddComment)
		v1.PUT("/samples/:id/submissions/:sub/comments/:cid", super, s.handleHideComment)
		v1.POST("/samples/:id/submissions/:sub/reports", s.handleExportReport)

		v1.GET("/samples/:id/reports/:rid", s.handleViewReport)
		v1.PUT("/samples/:id/reports/:rid", super, s.handleHideReport)
		v1.DELETE("/samples/:id/reports/:rid", super, s.handleDeleteReport)
		v1.POST("/samples/:id/negative-report", s.handleCreateNegativeReport)
		v1.DELETE("/samples/:id/negative-report", super, s.handleDeleteNegativeReport)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	if s.services.Ping != nil {
		if err := s.services.Ping(c.Request.Context()); err != nil {
			s.logger.WithError(err).Warn("Health check failed")
			status, code = "unhealthy", http.StatusServiceUnavailable
		}
	}
	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
	})
}
