package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"catalog-ingest/internal/models"
	"catalog-ingest/internal/service"
	"catalog-ingest/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// IngestionController is the control surface of the orchestrator
type IngestionController interface {
	Start(ctx context.Context, opts service.StartOptions) (*models.IngestionRun, error)
	Stop(ctx context.Context) error
	Status() service.Status
	Logs(ctx context.Context, limit int) ([]models.IngestionRun, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	ingestion   IngestionController
	db          Pinger
	adminSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(ingestion IngestionController, db Pinger, adminSecret string) *Handler {
	return &Handler{
		ingestion:   ingestion,
		db:          db,
		adminSecret: adminSecret,
	}
}

// StartRequest is the optional body of a start request
type StartRequest struct {
	Categories []string `json:"categories" binding:"omitempty,dive,required"`
}

// LogsQuery binds the logs query string. Limits above the maximum are clamped.
type LogsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin := router.Group("/api/v1/admin", adminAuth(h.adminSecret))
	{
		admin.POST("/parser/start", h.startParser)
		admin.GET("/parser/status", h.parserStatus)
		admin.POST("/parser/stop", h.stopParser)
		admin.GET("/parser/logs", h.parserLogs)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck reports ready once the database answers
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) startParser(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request body",
				"details": err.Error(),
			})
			return
		}
	}

	run, err := h.ingestion.Start(c.Request.Context(), service.StartOptions{Categories: req.Categories})
	switch {
	case errors.Is(err, service.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Parser is already running"})
		return
	case errors.Is(err, service.ErrUnknownCategory):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown category", "details": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to start parser",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Parser started",
		"runId":   run.ID,
	})
}

func (h *Handler) parserStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.ingestion.Status())
}

func (h *Handler) stopParser(c *gin.Context) {
	if err := h.ingestion.Stop(c.Request.Context()); err != nil {
		if errors.Is(err, service.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": "Parser is not running"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to stop parser", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Parser stopped"})
}

func (h *Handler) parserLogs(c *gin.Context) {
	var q LogsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid limit",
			"details": err.Error(),
		})
		return
	}

	runs, err := h.ingestion.Logs(c.Request.Context(), q.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load parser logs",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": runs})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).
			Observe(time.Since(start).Seconds())
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
