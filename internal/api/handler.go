// Package api exposes scan jobs over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ryder-call/a-share-platform-stocks-selection/internal/analysis/scoring"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/config"
	apperrors "github.com/ryder-call/a-share-platform-stocks-selection/internal/errors"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/models"
	"github.com/ryder-call/a-share-platform-stocks-selection/internal/scanner"
)

// JobService is the job manager as seen by the handlers.
type JobService interface {
	Submit(ctx context.Context, cfg config.ScanConfig, u scanner.Universe) (string, error)
	Get(ctx context.Context, id string) (scanner.JobSnapshot, error)
	List() []scanner.JobSnapshot
	Cancel(id string) error
}

// Classifier runs a scan on the request goroutine.
type Classifier interface {
	ClassifySync(ctx context.Context, cfg config.ScanConfig, u scanner.Universe) ([]scoring.Candidate, error)
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StartResponse acknowledges a submitted scan.
type StartResponse struct {
	TaskID  string `json:"task_id"`
	Message string `json:"message"`
}

// ScanRequest is a ScanConfig body plus the optional universe selection.
// Omitted config fields keep their defaults.
type ScanRequest struct {
	config.ScanConfig
	Codes     []string `json:"codes,omitempty"`
	StartDate string   `json:"start_date,omitempty"`
	EndDate   string   `json:"end_date,omitempty"`
}

// Handler serves the scan endpoints.
type Handler struct {
	jobs   JobService
	sync   Classifier
	logger zerolog.Logger
}

// NewHandler creates a Handler.
func NewHandler(jobs JobService, sync Classifier, logger zerolog.Logger) *Handler {
	return &Handler{jobs: jobs, sync: sync, logger: logger}
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	switch c.Request.Method {
	case http.MethodHead:
		c.Status(http.StatusOK)
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// StartScan submits an asynchronous scan.
//
// POST /api/scan/start
func (h *Handler) StartScan(c *gin.Context) {
	cfg, u, err := bindScanRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	id, err := h.jobs.Submit(c.Request.Context(), cfg, u)
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, StartResponse{TaskID: id, Message: "Scan task started"})
}

// ScanStatus returns a job snapshot.
//
// GET /api/scan/status/:task_id
func (h *Handler) ScanStatus(c *gin.Context) {
	snap, err := h.jobs.Get(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// CancelScan requests cancellation of a pending or running job.
//
// POST /api/scan/cancel/:task_id
func (h *Handler) CancelScan(c *gin.Context) {
	id := c.Param("task_id")
	if err := h.jobs.Cancel(id); err != nil {
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, StartResponse{TaskID: id, Message: "Cancellation requested"})
}

// ListScans returns the jobs held in memory, newest first.
//
// GET /api/scan/tasks
func (h *Handler) ListScans(c *gin.Context) {
	c.JSON(http.StatusOK, h.jobs.List())
}

// Scan runs a scan synchronously and returns the ranked candidates.
//
// POST /api/scan
func (h *Handler) Scan(c *gin.Context) {
	cfg, u, err := bindScanRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	out, err := h.sync.ClassifySync(c.Request.Context(), cfg, u)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Synchronous scan failed")
		c.JSON(statusFor(err), ErrorResponse{Error: err.Error()})
		return
	}
	h.logger.Info().
		Int("candidates", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("Synchronous scan finished")
	if out == nil {
		out = []scoring.Candidate{}
	}
	c.JSON(http.StatusOK, out)
}

// bindScanRequest decodes the body over the defaults. An empty body keeps
// every default.
func bindScanRequest(c *gin.Context) (config.ScanConfig, scanner.Universe, error) {
	req := ScanRequest{ScanConfig: config.DefaultScanConfig()}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return config.ScanConfig{}, scanner.Universe{}, fmt.Errorf("invalid request body: %w", err)
		}
	}

	u := scanner.Universe{}
	for _, code := range req.Codes {
		if code = strings.TrimSpace(code); code != "" {
			u.Codes = append(u.Codes, code)
		}
	}
	var err error
	if u.Start, err = parseDate("start_date", req.StartDate); err != nil {
		return config.ScanConfig{}, scanner.Universe{}, err
	}
	if u.End, err = parseDate("end_date", req.EndDate); err != nil {
		return config.ScanConfig{}, scanner.Universe{}, err
	}
	return req.ScanConfig, u, nil
}

func parseDate(field, s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return time.Time{}, apperrors.NewConfigError(field, s, "expected YYYY-MM-DD")
	}
	return t, nil
}

func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidConfig):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrJobNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrJobTerminal):
		return http.StatusConflict
	case apperrors.Is(err, apperrors.ErrUniverseUnavailable):
		return http.StatusBadGateway
	case apperrors.Is(err, apperrors.ErrCancelled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
