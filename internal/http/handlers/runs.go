package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/segbridge/internal/data/repos/runs"
	"github.com/yungbote/segbridge/internal/evaluation"
	"github.com/yungbote/segbridge/internal/http/response"
	pkgerrors "github.com/yungbote/segbridge/internal/pkg/errors"
	"github.com/yungbote/segbridge/internal/platform/artifacts"
	"github.com/yungbote/segbridge/internal/platform/logger"
)

type RunsHandler struct {
	log     *logger.Logger
	svc     evaluation.Service
	runRepo runs.RunRepo
	results runs.ResultRepo
	store   artifacts.Store
}

func NewRunsHandler(
	log *logger.Logger,
	svc evaluation.Service,
	runRepo runs.RunRepo,
	results runs.ResultRepo,
	store artifacts.Store,
) *RunsHandler {
	return &RunsHandler{
		log:     log.With("handler", "RunsHandler"),
		svc:     svc,
		runRepo: runRepo,
		results: results,
		store:   store,
	}
}

type createRunRequest struct {
	Name        string    `json:"name,omitempty"`
	Method      string    `json:"method,omitempty"`
	ManifestKey string    `json:"manifest_key"`
	Weights     []float64 `json:"weights,omitempty"`
}

// POST /v1/runs
func (h *RunsHandler) Create(c *gin.Context) {
	var req createRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	run, err := h.svc.StartRun(c.Request.Context(), evaluation.RunRequest{
		Name:        req.Name,
		Method:      req.Method,
		ManifestKey: req.ManifestKey,
		Weights:     req.Weights,
	})
	if err != nil {
		if errors.Is(err, pkgerrors.ErrInvalidArgument) {
			response.RespondError(c, http.StatusBadRequest, "invalid_run_request", err)
			return
		}
		h.log.Error("StartRun failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "start_run_failed", err)
		return
	}
	// The run executes in the background; the record is what we have now.
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /v1/runs
func (h *RunsHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)
	rows, err := h.runRepo.List(c.Request.Context(), nil, limit, offset)
	if err != nil {
		h.log.Error("List runs failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "list_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": rows})
}

// GET /v1/runs/:id
func (h *RunsHandler) Get(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, err := h.runRepo.GetByID(c.Request.Context(), nil, runID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "run_not_found", err)
			return
		}
		h.log.Error("Get run failed", "error", err, "run_id", runID)
		response.RespondError(c, http.StatusInternalServerError, "load_run_failed", err)
		return
	}
	members, err := h.runRepo.GetMembers(c.Request.Context(), nil, runID)
	if err != nil {
		h.log.Error("Get run members failed", "error", err, "run_id", runID)
		response.RespondError(c, http.StatusInternalServerError, "load_run_members_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run": run, "members": members})
}

// GET /v1/runs/:id/results
func (h *RunsHandler) Results(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	if _, err := h.runRepo.GetByID(c.Request.Context(), nil, runID); err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "run_not_found", err)
			return
		}
		h.log.Error("Get run failed", "error", err, "run_id", runID)
		response.RespondError(c, http.StatusInternalServerError, "load_run_failed", err)
		return
	}
	rows, err := h.results.GetByRunID(c.Request.Context(), nil, runID)
	if err != nil {
		h.log.Error("Get run results failed", "error", err, "run_id", runID)
		response.RespondError(c, http.StatusInternalServerError, "load_results_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run_id": runID, "results": rows})
}

// GET /v1/runs/:id/results/:sample/preview
func (h *RunsHandler) Preview(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	sampleID := c.Param("sample")
	result, err := h.results.GetBySample(c.Request.Context(), nil, runID, sampleID)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "result_not_found", err)
			return
		}
		h.log.Error("Get sample result failed", "error", err, "run_id", runID, "sample_id", sampleID)
		response.RespondError(c, http.StatusInternalServerError, "load_result_failed", err)
		return
	}
	if result.PreviewKey == "" {
		response.RespondError(c, http.StatusNotFound, "preview_not_available",
			fmt.Errorf("no preview rendered for sample %q", sampleID))
		return
	}
	rc, err := h.store.Get(c.Request.Context(), result.PreviewKey)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "preview_not_found", err)
			return
		}
		h.log.Error("Load preview failed", "error", err, "run_id", runID, "sample_id", sampleID)
		response.RespondError(c, http.StatusInternalServerError, "load_preview_failed", err)
		return
	}
	defer rc.Close()
	png, err := io.ReadAll(rc)
	if err != nil {
		h.log.Error("Read preview failed", "error", err, "run_id", runID, "sample_id", sampleID)
		response.RespondError(c, http.StatusInternalServerError, "load_preview_failed", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
