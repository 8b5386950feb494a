package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"britearchive/internal/ledger"
	"britearchive/internal/report"
	"britearchive/internal/run"
)

// ObservationReader looks up ingested Observations.
type ObservationReader interface {
	GetObservation(ctx context.Context, obsID string) (*ledger.Observation, error)
}

type runResponse struct {
	ID         string         `json:"id"`
	Status     run.Status     `json:"status"`
	CreatedAt  string         `json:"created_at"`
	FinishedAt string         `json:"finished_at,omitempty"`
	Summary    report.Summary `json:"summary"`
	Error      string         `json:"error,omitempty"`
	ReportURL  string         `json:"report_url,omitempty"`
}

type API struct {
	runManager   *run.Manager
	observations ObservationReader
}

func NewAPI(runManager *run.Manager, observations ObservationReader) *API {
	return &API{runManager: runManager, observations: observations}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.POST("/runs", a.StartRun)
		api.GET("/runs", a.ListRuns)
		api.GET("/runs/:id", a.GetRun)
		api.GET("/runs/:id/report", a.GetReport)
		api.GET("/observations/:id", a.GetObservation)
	}
}

// StartRun triggers an archive pass over the configured data sources
func (a *API) StartRun(c *gin.Context) {
	started, err := a.runManager.Start()
	if err != nil {
		if errors.Is(err, run.ErrBusy) {
			log.Warn().Msg("rejecting run: another run is in progress")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "server busy"})
			return
		}
		log.Error().Err(err).Msg("start run failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("run_id", started.ID).Msg("run accepted")
	c.JSON(http.StatusAccepted, toRunResponse(started))
}

func (a *API) ListRuns(c *gin.Context) {
	runs := a.runManager.List()
	out := make([]runResponse, 0, len(runs))
	for _, r := range runs {
		out = append(out, toRunResponse(r))
	}
	c.JSON(http.StatusOK, out)
}

func (a *API) GetRun(c *gin.Context) {
	id := c.Param("id")
	found, err := a.runManager.Get(id)
	if err != nil {
		log.Warn().Str("run_id", id).Msg("run not found on get")
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, toRunResponse(found))
}

// GetReport serves the textual run report once the run is done
func (a *API) GetReport(c *gin.Context) {
	id := c.Param("id")
	found, err := a.runManager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if found.Status != run.StatusDone || found.ReportPath == "" {
		log.Warn().Str("run_id", id).Str("status", string(found.Status)).Msg("report not ready")
		c.JSON(http.StatusBadRequest, gin.H{"error": "report not ready"})
		return
	}
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.File(found.ReportPath)
}

func (a *API) GetObservation(c *gin.Context) {
	id := c.Param("id")
	obs, err := a.observations.GetObservation(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrObservationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		log.Error().Str("obs_id", id).Err(err).Msg("get observation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	c.JSON(http.StatusOK, obs)
}

func toRunResponse(r *run.Run) runResponse {
	resp := runResponse{
		ID:        r.ID,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.UTC().Format(time.RFC3339),
		Summary:   r.Summary,
		Error:     r.Error,
	}
	if r.FinishedAt != nil {
		resp.FinishedAt = r.FinishedAt.UTC().Format(time.RFC3339)
	}
	if r.Status == run.StatusDone {
		resp.ReportURL = "/api/v1/runs/" + r.ID + "/report"
	}
	return resp
}
