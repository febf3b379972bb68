package main

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/agromatch_backend/config"
	"github.com/mmdatafocus/agromatch_backend/matching"
	"github.com/mmdatafocus/agromatch_backend/middlewares"
	"github.com/mmdatafocus/agromatch_backend/utils"
	"github.com/sirupsen/logrus"
)

type matchAPI struct {
	orchestrator atomic.Pointer[matching.Orchestrator]
	logger       *logrus.Logger
}

func (api *matchAPI) setOrchestrator(o *matching.Orchestrator) {
	api.orchestrator.Store(o)
}

// engine returns the orchestrator or answers 503 while startup is still connecting.
func (api *matchAPI) engine(c *gin.Context) (*matching.Orchestrator, bool) {
	o := api.orchestrator.Load()
	if o == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service not ready"})
		return nil, false
	}
	return o, true
}

type scoreRequest struct {
	DemandVersionID int                    `json:"versao_demanda_id" binding:"required,gt=0"`
	ProducerID      int                    `json:"produtor_id" binding:"required,gt=0"`
	Context         *matching.MatchContext `json:"contexto"`
}

// matchSettingsFromEnv applies the MATCH_* overrides to the engine defaults.
func matchSettingsFromEnv() matching.Settings {
	s := matching.DefaultSettings()
	s.Filter.RadiusKm = config.FloatFromEnv("MATCH_FILTER_RADIUS_KM", s.Filter.RadiusKm)
	s.Filter.MaxOpenProposals = config.IntFromEnv("MATCH_MAX_OPEN_PROPOSALS", s.Filter.MaxOpenProposals)
	s.AlternativesLimit = config.IntFromEnv("MATCH_ALTERNATIVES_LIMIT", s.AlternativesLimit)
	s.RegionalBonus = config.RegionalBonusEnabled()
	return s
}

func registerMatchRoutes(r gin.IRouter, api *matchAPI) {
	g := r.Group("/match")
	g.POST("/score", api.score)
	g.POST("/execute/:versao_demanda_id", api.execute)
	g.GET("/executions/:id", api.getExecution)
	g.GET("/executions/:id/export", middlewares.LoaderMiddleware(), api.exportExecution)
}

func (api *matchAPI) score(c *gin.Context) {
	var req scoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "campos": utils.ProcessValidationErrors(err)})
		return
	}
	o, ok := api.engine(c)
	if !ok {
		return
	}
	res, err := o.ScoreProducer(c.Request.Context(), req.DemandVersionID, req.ProducerID, req.Context)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

func (api *matchAPI) execute(c *gin.Context) {
	demandVersionID, err := strconv.Atoi(c.Param("versao_demanda_id"))
	if err != nil || demandVersionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "versao_demanda_id must be a positive integer"})
		return
	}
	trigger := matching.Trigger(c.DefaultQuery("trigger", string(matching.TriggerManualAPI)))

	o, ok := api.engine(c)
	if !ok {
		return
	}
	res, err := o.Execute(c.Request.Context(), demandVersionID, trigger)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (api *matchAPI) getExecution(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id must be a positive integer"})
		return
	}
	o, ok := api.engine(c)
	if !ok {
		return
	}
	record, err := o.GetExecutionRecord(c.Request.Context(), id)
	if err != nil {
		api.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// writeError maps engine errors to status codes. Unknown errors are logged by
// customErrorLogger through c.Error.
func (api *matchAPI) writeError(c *gin.Context, err error) {
	var verr *matching.ValidationError
	var eerr *matching.ExecutionError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Error()}
		if len(verr.Fields) > 0 {
			body["campos"] = verr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &eerr):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": eerr.Err.Error(), "execucao_id": eerr.ExecutionID})
	case errors.Is(err, matching.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, matching.ErrExecutionInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
