package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mindroute-ai/mindroute/src/models"
	"github.com/mindroute-ai/mindroute/src/outcome"
	"github.com/mindroute-ai/mindroute/src/pipeline"
	"github.com/mindroute-ai/mindroute/src/policy"
)

type RouteHandler struct {
	pipeline *pipeline.Pipeline
	outcomes models.OutcomeStore
	policies *policy.Store
}

func NewRouteHandler(p *pipeline.Pipeline, outcomes models.OutcomeStore, policies *policy.Store) *RouteHandler {
	return &RouteHandler{
		pipeline: p,
		outcomes: outcomes,
		policies: policies,
	}
}

// HandleRoute is the single inbound call contract: message plus
// session context in, well-formed response out. The pipeline never
// errors toward the caller; degradation shows up only in the response
// fields.
func (h *RouteHandler) HandleRoute(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := h.pipeline.Route(c.Request.Context(), &req)
	c.JSON(http.StatusOK, resp)
}

// HandleFeedback ingests a {request id, rating} signal from the
// feedback collaborator and joins it onto the outcome log.
func (h *RouteHandler) HandleFeedback(c *gin.Context) {
	var fb models.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.outcomes.AttachFeedback(c.Request.Context(), fb.RequestID, fb.Rating); err != nil {
		if errors.Is(err, outcome.ErrUnknownRequest) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback ingestion failed"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// GetPolicy exposes the current snapshot read-only for dashboards.
func (h *RouteHandler) GetPolicy(c *gin.Context) {
	snap := h.policies.Current()
	c.JSON(http.StatusOK, gin.H{
		"version":                   snap.Version,
		"trivial_max":               snap.TrivialMax,
		"moderate_max":              snap.ModerateMax,
		"provider_ranking":          snap.ProviderRanking,
		"tier_ttls":                 snap.TierTTLs,
		"template_confidence_floor": snap.TemplateConfidenceFloor,
		"created_at":                snap.CreatedAt,
	})
}

func (h *RouteHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"tiers":     h.pipeline.Stats(),
		"policy":    h.policies.Current().Version,
		"timestamp": time.Now(),
	})
}
