package handlers

import (
	"net/http"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/identity"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/ingestion"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// TrackRequest is the body of POST /track.
type TrackRequest struct {
	Path   string `json:"path"`
	SiteID string `json:"site_id"`
}

// ClickRequest is the body of POST /click.
type ClickRequest struct {
	URL    string `json:"url"`
	SiteID string `json:"site_id"`
}

// TrackingHandler serves the ingestion endpoints.
type TrackingHandler struct {
	engine *ingestion.Engine
	logger *pterm.Logger
}

func NewTrackingHandler(engine *ingestion.Engine, logger *pterm.Logger) *TrackingHandler {
	return &TrackingHandler{engine: engine, logger: logger}
}

// Track records one page view.
func (h *TrackingHandler) Track(c *gin.Context) {
	var req TrackRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := h.engine.RecordVisit(c.Request.Context(), ingestion.Visit{
		Tenant: req.SiteID,
		Path:   req.Path,
		Request: identity.Request{
			ForwardedFor:  c.GetHeader("X-Forwarded-For"),
			SocketAddress: c.RemoteIP(),
			UserAgent:     c.GetHeader("User-Agent"),
			Referer:       c.GetHeader("Referer"),
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Click records one outbound link click.
func (h *TrackingHandler) Click(c *gin.Context) {
	var req ClickRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	if _, err := h.engine.RecordClick(c.Request.Context(), req.SiteID, req.URL); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "url": req.URL})
}
