package handlers

import (
	"net/http"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/auth"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

// RegisterKeyRequest is the body of POST /register-key.
type RegisterKeyRequest struct {
	SiteID       string `json:"site_id"`
	PublicKeyHex string `json:"public_key_hex"`
}

// SitesHandler lists tenants and registers their signing keys.
type SitesHandler struct {
	registry *database.Registry
	gate     *auth.Gate
	logger   *pterm.Logger
}

func NewSitesHandler(registry *database.Registry, gate *auth.Gate, logger *pterm.Logger) *SitesHandler {
	return &SitesHandler{registry: registry, gate: gate, logger: logger}
}

// ListSites returns every tenant with a store.
func (h *SitesHandler) ListSites(c *gin.Context) {
	sites, err := h.registry.List()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sites": sites})
}

// RegisterKey gates a tenant. A second registration for the same tenant is
// rejected.
func (h *SitesHandler) RegisterKey(c *gin.Context) {
	var req RegisterKeyRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	if err := h.gate.RegisterKey(req.SiteID, req.PublicKeyHex); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"site_id": database.Sanitize(req.SiteID),
		"message": "Public key registered; stats endpoints for this site now require signed requests",
	})
}
