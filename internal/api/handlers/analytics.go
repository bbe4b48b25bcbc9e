package handlers

import (
	"net/http"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/analytics"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
)

const (
	defaultForecastDays = 7
	maxForecastDays     = 365
)

// AnalyticsHandler serves the time-series reports. Reports that lack enough
// history are still answered with 200 and a descriptive payload.
type AnalyticsHandler struct {
	service *analytics.Service
	logger  *pterm.Logger
}

func NewAnalyticsHandler(service *analytics.Service, logger *pterm.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{service: service, logger: logger}
}

func (h *AnalyticsHandler) GetForecast(c *gin.Context) {
	days, err := intQuery(c, "days", defaultForecastDays, 1, maxForecastDays)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	report, err := h.service.Forecast(c.Request.Context(), siteID(c), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalyticsHandler) GetSummary(c *gin.Context) {
	report, err := h.service.Summary(c.Request.Context(), siteID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AnalyticsHandler) GetAnomalies(c *gin.Context) {
	report, err := h.service.Anomalies(c.Request.Context(), siteID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
