package handlers

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/apperr"
	"github.com/DustinOlsen/v01dworksAnalyticsAPI/internal/database"

	"github.com/gin-gonic/gin"
)

// AbortWithError renders err as {error, message} with the status mapped from
// its kind. Errors outside the taxonomy are reported as internal failures.
func AbortWithError(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.AbortWithStatusJSON(apperr.Status(err), gin.H{
			"error":   "internal-error",
			"message": "Internal server error",
		})
		return
	}
	c.AbortWithStatusJSON(apperr.Status(err), gin.H{
		"error":   ae.Code,
		"message": ae.Message,
	})
}

// siteID returns the site_id query parameter, "default" when absent.
func siteID(c *gin.Context) string {
	return c.DefaultQuery("site_id", database.DefaultTenant)
}

// bindOptionalJSON decodes the body into dest. An empty body leaves dest at
// its zero value.
func bindOptionalJSON(c *gin.Context, dest any) error {
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.KindValidation, apperr.CodeInvalidBody, "Request body must be a JSON object", err)
	}
	return nil
}

// intQuery parses an integer query parameter within [lo, hi].
func intQuery(c *gin.Context, name string, def, lo, hi int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < lo || val > hi {
		return 0, apperr.New(apperr.KindValidation, apperr.CodeInvalidParameter,
			fmt.Sprintf("%s must be an integer between %d and %d", name, lo, hi))
	}
	return val, nil
}
