package mapexport

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/views"
)

// LinkTTL is how long a map layer link stays valid.
const LinkTTL = 15 * time.Minute

type Handler struct {
	exporter *Exporter
	now      func() time.Time
}

func NewHandler(exporter *Exporter) *Handler {
	return &Handler{exporter: exporter, now: time.Now}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/exports/map", h.Link)
}

// Link answers with a presigned URL to the latest approved closures layer.
func (h *Handler) Link(c *gin.Context) {
	url, err := h.exporter.PresignedURL(c.Request.Context(), LinkTTL)
	if errors.Is(err, ErrNotConfigured) {
		c.AbortWithStatusJSON(http.StatusNotFound, views.AlertBody{Alert: views.WarningAlert("The map export is not configured")})
		return
	}
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        url,
		"expires_at": h.now().UTC().Add(LinkTTL),
	})
}
