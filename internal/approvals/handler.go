package approvals

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/approvals", h.Queue)
}

func (h *Handler) Queue(c *gin.Context) {
	view, err := h.service.Queue(c.Request.Context(), middleware.CurrentUser(c), Tab(c.Query("tab")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, view)
}
