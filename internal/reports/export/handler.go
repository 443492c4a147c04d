package export

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/exports/closures.xlsx", h.Workbook)
	rg.GET("/closures/:id/sheet.pdf", h.Sheet)
}

func (h *Handler) Workbook(c *gin.Context) {
	file, err := h.service.Workbook(c.Request.Context(), middleware.CurrentUser(c), workflows.Status(c.Query("status")))
	if err != nil {
		_ = c.Error(err)
		return
	}
	send(c, file)
}

func (h *Handler) Sheet(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, views.AlertBody{Alert: views.ErrorAlert("Invalid closure id")})
		return
	}
	file, err := h.service.Sheet(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	send(c, file)
}

func send(c *gin.Context, file *File) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
