package closures

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/views"
	"crossing-closures/closure-portal/pkg/workflows"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	closures := rg.Group("/closures")
	{
		closures.GET("", h.List)
		closures.POST("", h.Create)
		closures.GET("/new", h.NewForm)
		closures.GET("/:id", h.Get)
		closures.PUT("/:id", h.Update)
		closures.DELETE("/:id", h.Delete)
		closures.GET("/:id/edit", h.EditForm)
		closures.POST("/:id/comments", h.AddComment)

		closures.POST("/:id/send_for_approval", h.transition(workflows.ActionSendForApproval))
		closures.POST("/:id/approve_administration", h.transition(workflows.ActionApproveAdministration))
		closures.POST("/:id/approve_gibdd", h.transition(workflows.ActionApproveGibdd))
		closures.POST("/:id/reject", h.transition(workflows.ActionReject))
		closures.POST("/:id/sign", h.transition(workflows.ActionSign))
	}
}

func (h *Handler) List(c *gin.Context) {
	status := workflows.Status(c.Query("status"))

	view, err := h.service.ListClosures(c.Request.Context(), middleware.CurrentUser(c), status)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) Get(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	view, err := h.service.GetClosure(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) NewForm(c *gin.Context) {
	view, err := h.service.NewForm(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) EditForm(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	view, err := h.service.EditForm(c.Request.Context(), middleware.CurrentUser(c), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) Create(c *gin.Context) {
	var in FormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	view, err := h.service.CreateClosure(c.Request.Context(), middleware.CurrentUser(c), in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *Handler) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var in FormInput
	if err := c.ShouldBindJSON(&in); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	view, err := h.service.UpdateClosure(c.Request.Context(), middleware.CurrentUser(c), id, in)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) Delete(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}

	if err := h.service.DeleteClosure(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":       id,
		"deleted":  true,
		"redirect": "/closures",
		"alert":    views.SuccessAlert("Closure deleted"),
	})
}

func (h *Handler) AddComment(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}

	view, err := h.service.AddComment(c.Request.Context(), middleware.CurrentUser(c), id, req.Text)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

func (h *Handler) transition(action workflows.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramID(c)
		if !ok {
			return
		}

		view, err := h.service.Transition(c.Request.Context(), middleware.CurrentUser(c), id, action)
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.JSON(http.StatusOK, view)
	}
}

func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, views.AlertBody{Alert: views.ErrorAlert("invalid closure id")})
		return 0, false
	}
	return id, true
}
