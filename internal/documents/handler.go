package documents

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"crossing-closures/closure-portal/internal/middleware"
	"crossing-closures/closure-portal/internal/views"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/closures/:id/documents")
	{
		docs.GET("", h.List)
		docs.POST("", h.Upload)
		docs.DELETE("/:docId", h.Delete)
		docs.GET("/:docId/file", h.Download)
	}
}

func (h *Handler) List(c *gin.Context) {
	closureID, ok := paramID(c, "id")
	if !ok {
		return
	}

	view, err := h.service.ListDocuments(c.Request.Context(), middleware.CurrentUser(c).Actor(), closureID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) Upload(c *gin.Context) {
	closureID, ok := paramID(c, "id")
	if !ok {
		return
	}

	req := UploadRequest{
		ClosureID:    closureID,
		Title:        c.PostForm("title"),
		DocumentType: DocumentType(c.PostForm("document_type")),
	}

	file, err := c.FormFile("file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		_ = c.Error(err).SetType(gin.ErrorTypeBind)
		return
	}
	if file != nil {
		f, err := file.Open()
		if err != nil {
			_ = c.Error(err)
			return
		}
		defer f.Close()
		req.FileName = file.Filename
		req.Size = file.Size
		req.Content = f
	}

	doc, err := h.service.UploadDocument(c.Request.Context(), middleware.CurrentUser(c).Actor(), req)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"document": doc,
		"alert":    views.SuccessAlert("Document uploaded"),
	})
}

func (h *Handler) Delete(c *gin.Context) {
	closureID, ok := paramID(c, "id")
	if !ok {
		return
	}
	documentID, ok := paramID(c, "docId")
	if !ok {
		return
	}

	result, err := h.service.DeleteDocument(c.Request.Context(), middleware.CurrentUser(c).Actor(), closureID, documentID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Download(c *gin.Context) {
	closureID, ok := paramID(c, "id")
	if !ok {
		return
	}
	documentID, ok := paramID(c, "docId")
	if !ok {
		return
	}

	stream, name, err := h.service.DownloadDocument(c.Request.Context(), closureID, documentID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer stream.Body.Close()

	contentType := stream.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, stream.ContentLength, contentType, stream.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": name}),
	})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, views.AlertBody{Alert: views.ErrorAlert("invalid " + name)})
		return 0, false
	}
	return id, true
}
