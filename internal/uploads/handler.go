package uploads

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/shared/telemetry"
)

// Handler exposes the upload HTTP surface.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches upload routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/upload", h.create)
	rg.GET("/uploads", h.list)
}

type createRequest struct {
	Category string `json:"category"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	Content  string `json:"content"`

	// Accepted as aliases for older clients.
	ContentType   string `json:"contentType"`
	ContentBase64 string `json:"contentBase64"`
}

func (r createRequest) contentType() string {
	if t := strings.TrimSpace(r.FileType); t != "" {
		return t
	}
	return strings.TrimSpace(r.ContentType)
}

func (r createRequest) content() string {
	if r.Content != "" {
		return r.Content
	}
	return r.ContentBase64
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	upload, err := h.Svc.Save(c.Request.Context(), SaveInput{
		UserID:        userID,
		Category:      req.Category,
		FileName:      req.FileName,
		ContentType:   req.contentType(),
		ContentBase64: req.content(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		telemetry.Error("uploads.create.failed", map[string]any{
			"err":        err.Error(),
			"user_id":    userID,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to store upload", nil)
		return
	}

	c.Set("upload_key", upload.Key)
	respond.JSON(c, http.StatusCreated, upload)
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	items, err := h.Svc.List(c.Request.Context(), userID, c.Query("category"), limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		telemetry.Error("uploads.list.failed", map[string]any{
			"err":        err.Error(),
			"user_id":    userID,
			"request_id": c.GetString("requestId"),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list uploads", nil)
		return
	}
	if items == nil {
		items = []Upload{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": items})
}
