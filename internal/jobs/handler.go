package jobs

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/shared/telemetry"
)

// Handler exposes the tailoring HTTP surface.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches job routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/tailor", h.submit)
	rg.POST("/tailor/sync", h.submitSync)
	rg.GET("/tailor/test", h.probe)
	rg.GET("/jobs", h.list)
	rg.GET("/jobs/:id", h.get)
	rg.POST("/render", h.render)
	rg.GET("/download", h.download)
	rg.GET("/models", h.models)
}

// RegisterPublicRoutes attaches routes served without caller identity.
// The share token in the path is the only credential.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.GET("/share/:token", h.share)
}

type submitRequest struct {
	JobID          string `json:"jobId"`
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
	ResumeKey      string `json:"resumeKey"`
	JobDescKey     string `json:"jobDescKey"`
	TemplateKey    string `json:"templateKey"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
}

func (r submitRequest) toInput() SubmitInput {
	return SubmitInput{
		JobID:          r.JobID,
		ResumeText:     r.ResumeText,
		JobDescription: r.JobDescription,
		ResumeKey:      r.ResumeKey,
		JobDescKey:     r.JobDescKey,
		TemplateKey:    r.TemplateKey,
		Provider:       r.Provider,
		Model:          r.Model,
	}
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.Submit(ctx, userID, req.toInput())
	if err != nil {
		h.respondError(c, err, "jobs.submit.failed")
		return
	}
	c.Set("job_id", job.ID)
	respond.JSON(c, http.StatusAccepted, job)
}

func (h *Handler) submitSync(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.SubmitSync(ctx, userID, req.toInput())
	if err != nil {
		h.respondError(c, err, "jobs.submit_sync.failed")
		return
	}
	content, err := h.Svc.TailoredJSON(ctx, job)
	if err != nil {
		h.respondError(c, err, "jobs.submit_sync.failed")
		return
	}
	c.Set("job_id", job.ID)
	respond.JSON(c, http.StatusOK, syncResponse{Job: job, JSON: content})
}

// syncResponse is the settled job plus the tailored content inline, so
// synchronous callers need no follow-up download.
type syncResponse struct {
	Job
	JSON json.RawMessage `json:"json,omitempty"`
}

func (h *Handler) probe(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	start := time.Now()
	job, err := h.Svc.Probe(ctx, userID, c.Query("provider"), c.Query("model"))
	if err != nil {
		h.respondError(c, err, "jobs.probe.failed")
		return
	}
	respond.JSON(c, http.StatusOK, gin.H{
		"ok":        job.Status == StatusComplete,
		"provider":  job.Provider,
		"model":     job.Model,
		"latencyMs": time.Since(start).Milliseconds(),
		"jobId":     job.ID,
		"status":    job.Status,
	})
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	privileged := middleware.IsPrivilegedViewer(c)
	// Privileged viewers may narrow the listing to one user; everyone
	// else sees only their own jobs no matter what they pass.
	if target := c.Query("userId"); privileged && target != "" {
		userID = target
		privileged = false
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	items, err := h.Svc.List(c.Request.Context(), userID, privileged, limit, offset)
	if err != nil {
		h.respondError(c, err, "jobs.list.failed")
		return
	}
	if items == nil {
		items = []Job{}
	}
	respond.JSON(c, http.StatusOK, gin.H{"items": items})
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	privileged := middleware.IsPrivilegedViewer(c)

	job, err := h.Svc.Get(c.Request.Context(), userID, privileged, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "jobs.get.failed")
		return
	}
	c.Set("job_id", job.ID)
	respond.JSON(c, http.StatusOK, job)
}

type renderRequest struct {
	JobID       string `json:"jobId"`
	TemplateKey string `json:"templateKey"`
	Format      string `json:"format"`
}

func (h *Handler) render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.JobID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobId is required", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	privileged := middleware.IsPrivilegedViewer(c)
	ctx := WithRequestID(c.Request.Context(), c.GetString("requestId"))
	job, err := h.Svc.Render(ctx, userID, privileged, RenderInput{JobID: req.JobID, TemplateKey: req.TemplateKey, Format: req.Format})
	if err != nil {
		h.respondError(c, err, "jobs.render.failed")
		return
	}
	c.Set("job_id", job.ID)
	respond.JSON(c, http.StatusOK, job)
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	privileged := middleware.IsPrivilegedViewer(c)

	var expiresIn time.Duration
	if raw := c.Query("expiresIn"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "expiresIn must be a positive number of seconds", nil)
			return
		}
		expiresIn = time.Duration(seconds) * time.Second
	}

	link, err := h.Svc.SignDownload(c.Request.Context(), userID, privileged, c.Query("key"), expiresIn)
	if err != nil {
		h.respondError(c, err, "jobs.download.failed")
		return
	}
	c.Set("upload_key", c.Query("key"))
	respond.JSON(c, http.StatusOK, link)
}

// shareResponse is the public view of a shared job. It carries no owner
// identity and no storage keys.
type shareResponse struct {
	ID               string            `json:"id"`
	Provider         string            `json:"provider"`
	Model            string            `json:"model"`
	Status           string            `json:"status"`
	ValidationReport *ValidationReport `json:"validationReport,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	CompletedAt      *time.Time        `json:"completedAt,omitempty"`
}

func (h *Handler) share(c *gin.Context) {
	job, err := h.Svc.SharedJob(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err, "jobs.share.failed")
		return
	}
	c.Set("job_id", job.ID)
	respond.JSON(c, http.StatusOK, shareResponse{
		ID:               job.ID,
		Provider:         job.Provider,
		Model:            job.Model,
		Status:           job.Status,
		ValidationReport: job.ValidationReport,
		CreatedAt:        job.CreatedAt,
		CompletedAt:      job.CompletedAt,
	})
}

func (h *Handler) models(c *gin.Context) {
	if h.Svc.Catalog == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "model catalog not configured", nil)
		return
	}

	provider := c.Query("provider")
	if provider != "" {
		models, err := h.Svc.Catalog.ModelsFor(provider)
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
			return
		}
		respond.JSON(c, http.StatusOK, gin.H{"provider": provider, "models": models})
		return
	}

	out := gin.H{}
	for _, p := range h.Svc.Catalog.Providers() {
		models, err := h.Svc.Catalog.ModelsFor(p)
		if err != nil {
			continue
		}
		out[p] = models
	}
	respond.JSON(c, http.StatusOK, gin.H{"providers": out, "default": gin.H{
		"provider": h.Svc.Provider,
		"model":    h.Svc.Model,
	}})
}

func (h *Handler) respondError(c *gin.Context, err error, event string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "job or artifact not found", nil)
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "not allowed", nil)
	case errors.Is(err, ErrPrecondition):
		respond.Error(c, http.StatusConflict, "precondition_failed", err.Error(), nil)
	default:
		telemetry.Error(event, map[string]any{
			"err":        err.Error(),
			"request_id": c.GetString("requestId"),
			"user_id":    middleware.UserIDFromContext(c),
		})
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
