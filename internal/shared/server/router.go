package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/jobs"
	"tailor-backend/internal/shared/config"
	"tailor-backend/internal/shared/metrics"
	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/uploads"
)

// Rate limit groups. Polling reads get more headroom than submissions
// because the dashboard refreshes job status every few seconds.
const (
	rateGroupSubmit = "SUBMIT"
	rateGroupPoll   = "POLL"
)

// RouterDeps carries the handlers and config the router wires together.
type RouterDeps struct {
	Config         config.Config
	UploadsHandler *uploads.Handler
	JobsHandler    *jobs.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Identity(deps.Config.AdminAPIKey),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				rateGroupSubmit: {Rate: 0.5, Burst: 5},
				rateGroupPoll:   {Rate: 5, Burst: 20},
			},
			GroupFor: rateGroup,
		}),
	)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.UploadsHandler != nil {
		deps.UploadsHandler.RegisterRoutes(api)
	}
	if deps.JobsHandler != nil {
		deps.JobsHandler.RegisterRoutes(api)

		// Share links are anonymous: no identity middleware, the token
		// in the path is the credential. Rate limited like polling.
		public := r.Group("/api/v1")
		public.Use(
			middleware.RequestID(),
			middleware.Logging(),
			middleware.Recovery(),
			middleware.CORS(deps.Config.CORSAllowOrigin),
			middleware.RateLimit(middleware.RateLimitConfig{
				Rules:    map[string]middleware.RateLimitRule{rateGroupPoll: {Rate: 5, Burst: 20}},
				GroupFor: func(*gin.Context) string { return rateGroupPoll },
			}),
		)
		deps.JobsHandler.RegisterPublicRoutes(public)
	}

	return r
}

func rateGroup(c *gin.Context) string {
	if c.Request.Method == http.MethodGet {
		path := c.FullPath()
		if strings.HasPrefix(path, "/api/v1/jobs") || path == "/api/v1/download" {
			return rateGroupPoll
		}
		return ""
	}
	return rateGroupSubmit
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
