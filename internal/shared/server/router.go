package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"analyzer-backend/internal/chat"
	"analyzer-backend/internal/jobs"
	"analyzer-backend/internal/pages"
	"analyzer-backend/internal/shared/config"
	"analyzer-backend/internal/shared/metrics"
	"analyzer-backend/internal/shared/server/middleware"
	"analyzer-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	AnalysisHandler *jobs.Handler
	ChatHandler     *chat.Handler
	PagesHandler    *pages.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimits()),
	)

	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(api)
	}
	if deps.ChatHandler != nil {
		deps.ChatHandler.RegisterRoutes(api)
	}

	r.GET("/metrics", metrics.Handler())

	if deps.PagesHandler != nil {
		deps.PagesHandler.RegisterRoutes(r)
	}

	return r
}

// rateLimits groups routes by cost: progress polling is cheap and frequent,
// chat turns hit the reply backend.
func rateLimits() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		Rules: map[string]middleware.RateLimitRule{
			"POLLING": {Rate: 20, Burst: 40},
			"CHAT":    {Rate: 2, Burst: 5},
			"DEFAULT": {Rate: 5, Burst: 10},
		},
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			switch {
			case c.FullPath() == "/api/progress/:jobId":
				return "POLLING"
			case c.FullPath() == "/api/chat":
				return "CHAT"
			default:
				return "DEFAULT"
			}
		},
	}
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
