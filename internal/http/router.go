// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, route handlers, and the real-time hub. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging/redaction,
// panic recovery, metrics, CORS, security headers, and per-class rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-poll-backend/internal/config"
	"github.com/tbourn/go-poll-backend/internal/http/handlers"
	"github.com/tbourn/go-poll-backend/internal/http/middleware"
	"github.com/tbourn/go-poll-backend/internal/services"
	"github.com/tbourn/go-poll-backend/internal/ws"
)

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine, constructs the application services over db, and wires the
// real-time hub to them. It returns the hub so the caller owns its lifecycle
// (the sweeper broadcasts through it, and shutdown drains it).
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//  8. Per-class rate limiters on the route groups (create/vote/read)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) (*ws.Hub, *services.Sweeper) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-User-ID", // principal header; keep identities out of logs
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (64 KiB; poll payloads are small)
	r.Use(limitBody(64 << 10))

	// Response compression. The WebSocket upgrade and the Prometheus scrape
	// must stay uncompressed.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db, hub ← services
	pollSvc := services.NewPollService(db, cfg.ClientURL)

	voteSvc := &services.VoteService{DB: db, GuardTTL: cfg.GuardTTL}
	hub := ws.NewHub(pollSvc.Snapshot, voteSvc.Vote)
	voteSvc.Broadcast = hub
	pollSvc.Broadcast = hub

	sweeper := &services.Sweeper{DB: db, Broadcast: hub, Interval: cfg.SweepInterval}

	h := handlers.New(pollSvc, voteSvc)

	// 8) Per-class token-bucket rate limiters
	createRL := middleware.NewRateLimiter(cfg.RateCreate.Limit, cfg.RateCreate.Window, middleware.KeyByUserOrIP())
	voteRL := middleware.NewRateLimiter(cfg.RateVote.Limit, cfg.RateVote.Window, middleware.KeyByIP())
	readRL := middleware.NewRateLimiter(cfg.RateRead.Limit, cfg.RateRead.Window, middleware.KeyByIP())

	// Real-time channel (upgrade endpoint bypasses class limiters; the hub
	// applies its own per-event semantics).
	r.GET("/ws", func(c *gin.Context) {
		if err := ws.Serve(hub, c.Writer, c.Request, c.ClientIP()); err != nil {
			// Upgrade failures have already written their HTTP response.
			middleware.LoggerFrom(c).Warn().Err(err).Msg("ws upgrade failed")
		}
	})

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Creation
		api.POST("/polls", createRL.Handler(), h.CreatePoll)

		// Owner dashboard and analytics
		api.GET("/polls", readRL.Handler(), h.ListPolls)
		api.GET("/polls/summary", readRL.Handler(), h.PollsSummary)
		api.GET("/polls/:shareableId/results", readRL.Handler(), h.PollResults)
		api.GET("/polls/:shareableId/export", readRL.Handler(), h.ExportPoll)
		api.PATCH("/polls/:shareableId/deactivate", readRL.Handler(), h.DeactivatePoll)

		// Public poll access
		api.GET("/polls/:shareableId", readRL.Handler(), h.GetPoll)
		api.POST("/polls/:shareableId/vote", voteRL.Handler(), h.Vote)
	}

	return hub, sweeper
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
