package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/codelabx/regdesk/internal/auth"
	"github.com/codelabx/regdesk/internal/config"
	"github.com/codelabx/regdesk/internal/domain/registration"
	"github.com/codelabx/regdesk/internal/http/handlers"
	"github.com/codelabx/regdesk/internal/http/middlewares"
	"github.com/codelabx/regdesk/internal/kvstore"
	"github.com/codelabx/regdesk/internal/notifications"
	"github.com/codelabx/regdesk/internal/observability"
	"github.com/codelabx/regdesk/internal/pipeline"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RouterDeps bundles everything the route tree needs. main builds one of
// these and hands it over.
type RouterDeps struct {
	Cfg      config.Config
	Log      *slog.Logger
	Pool     *pgxpool.Pool
	Backend  handlers.RegistrationBackend
	Uploader pipeline.ReceiptUploader
	Notifier notifications.Notifier
	Markers  kvstore.Store
	Prom     *observability.Prom
	Tokens   *auth.Manager
	Flows    []registration.Flow
}

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(RequestLogger(d.Log))
	r.Use(otelgin.Middleware("regdesk"))

	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.CORSMiddleware(d.Cfg.AllowedOrigins))
	r.Use(middlewares.SecurityHeaders())
	// the receipt upload is the largest payload we ever accept
	r.Use(middlewares.MaxBodyBytes(10 << 20))

	// health
	ping := func() error {
		if d.Pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return d.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// public registration surface, rate limited per client IP

	regHandler := handlers.NewRegistrationsHandler(
		d.Backend,
		d.Uploader,
		d.Notifier,
		d.Markers,
		d.Prom,
		d.Log,
		d.Flows,
		d.Cfg.Debounce(),
	)

	submitLimiter := middlewares.NewRateLimiter(10, time.Minute)
	checkLimiter := middlewares.NewRateLimiter(120, time.Minute)

	pub := r.Group("/registrations")
	pub.POST("/:flow", submitLimiter.RateLimiterMiddleware(middlewares.KeyByIP), regHandler.Register)
	pub.GET("/:flow/check", checkLimiter.RateLimiterMiddleware(middlewares.KeyByIP), regHandler.CheckContact)
	pub.GET("/:flow/capacity", checkLimiter.RateLimiterMiddleware(middlewares.KeyByIP), regHandler.Capacity)

	// admin surface

	adminHandler := handlers.NewAdminHandler(d.Backend, d.Tokens, d.Cfg.AdminEmail, d.Cfg.AdminPasswordHash, d.Log)
	authMw := middlewares.NewAuthMiddleware(d.Tokens)
	loginLimiter := middlewares.NewRateLimiter(5, time.Minute)

	admin := r.Group("/admin")
	admin.POST("/login", loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP), adminHandler.Login)

	protected := admin.Group("", authMw.RequireAuth(), authMw.RequireRole("admin"))
	protected.GET("/registrations", adminHandler.ListRegistrations)

	return r
}
