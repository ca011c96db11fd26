package api

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	_ "github.com/Somerville-Events/somerville.events-sub000/docs"
	"github.com/Somerville-Events/somerville.events-sub000/internal/api/handler"
	"github.com/Somerville-Events/somerville.events-sub000/internal/api/middleware"
	"github.com/Somerville-Events/somerville.events-sub000/internal/metrics"
)

// NewRouter mounts every public route.
func NewRouter(cfg *config.Config, h *handler.Handler) (*gin.Engine, error) {
	auth, err := middleware.BasicAuth(cfg.Auth)
	if err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(middleware.AccessLog())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	inboxLimit := rate.NewLimiter(rate.Limit(cfg.Server.InboxRateLimit), cfg.Server.InboxBurst)
	uploadLimit := rate.NewLimiter(rate.Limit(cfg.Server.UploadRateLimit), cfg.Server.UploadBurst)

	r.GET("/.well-known/webfinger", h.Webfinger)

	ap := r.Group("/activitypub")
	{
		ap.GET("/actor", h.Actor)
		ap.GET("/followers", h.Followers)
		ap.POST("/inbox", middleware.RateLimit(inboxLimit, func() {
			metrics.RecordInboxRejected("rate_limited")
		}), h.Inbox)

		read := ap.Group("", gzip.Gzip(gzip.DefaultCompression))
		read.GET("/outbox", h.Outbox)
		read.GET("/event/:id", h.EventObject)
	}

	r.GET("/upload/key", auth, h.UploadKey)
	r.POST("/upload", auth, middleware.RateLimit(uploadLimit, nil), h.Upload)
	r.GET(handler.UploadSuccessPath, h.UploadSuccess)

	events := r.Group("/api/events")
	{
		events.GET("/:id/activitypub", gzip.Gzip(gzip.DefaultCompression), h.EventActivity)
		events.DELETE("/:id", auth, h.DeleteEvent)
	}

	r.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})
	return r, nil
}
