// Command server runs the flyer intake and federation service.
//
// @title Somerville Events API
// @version 1.0
// @description Flyer intake and ActivityPub federation for local events.
// @BasePath /
// @securityDefinitions.basic BasicAuth
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/Somerville-Events/somerville.events-sub000/config"
	"github.com/Somerville-Events/somerville.events-sub000/internal/activitypub"
	"github.com/Somerville-Events/somerville.events-sub000/internal/api"
	"github.com/Somerville-Events/somerville.events-sub000/internal/api/handler"
	"github.com/Somerville-Events/somerville.events-sub000/internal/dedup"
	"github.com/Somerville-Events/somerville.events-sub000/internal/extract"
	"github.com/Somerville-Events/somerville.events-sub000/internal/geocode"
	"github.com/Somerville-Events/somerville.events-sub000/internal/repository"
	"github.com/Somerville-Events/somerville.events-sub000/internal/service"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/cache"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/database"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/logger"
	"github.com/Somerville-Events/somerville.events-sub000/pkg/tracing"
)

const (
	jobTimeout      = 5 * time.Minute
	shutdownTimeout = 10 * time.Second
	drainTimeout    = 2 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			AttachStacktrace: true,
		}); err != nil {
			logger.Warn("sentry disabled", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		logger.Error("tracing init failed", zap.Error(err))
		os.Exit(1)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		logger.Error("database init failed", zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = database.Close(db) }()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// The geocode cache is optional; run uncached.
		logger.Warn("redis unavailable, geocode cache disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	repo := repository.New(db, dedup.NewMatcher(cfg.Dedup.NameThreshold, cfg.Dedup.DescriptionThreshold))

	urls := activitypub.NewURLs(cfg.Federation.PublicURL)
	signer, err := activitypub.NewSigner(urls.KeyID(), cfg.Federation.PrivateKeyPEM, cfg.Federation.PublicKeyPEM)
	if err != nil {
		logger.Error("load actor key", zap.Error(err))
		os.Exit(1)
	}
	fedClient := &http.Client{Timeout: cfg.Federation.DeliveryTimeout}
	delivery := activitypub.NewDelivery(fedClient, signer, urls, repo.Followers, activitypub.DeliveryOptions{
		Timeout:     cfg.Federation.DeliveryTimeout,
		Concurrency: cfg.Federation.DeliveryConcurrency,
	})
	inbox := activitypub.NewInbox(urls, repo, activitypub.NewActorFetcher(fedClient, signer), delivery)
	discovery := activitypub.NewDiscovery(urls, activitypub.Identity{
		Username:    cfg.Federation.Username,
		DisplayName: cfg.Federation.DisplayName,
		Summary:     cfg.Federation.Summary,
	}, signer.PublicKeyPEM(), repo.Followers)

	geocoder := geocode.WithCache(geocode.NewPlacesClient(cfg.Geocoding), rdb, cfg.Redis.GeoTTL)
	pipeline, err := service.NewPipeline(repo, extract.NewClient(cfg.AI), geocoder, delivery, service.PipelineOptions{
		ScratchDir: cfg.Intake.ScratchDir,
		QueueSize:  cfg.Intake.QueueSize,
		Workers:    cfg.Intake.Workers,
		JobTimeout: jobTimeout,
	})
	if err != nil {
		logger.Error("intake pipeline init failed", zap.Error(err))
		os.Exit(1)
	}
	stopQueue := pipeline.Start()

	router, err := api.NewRouter(cfg, handler.NewHandler(handler.Deps{
		Repo:           repo,
		Discovery:      discovery,
		Outbox:         activitypub.NewOutbox(repo.Events, urls, cfg.Federation.OutboxPageSize),
		Mapper:         activitypub.NewMapper(urls),
		Inbox:          inbox,
		Uploads:        pipeline,
		MaxUploadBytes: cfg.Intake.MaxUploadBytes,
	}))
	if err != nil {
		logger.Error("router init failed", zap.Error(err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("actor", urls.Actor()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	httpCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(httpCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), drainTimeout)
	defer cancelDrain()
	left, err := stopQueue(drainCtx)
	if err != nil {
		logger.Warn("intake queue not drained", zap.Int("jobs_left", left), zap.Error(err))
	} else {
		logger.Info("intake queue drained")
	}

	if err := shutdownTracing(context.Background()); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
