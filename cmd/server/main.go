package main

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dealerqrcode/dealerqr/internal/api"
	"github.com/dealerqrcode/dealerqr/internal/capture"
	"github.com/dealerqrcode/dealerqr/internal/config"
	"github.com/dealerqrcode/dealerqr/internal/database"
	"github.com/dealerqrcode/dealerqr/internal/export"
	imagepkg "github.com/dealerqrcode/dealerqr/internal/image"
	"github.com/dealerqrcode/dealerqr/internal/logger"
	"github.com/dealerqrcode/dealerqr/internal/redirect"
	"github.com/dealerqrcode/dealerqr/internal/scrape"
	"github.com/dealerqrcode/dealerqr/internal/settings"
	"github.com/dealerqrcode/dealerqr/internal/util"
	"github.com/dealerqrcode/dealerqr/internal/vehicle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zl.Sync()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		zl.Fatal("Failed to open database", zap.Error(err))
	}
	defer database.Close(db)
	if err := database.Migrate(db); err != nil {
		zl.Fatal("Failed to migrate database", zap.Error(err))
	}

	util.SetAllowPrivateNetworks(cfg.Scrape.AllowPrivateNetworks)
	if cfg.Scrape.AllowPrivateNetworks {
		zl.Warn("Outbound fetches may reach private networks")
	}

	cache, closeCache := newCache(cfg, zl)
	defer closeCache.Close()

	capturer, closeCapturer := newCapturer(cfg, zl)
	defer closeCapturer.Close()

	repo := vehicle.NewGormRepository(db)
	resolver := redirect.NewResolver(repo, cache, zl.Named("redirect"))

	handler := api.NewHandler(api.Deps{
		Vehicles: vehicle.NewService(repo,
			vehicle.WithInvalidator(resolver),
			vehicle.WithLogger(zl.Named("vehicle"))),
		Settings: settings.NewGormStore(db),
		Exporter: export.NewService(cfg.Label.Layout(), capturer,
			export.WithQuality(cfg.Label.JPEGQuality),
			export.WithLogger(zl.Named("export"))),
		Scraper:       scrape.NewFetcher(cfg.Scrape.Timeout, zl.Named("scrape")),
		Resolver:      resolver,
		PublicBaseURL: cfg.App.PublicBaseURL,
	})

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(logger.RequestID(), logger.GinMiddleware(zl), logger.Recovery(zl))
	api.RegisterRoutes(engine, handler)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info("Server starting",
			zap.String("addr", srv.Addr),
			zap.String("renderer", cfg.Capture.Renderer),
			zap.String("database", cfg.Database.Driver),
			zap.Bool("redis", cfg.Redis.Enabled))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newCache prefers Redis when enabled and reachable, else process memory.
func newCache(cfg *config.Config, zl *zap.Logger) (redirect.URLCache, io.Closer) {
	if cfg.Redis.Enabled {
		rc, err := redirect.NewRedisCache(redirect.RedisOptions{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, zl.Named("redis"))
		if err == nil {
			return rc, rc
		}
		zl.Warn("Redis unavailable, using in-memory redirect cache", zap.Error(err))
	}
	return redirect.NewMemoryCache(cfg.Redis.TTL), nopCloser{}
}

func newCapturer(cfg *config.Config, zl *zap.Logger) (export.Capturer, io.Closer) {
	if cfg.Capture.Renderer == config.RendererChrome {
		c := capture.NewChromedpCapturer(capture.Config{
			RemoteURL: cfg.Capture.RemoteURL,
			Timeout:   cfg.Capture.Timeout,
			Scale:     cfg.Capture.Scale,
			NoSandbox: cfg.Capture.NoSandbox,
			Logger:    zl.Named("capture"),
		})
		return c, c
	}
	return imagepkg.CardRenderer{Scale: cfg.Capture.Scale}, nopCloser{}
}
