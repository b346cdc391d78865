//	@title			CMS API
//	@version		1.0
//	@description	Content backend: public posts, admin CRUD, uploads and image processing.
//
//	@host		localhost:8080
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

//go:generate swag init --dir ../../ --generalInfo cmd/api/main.go --output ../../docs/swagger --outputTypes go --parseInternal

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dockerx/cms/internal/auth"
	"github.com/dockerx/cms/internal/config"
	"github.com/dockerx/cms/internal/db"
	"github.com/dockerx/cms/internal/logger"
	"github.com/dockerx/cms/internal/media"
	appMiddleware "github.com/dockerx/cms/internal/middleware"
	"github.com/dockerx/cms/internal/post"
	"github.com/dockerx/cms/internal/server"
	"github.com/dockerx/cms/internal/storage"

	_ "github.com/dockerx/cms/docs/swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logger.New(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metadata stores: Postgres, or process memory for DATABASE_URL=memory.
	var (
		postStore  post.Store
		mediaStore media.Store
	)
	if cfg.UsesMemoryDatabase() {
		lg.Warn("using in-memory metadata stores; data is lost on restart")
		postStore = post.NewMemoryStore()
		mediaStore = media.NewMemoryStore()
	} else {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, lg)
		if err != nil {
			lg.Fatal("database connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := db.Migrate(cfg.DatabaseURL, lg); err != nil {
			lg.Fatal("database migration failed", zap.Error(err))
		}
		postStore = post.NewRepository(pool)
		mediaStore = media.NewRepository(pool)
	}

	provider, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		lg.Fatal("storage init failed", zap.String("provider", cfg.Storage.Provider), zap.Error(err))
	}
	lg.Info("storage ready", zap.String("backend", provider.Name()), zap.String("container", cfg.Storage.Container))

	// Wire dependencies: store → service → handler
	files := storage.NewService(provider, cfg.Storage.Container, lg)
	postSvc := post.NewService(postStore, mediaStore, files, lg)

	authSvc, err := auth.NewService(cfg.JWT, cfg.Admin)
	if err != nil {
		lg.Fatal("auth init failed", zap.Error(err))
	}

	var limiter *appMiddleware.IPRateLimiter
	if cfg.RateLimit.RPS > 0 {
		limiter = appMiddleware.NewIPRateLimiter(ctx, cfg.RateLimit.RPS, cfg.RateLimit.Burst, lg)
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: server.NewRouter(server.Deps{
			Role:        cfg.Service,
			CORSOrigins: cfg.CORSOrigins,
			Log:         lg,
			Files:       files,
			Posts:       postSvc,
			Auth:        authSvc,
			AuthLimiter: limiter,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("service", cfg.Service),
		)
		lg.Info("swagger UI", zap.String("url", "http://localhost:"+cfg.Port+"/swagger/"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("forced shutdown", zap.Error(err))
		os.Exit(1)
	}

	lg.Info("server stopped")
}
