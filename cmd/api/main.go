package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/geocoder89/secondchance/internal/auth"
	"github.com/geocoder89/secondchance/internal/cache"
	"github.com/geocoder89/secondchance/internal/config"
	"github.com/geocoder89/secondchance/internal/db"
	httpx "github.com/geocoder89/secondchance/internal/http"
	"github.com/geocoder89/secondchance/internal/observability"
	"github.com/geocoder89/secondchance/internal/repo/memory"
	"github.com/geocoder89/secondchance/internal/repo/mongodb"
	"github.com/geocoder89/secondchance/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const devJWTSecret = "dev-only-secret-change-me"

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using the development secret")
		cfg.JWTSecret = devJWTSecret
	}

	ctx := context.Background()

	shutdownTracer, err := observability.InitTracer(ctx, "secondchance-api", cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	var shuttingDown atomic.Bool

	deps := httpx.Dependencies{
		Tokens:       auth.NewManager(cfg.JWTSecret, cfg.JWTTTL),
		Prom:         prom,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ShuttingDown: shuttingDown.Load,
	}

	// document store
	var provider *db.Provider

	switch cfg.Store {
	case "memory":
		log.Warn("using in-process store, data is lost on restart")
		deps.Users = memory.NewUsersRepo()
		deps.Items = memory.NewItemsRepo()
	default:
		provider = db.NewProvider(cfg.MongoURI, cfg.MongoDB)

		openCtx, cancel := config.WithTimeout(ctx, 10*time.Second)
		err := provider.Open(openCtx)
		if err == nil {
			err = db.EnsureIndexes(openCtx, provider.Database())
		}
		cancel()

		if err != nil {
			log.Error("database unavailable", "err", err)
			os.Exit(1)
		}

		database := provider.Database()
		deps.Users = mongodb.NewUsersRepo(database, prom)
		deps.Items = mongodb.NewItemsRepo(database, prom)
		deps.Ping = provider.Ping
	}

	// image storage
	images, err := newImageStore(ctx, cfg)
	if err != nil {
		log.Error("image storage unavailable", "err", err)
		os.Exit(1)
	}
	deps.Images = images

	// item list cache
	var redisCache *cache.Redis
	if cfg.RedisAddr != "" {
		redisCache = cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
			Prefix:   "secondchance:",
		})

		pingCtx, cancel := config.WithTimeout(ctx, 2*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			// the cache is an optimisation, a cold Redis is not fatal
			log.Warn("redis ping failed", "addr", cfg.RedisAddr, "err", err)
		}
		cancel()

		deps.Cache = redisCache
	} else {
		deps.Cache = cache.New(cfg.CacheTTL)
	}

	// set up routers with the log
	router := httpx.NewRouter(log, cfg, deps)

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// start server using a concurrent go-routine driven anonymous function.

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store, "uploads", cfg.UploadBackend)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")
	shuttingDown.Store(true)

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}

		if provider != nil {
			if err := provider.Close(ctx); err != nil {
				log.Error("database close failed", "err", err)
			}
		}

		if redisCache != nil {
			if err := redisCache.Close(); err != nil {
				log.Error("redis close failed", "err", err)
			}
		}

		if err := shutdownTracer(ctx); err != nil {
			log.Error("tracer shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

func newImageStore(ctx context.Context, cfg config.Config) (storage.ImageStore, error) {
	if cfg.UploadBackend == "s3" {
		s3Store, err := storage.NewS3(ctx, storage.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return s3Store, nil
	}

	disk, err := storage.NewDisk(cfg.UploadDir)
	if err != nil {
		return nil, err
	}
	return disk, nil
}
