package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"aigc/internal/adapter/repo"
	"aigc/internal/auth"
	"aigc/internal/http/handlers"
	httpapi "aigc/internal/http/httpapi"
	"aigc/internal/infra"
	"aigc/internal/infra/geoip"
	"aigc/internal/queue"
	"aigc/internal/storage"
	"aigc/internal/submission"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	storagePath := cfg.StoragePath
	if abs, err := filepath.Abs(storagePath); err == nil {
		storagePath = abs
	}
	files, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	jobs, err := queue.New(ctx, queue.Config{RedisURL: cfg.RedisURL, QueueName: cfg.QueueName}, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure queue")
	}

	resolver, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}
	defer resolver.Close()

	store := repo.NewStore(infra.NewSQLRunner(dbpool, logger))
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)

	app := &handlers.App{
		Config:     cfg,
		Store:      store,
		Files:      files,
		Submission: submission.New(store, files, jobs, submission.Options{MaxUploadBytes: cfg.MaxUploadBytes}, logger),
		Tokens:     tokens,
		Logger:     logger,
		Pingers: map[string]handlers.Pinger{
			"postgres": dbpool.Ping,
			"redis": func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		},
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		DefaultLocale:      cfg.DefaultLocale,
		CountryLookup:      resolver.Lookup(),
		Verifier:           tokens,
		Users:              store.Users(),
		RequestTimeout:     cfg.HTTPWriteTimeout,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Str("addr", server.Addr()).Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
