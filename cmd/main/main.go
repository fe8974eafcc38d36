package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"faxorder-service/internal/config"
	"faxorder-service/internal/resolve/handler"
	"faxorder-service/internal/resolve/service"
	"faxorder-service/internal/store/gormstore"
	"faxorder-service/internal/store/memstore"
	serverhttp "faxorder-service/server/http"
	"faxorder-service/server/http/handlers"
)

func openStore(cfg config.Config, logger zerolog.Logger) (service.Store, handlers.Pinger, func(), error) {
	if cfg.DBDriver == "memory" {
		return memstore.New(), nil, func() {}, nil
	}
	db, err := gormstore.Open(cfg.DBDriver, cfg.DBDSN, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, nil, err
	}
	return gormstore.New(db), sqlDB.PingContext, func() { _ = sqlDB.Close() }, nil
}

func main() {
	cfg := config.Load()
	logger := config.SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("config")
	}

	store, ping, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("open store")
	}
	defer closeStore()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := service.New(ctx, store, cfg.ResolveOptions(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build engine")
	}
	logger.Info().
		Str("driver", cfg.DBDriver).
		Int("aliases", engine.Index().Len()).
		Float64("threshold", cfg.MatchThreshold).
		Msg("engine ready")

	r := serverhttp.NewRouter(cfg, logger, handler.New(engine, cfg.MaxUploadMB), ping)
	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	logger.Info().Str("addr", cfg.Addr()).Msg("server starting")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("bye")
}
