// Command server runs the alumni portal API and its websocket gateway.
//
// @title       Alumni Portal API
// @version     1.0
// @description Direct messages, notifications and community actions for the alumni portal.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/tbourn/alumni-portal/docs"
	"github.com/tbourn/alumni-portal/internal/config"
	httpapi "github.com/tbourn/alumni-portal/internal/http"
	"github.com/tbourn/alumni-portal/internal/observability"
	"github.com/tbourn/alumni-portal/internal/realtime"
	"github.com/tbourn/alumni-portal/internal/repo"
	"github.com/tbourn/alumni-portal/internal/services"
	"github.com/tbourn/alumni-portal/internal/sysutil"
)

const shutdownGrace = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	service := sysutil.FirstNonEmpty(cfg.OTEL.ServiceName, "alumni-portal")
	logger := sysutil.SetupLogger(service, cfg.LogLevel, cfg.LogPretty, nil)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version := sysutil.Version()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("migrate database")
	}

	reg := realtime.NewRegistry()
	auth := &realtime.Authenticator{
		Users:           &services.UserService{DB: db},
		Registry:        reg,
		ReleasePrevious: cfg.Realtime.ReleaseOnReauth,
		Log:             logger,
	}
	if cfg.Realtime.TokenSecret != "" {
		auth.Secret = []byte(cfg.Realtime.TokenSecret)
	} else {
		logger.Warn().Msg("realtime: REALTIME_TOKEN_SECRET unset, handshakes trust raw user ids")
	}
	gateway := realtime.NewGateway(auth, reg, realtime.ClientOptions{
		WriteWait:      cfg.Realtime.WriteWait,
		PongWait:       cfg.Realtime.PongWait,
		MaxMessageSize: cfg.Realtime.MaxMessageBytes,
		SendBuffer:     cfg.Realtime.SendBuffer,
	}, cfg.Realtime.AllowedOrigins, logger)

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Gateway:  gateway,
		Notifier: realtime.NewDispatcher(reg, logger),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", srv.Addr).
			Str("api", cfg.APIBasePath).
			Str("ws", cfg.Realtime.Path).
			Str("version", version).
			Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown requested")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("server failed")
		}
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	// Shutdown does not wait for hijacked websocket connections; they close
	// with the process.
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shCtx); err != nil {
		logger.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	logger.Info().Int("open_connections", reg.Len()).Msg("server stopped")
}
