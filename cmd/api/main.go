package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate-backend/internal/config"
	"estate-backend/internal/interfaces/router"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	config.SetupLogging(cfg)

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Verify connections before accepting traffic.
	if db != nil {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal().Err(err).Msg("Postgres: get DB")
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("Postgres connection failed")
		}
		defer sqlDB.Close()
		log.Info().Msg("Postgres connected")
	}
	if rdb != nil {
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal().Err(err).Msg("Redis connection failed")
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msgf("Server running at http://localhost:%s (health: /health/json)", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("listen")
	}
}
