package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/scribe-notes/server/archiver"
	"github.com/scribe-notes/server/auth"
	"github.com/scribe-notes/server/config"
	serverhttp "github.com/scribe-notes/server/http"
	"github.com/scribe-notes/server/store"
	"github.com/scribe-notes/server/ws"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("SCRIBE_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("configuration failed")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		log = log.Level(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	hub := ws.NewHub(log)
	broker := ws.NewBroker(db.Notes(), db.Notifications(), db.Users(), hub, log)

	sweeper := archiver.New(db.Notes(), broker, cfg.ArchiveAfter, cfg.ArchiveInterval, log)
	go sweeper.Run(ctx)

	server := serverhttp.NewServer(tokens, db.Users(), db.Notes(), db.Notifications(), broker, hub, log)
	app := server.App(serverhttp.Options{
		AllowOrigins: cfg.AllowOrigins,
		RateLimit:    cfg.RateLimit,
		RateWindow:   cfg.RateWindow,
	})

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("server starting")
		if err := app.Listen(cfg.Addr); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
