// Command devapi serves the password reset endpoints for local use and
// end-to-end runs of forgot-password. Without DATABASE_URL it keeps users
// and codes in memory; without SMTP_HOST it logs codes instead of mailing them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"cleancharcoal/internal/app"
	"cleancharcoal/internal/config"
	"cleancharcoal/internal/logging"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.Stderr(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("devapi: startup failed")
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Error().Err(err).Msg("devapi: server stopped")
		os.Exit(1)
	}
	log.Info().Msg("devapi: stopped")
}
