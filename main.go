package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/room4-2/OpenCanteen/catalog"
	"github.com/room4-2/OpenCanteen/config"
	"github.com/room4-2/OpenCanteen/dialogue"
	"github.com/room4-2/OpenCanteen/engine"
	"github.com/room4-2/OpenCanteen/order"
	"github.com/room4-2/OpenCanteen/server"
	"github.com/room4-2/OpenCanteen/session"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng, err := engine.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create generation engine")
	}
	defer eng.Close()

	store := session.NewStore(cfg)
	gateway := catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, cfg.CatalogValidates)
	ledger := order.NewLedger(cfg.OrdersPath)
	controller := dialogue.NewController(cfg, store, gateway, eng, ledger)

	srv := server.NewServer(cfg, store, controller, eng)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info().Msg("received shutdown signal")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		log.Fatal().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}
