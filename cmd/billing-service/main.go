package main

import (
	"context"
	"fmt"
	"os"

	"github.com/nurpe/subcontract-billing/internal/app"
	"github.com/nurpe/subcontract-billing/internal/auth"
	"github.com/nurpe/subcontract-billing/internal/config"
	httphandler "github.com/nurpe/subcontract-billing/internal/http"
	"github.com/nurpe/subcontract-billing/internal/http/middleware"
	"github.com/nurpe/subcontract-billing/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.Log.File)

	application, err := app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise application")
	}
	defer application.Close()

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(application.Service, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting billing service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		application.Close()
		os.Exit(1)
	}
}
