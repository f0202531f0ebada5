package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nurpe/subcontract-billing/internal/app"
	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/logger"
	"github.com/nurpe/subcontract-billing/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.Log.File).With().Str("process", "scheduler").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise application")
	}
	defer application.Close()

	manager, err := scheduler.NewManager(application.Service, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := manager.RegisterJobs(); err != nil {
		log.Fatal().Err(err).Msg("failed to register jobs")
	}

	manager.Start()
	<-ctx.Done()
	manager.Stop()
}
