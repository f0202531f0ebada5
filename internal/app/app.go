package app

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/nurpe/subcontract-billing/internal/collab"
	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/db"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/excel"
	"github.com/nurpe/subcontract-billing/internal/pdf"
	"github.com/nurpe/subcontract-billing/internal/repository"
	"github.com/nurpe/subcontract-billing/internal/service"
)

// App holds the wiring shared by the API and scheduler processes.
type App struct {
	DB      *gorm.DB
	Repos   *repository.Repositories
	Service *service.Service

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	database, err := db.New(cfg, log)
	if err != nil {
		return nil, err
	}
	app := &App{DB: database, Repos: repository.New(database)}

	provisioner, notifier := collaborators(cfg, log)

	store, err := idempotencyStore(ctx, cfg, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	dispatcher := effects.NewDispatcher(app.Repos, provisioner, notifier, store, effects.Options{
		Timeout: cfg.Collab.Timeout,
		Workers: cfg.Effects.Workers,
		Lease:   cfg.Effects.Lease,
	}, log.With().Str("component", "effects").Logger())

	pdfGenerator, err := pdfRenderer(cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Service = service.New(app.Repos, dispatcher, excel.NewGenerator(), pdfGenerator, cfg, log)
	if sqlDB, err := database.DB(); err == nil {
		app.closers = append(app.closers, sqlDB.Close)
	}
	return app, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}

func collaborators(cfg *config.Config, log zerolog.Logger) (collab.Provisioner, collab.Notifier) {
	var (
		provisioner collab.Provisioner = collab.NewNoopProvisioner(log)
		notifier    collab.Notifier    = collab.NewLogNotifier(log)
	)
	if cfg.Collab.BaseURL == "" && cfg.Collab.NotifyWebhookURL == "" {
		return provisioner, notifier
	}

	client := collab.NewHTTPClient(cfg.Collab.BaseURL, cfg.Collab.NotifyWebhookURL, &http.Client{Timeout: cfg.Collab.Timeout})
	if cfg.Collab.BaseURL != "" {
		provisioner = client
	}
	if cfg.Collab.NotifyWebhookURL != "" {
		notifier = client
	}
	return provisioner, notifier
}

func idempotencyStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (effects.IdempotencyStore, error) {
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("REDIS_ADDR not set, side-effect idempotency is kept in memory")
		return effects.NewMemoryStore(), nil
	}
	store, err := effects.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return store, nil
}

func pdfRenderer(cfg *config.Config) (*pdf.Generator, error) {
	if cfg.Documents.FontFile == "" {
		return pdf.NewGenerator(nil), nil
	}
	font, err := os.ReadFile(cfg.Documents.FontFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF_FONT_FILE: %w", err)
	}
	return pdf.NewGenerator(font), nil
}
