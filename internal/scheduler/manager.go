package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/nurpe/subcontract-billing/internal/billing"
	"github.com/nurpe/subcontract-billing/internal/config"
	"github.com/nurpe/subcontract-billing/internal/effects"
	"github.com/nurpe/subcontract-billing/internal/model"
	"github.com/nurpe/subcontract-billing/internal/service"
)

// drainBatch caps how many queued side effects one retry run picks up.
const drainBatch = 100

// Runner is the set of service entry points the scheduler triggers.
type Runner interface {
	ExpireSweep(ctx context.Context) ([]service.ExpiryResult, error)
	GenerateMonthly(ctx context.Context, year, month int, direction model.InvoiceDirection) (*service.AggregationResult, error)
	OverdueSweep(ctx context.Context) ([]service.StatusChange, error)
	DrainSideEffects(ctx context.Context, limit int) (*effects.DrainReport, error)
}

// Job is one periodic task.
type Job struct {
	Name       string
	Definition gocron.JobDefinition
	Run        func(ctx context.Context) error
}

type Manager struct {
	scheduler gocron.Scheduler
	runner    Runner
	cfg       *config.Config
	log       zerolog.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewManager(runner Runner, cfg *config.Config, log zerolog.Logger) (*Manager, error) {
	s, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &Manager{
		scheduler: s,
		runner:    runner,
		cfg:       cfg,
		log:       log,
		timeout:   10 * time.Minute,
		now:       time.Now,
	}, nil
}

func (m *Manager) Jobs() []Job {
	return []Job{
		{
			Name:       "project_expiry_sweep",
			Definition: gocron.DurationJob(m.cfg.Schedule.ExpiryInterval),
			Run:        m.expireProjects,
		},
		{
			Name:       "side_effect_retry",
			Definition: gocron.DurationJob(m.cfg.Schedule.EffectsInterval),
			Run:        m.drainSideEffects,
		},
		{
			Name:       "monthly_invoices",
			Definition: gocron.CronJob(m.cfg.Schedule.MonthlyCron, false),
			Run:        m.generateMonthly,
		},
		{
			Name:       "invoice_overdue_sweep",
			Definition: gocron.CronJob(m.cfg.Schedule.OverdueCron, false),
			Run:        m.markOverdue,
		},
	}
}

// RegisterJobs adds every job in singleton mode so a slow run is never
// overlapped by the next tick.
func (m *Manager) RegisterJobs() error {
	for _, job := range m.Jobs() {
		_, err := m.scheduler.NewJob(
			job.Definition,
			gocron.NewTask(m.execute, job),
			gocron.WithName(job.Name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name, err)
		}
	}
	return nil
}

func (m *Manager) Start() {
	m.scheduler.Start()
	m.log.Info().Int("jobs", len(m.scheduler.Jobs())).Msg("scheduler started")
}

func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		m.log.Error().Err(err).Msg("failed to shutdown scheduler")
	}
	m.log.Info().Msg("scheduler stopped")
}

func (m *Manager) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	started := m.now()
	if err := job.Run(ctx); err != nil {
		m.log.Error().Err(err).Str("job", job.Name).Msg("job failed")
		return
	}
	m.log.Debug().Str("job", job.Name).Dur("took", m.now().Sub(started)).Msg("job finished")
}

func (m *Manager) expireProjects(ctx context.Context) error {
	results, err := m.runner.ExpireSweep(ctx)
	if err != nil {
		return err
	}
	failed := 0
	for _, result := range results {
		if result.Error != "" {
			failed++
			m.log.Warn().Str("project_id", result.ProjectID.String()).Str("error", result.Error).Msg("project expiry failed")
		}
	}
	if len(results) > 0 {
		m.log.Info().Int("projects", len(results)).Int("failed", failed).Msg("expiry sweep done")
	}
	return nil
}

// generateMonthly bills the most recently closed period in both directions.
// Re-runs are harmless because aggregation skips parties already invoiced.
func (m *Manager) generateMonthly(ctx context.Context) error {
	period := billing.LastClosedPeriod(m.now().UTC())
	var firstErr error
	for _, direction := range []model.InvoiceDirection{model.InvoiceDirectionContractor, model.InvoiceDirectionOperator} {
		result, err := m.runner.GenerateMonthly(ctx, period.Year, int(period.Month), direction)
		if err != nil {
			m.log.Error().Err(err).Str("period", period.String()).Str("direction", string(direction)).Msg("monthly aggregation failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		counts := map[service.GroupOutcome]int{}
		for _, group := range result.Groups {
			counts[group.Outcome]++
		}
		m.log.Info().
			Str("period", period.String()).
			Str("direction", string(direction)).
			Int("created", counts[service.GroupCreated]).
			Int("already_exists", counts[service.GroupAlreadyExists]).
			Int("skipped", counts[service.GroupSkipped]).
			Int("errored", counts[service.GroupErrored]).
			Msg("monthly aggregation done")
	}
	return firstErr
}

func (m *Manager) markOverdue(ctx context.Context) error {
	changes, err := m.runner.OverdueSweep(ctx)
	if err != nil {
		return err
	}
	if len(changes) > 0 {
		m.log.Info().Int("invoices", len(changes)).Msg("invoices marked overdue")
	}
	return nil
}

func (m *Manager) drainSideEffects(ctx context.Context) error {
	report, err := m.runner.DrainSideEffects(ctx, drainBatch)
	if err != nil {
		return err
	}
	if report.Attempted > 0 {
		m.log.Info().
			Int("attempted", report.Attempted).
			Int("delivered", report.Delivered).
			Int("failed", len(report.Warnings)).
			Msg("side effects retried")
	}
	return nil
}
