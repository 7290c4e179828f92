package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	integrationapp "github.com/pos/backend/internal/application/integration"
)

// QueuePurger removes processed webhook entries older than a retention window
type QueuePurger interface {
	Purge(ctx context.Context, retention time.Duration) (int64, error)
}

// OrderReconciler reports status drift between internal orders and their providers
type OrderReconciler interface {
	ReconcileOrders(ctx context.Context, organizationID uuid.UUID, since time.Time) integrationapp.ServiceResponse[integrationapp.ReconcileReport]
}

// OrganizationLister lists organizations that have at least one active integration
type OrganizationLister interface {
	ListActiveOrganizations(ctx context.Context) ([]uuid.UUID, error)
}

// MaintenanceConfig holds the cron schedules of the maintenance jobs.
// Schedules use the standard five-field cron syntax and run in UTC.
type MaintenanceConfig struct {
	PurgeCron       string
	ReconcileCron   string
	Retention       time.Duration
	ReconcileWindow time.Duration
	JobTimeout      time.Duration
	// Concurrency bounds how many organizations are reconciled at once
	Concurrency int
}

// DefaultMaintenanceConfig returns the default maintenance schedule
func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		PurgeCron:       "0 3 * * *",
		ReconcileCron:   "*/10 * * * *",
		Retention:       7 * 24 * time.Hour,
		ReconcileWindow: 24 * time.Hour,
		JobTimeout:      5 * time.Minute,
		Concurrency:     4,
	}
}

// ReconcileSummary aggregates one reconciliation run across organizations
type ReconcileSummary struct {
	Organizations int
	Checked       int
	Drift         int
	Errors        int
}

// Maintenance runs the periodic queue purge and order reconciliation
type Maintenance struct {
	config     MaintenanceConfig
	purger     QueuePurger
	reconciler OrderReconciler
	orgs       OrganizationLister
	logger     *zap.Logger
	now        func() time.Time

	mu        sync.Mutex
	cron      *cron.Cron
	isRunning bool
}

// NewMaintenance creates the maintenance scheduler. A nil reconciler or lister disables
// reconciliation; a nil purger disables the purge.
func NewMaintenance(
	config MaintenanceConfig,
	purger QueuePurger,
	reconciler OrderReconciler,
	orgs OrganizationLister,
	logger *zap.Logger,
) *Maintenance {
	defaults := DefaultMaintenanceConfig()
	if config.PurgeCron == "" {
		config.PurgeCron = defaults.PurgeCron
	}
	if config.ReconcileCron == "" {
		config.ReconcileCron = defaults.ReconcileCron
	}
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.ReconcileWindow <= 0 {
		config.ReconcileWindow = defaults.ReconcileWindow
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = defaults.JobTimeout
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Maintenance{
		config:     config,
		purger:     purger,
		reconciler: reconciler,
		orgs:       orgs,
		logger:     logger.Named("scheduler.maintenance"),
		now:        time.Now,
	}
}

// Start registers the jobs and starts the cron runner
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRunning {
		return nil
	}

	cronLogger := zapCronLogger{m.logger.Sugar()}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	if m.purger != nil {
		if _, err := c.AddFunc(m.config.PurgeCron, func() { m.runJob(ctx, "purge", m.purgeJob) }); err != nil {
			return fmt.Errorf("%w: purge schedule %q: %v", ErrInvalidConfig, m.config.PurgeCron, err)
		}
	}
	if m.reconciler != nil && m.orgs != nil {
		if _, err := c.AddFunc(m.config.ReconcileCron, func() { m.runJob(ctx, "reconcile", m.reconcileJob) }); err != nil {
			return fmt.Errorf("%w: reconcile schedule %q: %v", ErrInvalidConfig, m.config.ReconcileCron, err)
		}
	}

	c.Start()
	m.cron = c
	m.isRunning = true

	m.logger.Info("Maintenance scheduler started",
		zap.String("purge_cron", m.config.PurgeCron),
		zap.String("reconcile_cron", m.config.ReconcileCron),
		zap.Int("jobs", len(c.Entries())),
	)
	return nil
}

// Stop stops scheduling and waits for running jobs until ctx expires
func (m *Maintenance) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return nil
	}
	m.isRunning = false
	c := m.cron
	m.mu.Unlock()

	select {
	case <-c.Stop().Done():
		m.logger.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		m.logger.Warn("Maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

func (m *Maintenance) runJob(parent context.Context, name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), m.config.JobTimeout)
	defer cancel()

	start := m.now()
	if err := job(ctx); err != nil {
		m.logger.Error("Maintenance job failed",
			zap.String("job", name),
			zap.Duration("elapsed", m.now().Sub(start)),
			zap.Error(err),
		)
	}
}

func (m *Maintenance) purgeJob(ctx context.Context) error {
	_, err := m.RunPurge(ctx)
	return err
}

func (m *Maintenance) reconcileJob(ctx context.Context) error {
	_, err := m.RunReconcile(ctx)
	return err
}

// RunPurge deletes processed webhook entries older than the retention window
func (m *Maintenance) RunPurge(ctx context.Context) (int64, error) {
	if m.purger == nil {
		return 0, nil
	}
	deleted, err := m.purger.Purge(ctx, m.config.Retention)
	if err != nil {
		return 0, fmt.Errorf("purge webhook queue: %w", err)
	}
	m.logger.Info("Webhook queue purged",
		zap.Int64("deleted", deleted),
		zap.Duration("retention", m.config.Retention),
	)
	return deleted, nil
}

// RunReconcile reconciles every organization with an active integration.
// A failing organization is logged and does not stop the others.
func (m *Maintenance) RunReconcile(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary
	if m.reconciler == nil || m.orgs == nil {
		return summary, nil
	}

	orgIDs, err := m.orgs.ListActiveOrganizations(ctx)
	if err != nil {
		return summary, fmt.Errorf("list organizations: %w", err)
	}
	summary.Organizations = len(orgIDs)
	since := m.now().Add(-m.config.ReconcileWindow)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.config.Concurrency)
	for _, orgID := range orgIDs {
		g.Go(func() error {
			resp := m.reconciler.ReconcileOrders(gctx, orgID, since)

			mu.Lock()
			defer mu.Unlock()
			if !resp.Success {
				summary.Errors++
				m.logger.Warn("Order reconciliation failed for organization",
					zap.String("organization_id", orgID.String()),
					zap.String("error_code", resp.ErrorCode),
					zap.String("message", resp.Error),
				)
				return nil
			}
			summary.Checked += resp.Data.Checked
			summary.Drift += len(resp.Data.Drift)
			summary.Errors += len(resp.Data.Errors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	m.logger.Info("Order reconciliation run finished",
		zap.Int("organizations", summary.Organizations),
		zap.Int("checked", summary.Checked),
		zap.Int("drift", summary.Drift),
		zap.Int("errors", summary.Errors),
	)
	return summary, ctx.Err()
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	l *zap.SugaredLogger
}

func (z zapCronLogger) Info(msg string, keysAndValues ...any) {
	z.l.Debugw(msg, keysAndValues...)
}

func (z zapCronLogger) Error(err error, msg string, keysAndValues ...any) {
	z.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
