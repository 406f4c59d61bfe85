package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quantumflow/callengine/internal/cost"
	"github.com/quantumflow/callengine/internal/events"
	"github.com/quantumflow/callengine/internal/logging"
)

// DefaultSpec runs the report five minutes after midnight UTC
const DefaultSpec = "5 0 * * *"

// ReportRoutingKey is the routing key of published daily reports
const ReportRoutingKey = "cost.daily.report"

// Reporter builds the cost report of a day
type Reporter interface {
	DailyCostReport(ctx context.Context, date time.Time) (*cost.DailyReport, error)
}

// Scheduler triggers the previous day's cost report on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	spec      string
	reporter  Reporter
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler. publisher may be nil, in which case reports are only logged.
func New(spec string, reporter Reporter, publisher events.Publisher, logger *slog.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		spec:      spec,
		reporter:  reporter,
		publisher: publisher,
		logger:    logging.OrDiscard(logger).With(slog.String("component", "scheduler")),
		now:       time.Now,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start registers the report job and starts the cron loop
func (s *Scheduler) Start() error {
	if s.reporter == nil {
		s.logger.Warn("no reporter configured, daily cost reports disabled")
		return nil
	}

	_, err := s.cron.AddFunc(s.spec, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.logger.Error("daily cost report failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid report schedule %q: %w", s.spec, err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started", slog.String("spec", s.spec))
	return nil
}

// RunOnce builds, logs and publishes the report of the previous UTC day
func (s *Scheduler) RunOnce(ctx context.Context) (*cost.DailyReport, error) {
	day := s.now().UTC().AddDate(0, 0, -1)

	report, err := s.reporter.DailyCostReport(ctx, day)
	if err != nil {
		return nil, err
	}

	s.logger.Info("daily cost report",
		slog.String("date", report.Date),
		slog.Int("calls", report.Calls),
		slog.String("total", report.Total.String()),
		slog.String("currency", report.Currency),
		slog.Int("over_threshold", report.OverThreshold),
	)

	if s.publisher != nil {
		msg := events.NewEnvelope(ReportRoutingKey, "", report)
		if err := s.publisher.Publish(ctx, ReportRoutingKey, msg); err != nil {
			s.logger.Warn("failed to publish daily report", slog.String("error", err.Error()))
		}
	}
	return report, nil
}

// Stop waits for a running job and stops the cron loop
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.cancel()
	s.logger.Info("scheduler stopped")
}

// IsRunning reports whether a job is scheduled
func (s *Scheduler) IsRunning() bool {
	return len(s.cron.Entries()) > 0
}
