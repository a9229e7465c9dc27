package service

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	invoiceModel "dormitory_backend/internals/features/finance/invoices/model"
)

// cronLogger routes robfig/cron logs to zap.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.s.Errorw(msg, append(kv, "error", err)...)
}

// PassReport is the outcome of one pass in a scheduled run.
type PassReport struct {
	Source  invoiceModel.InvoiceSource `json:"source"`
	Created int                        `json:"created"`
	Skipped bool                       `json:"skipped"`
	Err     error                      `json:"-"`
}

// Scheduler runs all billing passes for the previous calendar month.
type Scheduler struct {
	engine  *Engine
	log     *zap.Logger
	loc     *time.Location
	timeout time.Duration
	cron    *cron.Cron
	now     func() time.Time
}

func NewScheduler(engine *Engine, spec string, loc *time.Location, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	log = log.Named("billing_scheduler")
	cl := cronLogger{s: log.Sugar()}

	s := &Scheduler{
		engine:  engine,
		log:     log,
		loc:     loc,
		timeout: 10 * time.Minute,
		now:     time.Now,
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, ErrInvalidSchedule.WithField("BILLING_CRON").WithDetail("%q", spec).Wrap(err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.RunPrevious(ctx)
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("billing scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop halts the schedule; the returned context is done once a running
// job has finished.
func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

// RunPrevious bills the month before now, in the scheduler's location.
func (s *Scheduler) RunPrevious(ctx context.Context) []PassReport {
	p := invoiceModel.PeriodOf(s.now().In(s.loc)).Previous()
	return s.RunPeriod(ctx, p)
}

// RunPeriod runs every pass for p. Passes whose (period, source) already
// has invoices are reported as skipped; a failing pass does not stop the
// others.
func (s *Scheduler) RunPeriod(ctx context.Context, p invoiceModel.Period) []PassReport {
	passes := []struct {
		source invoiceModel.InvoiceSource
		run    func(context.Context, invoiceModel.Period) (int, error)
	}{
		{invoiceModel.InvoiceSourceRoomFee, s.engine.RunRoomFees},
		{invoiceModel.InvoiceSourceParking, s.engine.RunParkingFees},
		{invoiceModel.InvoiceSourceUtility, s.engine.RunUtilities},
	}

	out := make([]PassReport, 0, len(passes))
	for _, ps := range passes {
		n, err := ps.run(ctx, p)
		rep := PassReport{Source: ps.source, Created: n}
		switch {
		case errors.Is(err, ErrPeriodAlreadyBilled):
			rep.Skipped = true
		case err != nil:
			rep.Err = err
			s.log.Error("billing pass failed",
				zap.String("source", string(ps.source)),
				zap.Int("month", p.Month),
				zap.Int("year", p.Year),
				zap.Error(err))
		}
		out = append(out, rep)
	}
	s.log.Info("scheduled billing finished",
		zap.Int("month", p.Month),
		zap.Int("year", p.Year),
		zap.Any("passes", out))
	return out
}
