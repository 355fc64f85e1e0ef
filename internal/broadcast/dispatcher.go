// Package broadcast fans an admin message out to every approved member.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/membergate/core/logger"
)

// Recipients supplies the approved member ids.
type Recipients interface {
	ApprovedIDs(ctx context.Context) ([]int64, error)
}

// Deliverer sends one payload to one recipient.
type Deliverer interface {
	Deliver(ctx context.Context, recipient int64, p Payload) error
}

// Progress is a snapshot passed to the progress callback.
type Progress struct {
	RunID   string
	Done    int
	Total   int
	Success int
	Failed  int
}

// ProgressFunc receives progress snapshots; it runs on the dispatch goroutine.
type ProgressFunc func(ctx context.Context, p Progress)

// Config paces a run.
type Config struct {
	SuccessDelay  time.Duration `yaml:"success_delay" envconfig:"BROADCAST_SUCCESS_DELAY"`
	FailureDelay  time.Duration `yaml:"failure_delay" envconfig:"BROADCAST_FAILURE_DELAY"`
	ProgressEvery int           `yaml:"progress_every" envconfig:"BROADCAST_PROGRESS_EVERY"`
}

// Normalize applies defaults and rejects negative values.
func (c *Config) Normalize() error {
	if c.SuccessDelay < 0 || c.FailureDelay < 0 || c.ProgressEvery < 0 {
		return fmt.Errorf("broadcast delays and progress_every must be >= 0")
	}
	if c.SuccessDelay == 0 {
		c.SuccessDelay = 100 * time.Millisecond
	}
	if c.FailureDelay == 0 {
		c.FailureDelay = 200 * time.Millisecond
	}
	if c.ProgressEvery == 0 {
		c.ProgressEvery = 10
	}
	return nil
}

// Report summarises a finished run.
type Report struct {
	RunID      string
	Total      int
	Success    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// SuccessRate is the share of successful deliveries in percent. The bool is
// false when there were no recipients.
func (r Report) SuccessRate() (float64, bool) {
	if r.Total == 0 {
		return 0, false
	}
	return float64(r.Success) / float64(r.Total) * 100, true
}

// Duration is the wall time of the run.
func (r Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Dispatcher delivers payloads sequentially with fixed pacing.
type Dispatcher struct {
	cfg        Config
	recipients Recipients
	deliverer  Deliverer
	sleep      func(ctx context.Context, d time.Duration) error
	now        func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(cfg Config, recipients Recipients, deliverer Deliverer) (*Dispatcher, error) {
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		cfg:        cfg,
		recipients: recipients,
		deliverer:  deliverer,
		sleep:      sleepCtx,
		now:        time.Now,
	}, nil
}

// Run delivers p to a snapshot of approved members. A failed delivery is
// counted and the run continues. Cancelling ctx stops the run; the partial
// report is returned together with the context error.
func (d *Dispatcher) Run(ctx context.Context, p Payload, progress ProgressFunc) (Report, error) {
	report := Report{RunID: uuid.NewString(), StartedAt: d.now()}
	if err := p.Validate(); err != nil {
		return report, err
	}

	ids, err := d.recipients.ApprovedIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("broadcast recipients: %w", err)
	}
	report.Total = len(ids)
	logger.Info(ctx, "broadcast", "broadcast.started",
		slog.String("run_id", report.RunID),
		slog.Int("total", report.Total),
		slog.String("kind", string(p.Kind)),
	)

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return d.finish(ctx, report, err)
		}

		delay := d.cfg.SuccessDelay
		if err := d.deliverer.Deliver(ctx, id, p); err != nil {
			report.Failed++
			delay = d.cfg.FailureDelay
			logger.Debug(ctx, "broadcast", "broadcast.delivery_failed",
				slog.String("run_id", report.RunID),
				slog.Int64("member_id", id),
				slog.Any("err", err),
			)
		} else {
			report.Success++
		}

		done := i + 1
		if progress != nil && (done%d.cfg.ProgressEvery == 0 || done == report.Total) {
			progress(ctx, Progress{
				RunID:   report.RunID,
				Done:    done,
				Total:   report.Total,
				Success: report.Success,
				Failed:  report.Failed,
			})
		}

		if done < report.Total {
			if err := d.sleep(ctx, delay); err != nil {
				return d.finish(ctx, report, err)
			}
		}
	}
	return d.finish(ctx, report, nil)
}

func (d *Dispatcher) finish(ctx context.Context, report Report, err error) (Report, error) {
	report.FinishedAt = d.now()
	attrs := []slog.Attr{
		slog.String("run_id", report.RunID),
		slog.Int("total", report.Total),
		slog.Int("success", report.Success),
		slog.Int("failed", report.Failed),
		slog.Duration("took", report.Duration()),
	}
	if err != nil {
		logger.Warn(ctx, "broadcast", "broadcast.interrupted", append(attrs, slog.Any("err", err))...)
		return report, err
	}
	logger.Info(ctx, "broadcast", "broadcast.finished", attrs...)
	return report, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
