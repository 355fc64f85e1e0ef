// Package sender runs outbound Telegram calls off the update goroutine with
// bounded retries.
package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/membergate/core/logger"
	"github.com/m3rciful/membergate/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	tokenRe   = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)
	trailerRe = regexp.MustCompile(`\((\d{3})\)\s*$`)
)

// Options tunes the dispatcher. Zero values pick defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the time spent on one job including retries.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := []slog.Attr{slog.String("op", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher owns a fixed worker pool draining a bounded job queue. Member
// notifications go through it so admin handlers answer immediately.
type Dispatcher struct {
	opts   Options
	queue  chan job
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	d := &Dispatcher{opts: opts.withDefaults()}
	d.queue = make(chan job, d.opts.QueueSize)
	d.wg.Add(d.opts.Workers)
	for range d.opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.queue {
				d.process(j)
			}
		}()
	}
	return d
}

// Enqueue queues run without blocking. run may execute more than once when
// it fails with a transient error.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.queue <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// ErrorCount reports how many jobs ended in failure.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits until the queued ones finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) process(j job) {
	start := time.Now()
	attempts, err := d.attempt(j)
	took := logger.RoundMS(time.Since(start))
	if err == nil {
		if attempts > 1 {
			logger.Info(j.ctx, component, "send.retry.success", j.attrs(slog.Int("attempts", attempts), slog.Duration("duration", took))...)
			return
		}
		logger.Debug(j.ctx, component, "send.success", j.attrs(slog.Duration("duration", took))...)
		return
	}
	d.failed.Add(1)
	logger.Error(j.ctx, component, "send.fail", j.attrs(
		slog.String("err", redact(err)),
		slog.String("err_code", classifyError(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", took),
	)...)
}

// attempt runs j until it succeeds, fails permanently, runs out of retries or
// exceeds MaxDuration.
func (d *Dispatcher) attempt(j job) (int, error) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil || n == limit || !netutil.ShouldRetry(err) {
			return n, err
		}
		wait := d.opts.RetryBackoff * time.Duration(n)
		if hint, ok := netutil.FloodWait(err); ok {
			wait = max(wait, hint)
		}
		logger.Debug(j.ctx, component, "send.retry.backoff", j.attrs(slog.Int("attempts", n), slog.Duration("backoff", wait))...)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}

// classifyError buckets err into a short code for dashboards.
func classifyError(err error) string {
	var (
		dnsErr *net.DNSError
		opErr  *net.OpError
		netErr net.Error
		tlsErr tls.AlertError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &dnsErr):
		if dnsErr.IsTimeout {
			return "timeout"
		}
		return "dns"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &opErr) && opErr.Op == "dial":
		return "dial"
	case errors.As(err, &tlsErr):
		return "tls"
	}
	switch code := statusCode(err); {
	case code >= 500:
		return "http_5xx"
	case code >= 400:
		return "http_4xx"
	}
	return "unknown"
}

// statusCode extracts the HTTP status Telegram replied with, if any.
func statusCode(err error) int {
	var (
		apiErr   *tele.Error
		floodErr tele.FloodError
		groupErr tele.GroupError
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, &floodErr):
		return http.StatusTooManyRequests
	case errors.As(err, &groupErr):
		return http.StatusBadRequest
	}
	if m := trailerRe.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return code
	}
	return 0
}

// redact hides bot tokens that net/http embeds in request URLs.
func redact(err error) string {
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
