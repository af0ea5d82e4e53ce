// Package retry runs remote operations with classified failures and exponential backoff.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/jonathan/cv-generator/internal/types"
)

// DefaultMaxRetries is the number of additional attempts after the first try.
const DefaultMaxRetries = 4

// DefaultBaseDelay is the delay before the first retry; it doubles on each further retry.
const DefaultBaseDelay = 2 * time.Second

// Operation is one remote call.
type Operation[T any] func(ctx context.Context) (T, error)

// Recorder receives one AttemptRecord per try.
type Recorder interface {
	RecordAttempt(types.AttemptRecord)
}

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Config holds the retry budget.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Controller holds read-only retry settings shared by all requests.
// Per-invocation state lives on the stack of Execute.
type Controller struct {
	maxRetries uint64
	baseDelay  time.Duration
	classify   Classifier
	sleep      Sleeper
	logger     *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the backoff sleeper (tests use a recording fake).
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// WithClassifier replaces the failure classifier.
func WithClassifier(fn Classifier) Option {
	return func(c *Controller) { c.classify = fn }
}

// New creates a Controller. Non-positive values fall back to the defaults,
// except MaxRetries which may be zero (single attempt).
func New(cfg Config, logger *zap.Logger, opts ...Option) *Controller {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Controller{
		maxRetries: uint64(cfg.MaxRetries),
		baseDelay:  cfg.BaseDelay,
		classify:   Classify,
		sleep:      sleepContext,
		logger:     logger.Named("retry"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxAttempts returns the total number of tries, first one included.
func (c *Controller) MaxAttempts() int {
	return int(c.maxRetries) + 1
}

// schedule returns a fresh backoff: base, 2*base, 4*base, ... for at most maxRetries retries.
func (c *Controller) schedule() goretry.Backoff {
	return goretry.WithMaxRetries(c.maxRetries, goretry.NewExponential(c.baseDelay))
}

// Execute runs op until it succeeds, fails terminally, or the retry budget is spent.
//
// A terminal failure is returned unchanged. Exhaustion returns *ExhaustedError
// wrapping the last failure; a context that ends during backoff returns *AbortedError.
func Execute[T any](ctx context.Context, c *Controller, requestID string, rec Recorder, op Operation[T]) (T, error) {
	var zero T
	backoff := c.schedule()
	logger := c.logger.With(zap.String("request_id", requestID))
	started := time.Now()

	for n := 1; ; n++ {
		logger.Info("remote call attempt started",
			zap.Int("attempt", n),
			zap.Int("max_attempts", c.MaxAttempts()))

		attemptStart := time.Now()
		result, err := op(ctx)
		record := types.AttemptRecord{
			Number:    n,
			StartedAt: attemptStart,
			EndedAt:   time.Now(),
		}

		if err == nil {
			record.Outcome = types.AttemptSuccess
			recordAttempt(rec, record)
			logger.Info("remote call attempt succeeded",
				zap.Int("attempt", n),
				zap.Duration("attempt_duration", record.Duration()),
				zap.Duration("total_duration", time.Since(started)))
			return result, nil
		}

		class := c.classify(err)
		record.Outcome = types.AttemptFailure
		record.Classification = class.String()
		record.ErrorKind, record.StatusCode = Describe(err)

		fields := []zap.Field{
			zap.Int("attempt", n),
			zap.String("classification", record.Classification),
			zap.String("error_kind", record.ErrorKind),
			zap.Int("status", record.StatusCode),
			zap.Error(err),
		}

		if class == Terminal {
			recordAttempt(rec, record)
			logger.Error("remote call failed with terminal error",
				append(fields, zap.Duration("total_duration", time.Since(started)))...)
			return zero, err
		}

		delay, stop := backoff.Next()
		if stop {
			recordAttempt(rec, record)
			logger.Error("remote call retry budget exhausted",
				append(fields, zap.Duration("total_duration", time.Since(started)))...)
			return zero, &ExhaustedError{Attempts: n, Last: err}
		}

		record.Delay = delay
		recordAttempt(rec, record)
		logger.Warn("remote call attempt failed, backing off",
			append(fields, zap.Duration("delay", delay))...)

		if serr := c.sleep(ctx, delay); serr != nil {
			logger.Error("remote call retry aborted during backoff",
				zap.Int("attempt", n),
				zap.Error(serr),
				zap.Duration("total_duration", time.Since(started)))
			return zero, &AbortedError{Attempts: n, Last: err, Cause: serr}
		}
	}
}

func recordAttempt(rec Recorder, a types.AttemptRecord) {
	if rec != nil {
		rec.RecordAttempt(a)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
