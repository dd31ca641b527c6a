package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/fundraiser/pkg/logger"
)

const (
	defaultSessionSpec = "@every 15m"
	defaultIdleTimeout = 30 * 24 * time.Hour
)

// SessionExpirer closes sessions that have been idle for longer than the supplied duration.
type SessionExpirer interface {
	ExpireIdleSessions(ctx context.Context, idle time.Duration) (int64, error)
}

// Cleaner coordinates background maintenance tasks. Today that is the idle-session sweep.
type Cleaner struct {
	sessions SessionExpirer
	cron     *cron.Cron
	log      *zap.Logger
	idle     time.Duration
	timeout  time.Duration

	sessionSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithIdleTimeout sets how long a session may be idle before the sweep closes it.
func WithIdleTimeout(idle time.Duration) Option {
	return func(cleaner *Cleaner) {
		if idle > 0 {
			cleaner.idle = idle
		}
	}
}

// WithSessionSchedule overrides the cron specification for the idle-session sweep.
func WithSessionSchedule(schedule string) Option {
	return func(cleaner *Cleaner) {
		if schedule != "" {
			cleaner.sessionSchedule = schedule
		}
	}
}

// WithJobTimeout bounds a single scheduled run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(cleaner *Cleaner) {
		if timeout > 0 {
			cleaner.timeout = timeout
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil session expirer disables the sweep.
func NewCleaner(sessions SessionExpirer, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		idle:            defaultIdleTimeout,
		timeout:         time.Minute,
		sessionSchedule: defaultSessionSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if c.sessions == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()
		if _, err := c.expireSessions(ctx); err != nil {
			c.log.Warn("idle session sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.expireSessions(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) expireSessions(ctx context.Context) (int64, error) {
	if c.sessions == nil {
		return 0, errors.New("maintenance: session expirer is not configured")
	}
	expired, err := c.sessions.ExpireIdleSessions(ctx, c.idle)
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		c.log.Info("expired idle sessions", zap.Int64("count", expired), zap.Duration("idle", c.idle))
	}
	return expired, nil
}
