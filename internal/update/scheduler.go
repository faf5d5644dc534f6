package update

import (
	"context"
	"fmt"
	"time"

	"patchwatch/internal/debug"
	"patchwatch/internal/notify"
)

// MinDelay is the shortest wait between two cycles.
const MinDelay = 100 * time.Millisecond

const msgIntervalChanged = "Check interval changed to %s, likely due to rate limiting."

// CycleRunner runs one update cycle.
type CycleRunner interface {
	RunOnce(ctx context.Context) Result
}

// RateLimiter reports how long the release source asked us to back off.
type RateLimiter interface {
	RateLimitRemaining() time.Duration
}

// Scheduler repeats a cycle, stretching the wait while the source is
// rate limited.
type Scheduler struct {
	runner   CycleRunner
	limiter  RateLimiter
	interval time.Duration
	notifier notify.Notifier
	after    func(time.Duration) <-chan time.Time
	observe  func(Result)

	adjusted bool
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithSchedulerNotifier sets where interval-change notices go.
func WithSchedulerNotifier(n notify.Notifier) SchedulerOption {
	return func(s *Scheduler) {
		s.notifier = n
	}
}

// WithTimer replaces time.After, for tests.
func WithTimer(after func(time.Duration) <-chan time.Time) SchedulerOption {
	return func(s *Scheduler) {
		s.after = after
	}
}

// WithObserver registers a callback invoked after every cycle.
func WithObserver(fn func(Result)) SchedulerOption {
	return func(s *Scheduler) {
		s.observe = fn
	}
}

// NewScheduler creates a Scheduler. limiter may be nil when the source
// never throttles.
func NewScheduler(runner CycleRunner, limiter RateLimiter, interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:   runner,
		limiter:  limiter,
		interval: interval,
		notifier: notify.Nop{},
		after:    time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run executes the first cycle immediately and then keeps going until
// ctx is cancelled. Cancellation is only observed between cycles.
func (s *Scheduler) Run(ctx context.Context) {
	debug.Logf("scheduler started: interval=%s", s.interval)
	for {
		s.runCycle(ctx)
		if !s.wait(ctx) {
			break
		}
	}
	debug.Logf("scheduler stopped: %v", ctx.Err())
}

// wait blocks for the next delay and reports whether to run again.
func (s *Scheduler) wait(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-s.after(s.nextDelay()):
		return ctx.Err() == nil
	}
}

// NextDelay returns the wait before the next cycle without side effects.
func (s *Scheduler) NextDelay() time.Duration {
	delay := s.baseDelay()
	if s.limiter != nil {
		if remaining := s.limiter.RateLimitRemaining(); remaining > delay {
			delay = remaining
		}
	}
	return delay
}

func (s *Scheduler) baseDelay() time.Duration {
	if s.interval < MinDelay {
		return MinDelay
	}
	return s.interval
}

// nextDelay is NextDelay plus the one-time notice on entering a wait
// that differs from the configured interval, floor included.
func (s *Scheduler) nextDelay() time.Duration {
	delay := s.NextDelay()
	if delay == s.interval {
		if s.adjusted {
			debug.Logf("check interval back to %s", delay)
		}
		s.adjusted = false
		return delay
	}
	if !s.adjusted {
		s.adjusted = true
		debug.Logf("check interval changed to %s", delay)
		msg := notify.Notification{Title: noticeTitle, Message: formatInterval(delay)}
		if err := s.notifier.Send(msg); err != nil {
			debug.Errorf("send notification via %s: %v", s.notifier.Name(), err)
		}
	}
	return delay
}

func (s *Scheduler) runCycle(ctx context.Context) {
	res := s.runner.RunOnce(ctx)
	if s.observe != nil {
		s.observe(res)
	}
}

func formatInterval(d time.Duration) string {
	return fmt.Sprintf(msgIntervalChanged, d.Round(time.Millisecond))
}
