package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RetryPolicy bounds redelivery of a failed task.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Budget is the total backoff a task can accumulate before it is dead-lettered.
func (p RetryPolicy) Budget() time.Duration {
	var total time.Duration
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		total += Backoff(p.BaseDelay, attempt, p.MaxDelay)
	}
	return total
}

// DefaultRetryPolicy retries three times starting at thirty seconds.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}

// Outcome is what the processor decided for a task.
type Outcome int

const (
	Delivered Outcome = iota
	Retry
	DeadLettered
)

// Processor delivers tasks under a send-rate limit and decides what happens on
// failure. Queue backends share it.
type Processor struct {
	sender  Sender
	limiter *rate.Limiter
	policy  RetryPolicy
	dead    DeadLetterSink
	log     *zap.Logger
}

// NewProcessor creates a Processor. A nil limiter means unthrottled.
func NewProcessor(sender Sender, limiter *rate.Limiter, policy RetryPolicy, dead DeadLetterSink, log *zap.Logger) *Processor {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if dead == nil {
		dead = LogDeadLetters{Log: log}
	}
	return &Processor{sender: sender, limiter: limiter, policy: policy, dead: dead, log: log}
}

// Process waits for a send slot and attempts delivery. On Retry the returned
// task carries the incremented attempt and its backoff; the caller schedules it.
func (p *Processor) Process(ctx context.Context, task ReminderNotification) (Outcome, ReminderNotification, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		// Shutdown while waiting for a slot; hand the task back unchanged.
		return Retry, task, err
	}

	err := p.sender.SendReminder(ctx, task.Recipient, task.HabitName)
	if err == nil {
		p.log.Info("reminder delivered",
			zap.String("task_id", task.ID),
			zap.String("recipient", task.Recipient),
			zap.Int("attempt", task.Attempt))
		return Delivered, task, nil
	}

	next := task
	next.Attempt++
	next.LastError = err.Error()
	if next.Attempt > p.policy.MaxRetries {
		if derr := p.dead.DeadLetter(ctx, next); derr != nil {
			p.log.Error("dead letter write failed", zap.String("task_id", task.ID), zap.Error(derr))
		}
		return DeadLettered, next, err
	}

	next.Backoff = Backoff(p.policy.BaseDelay, next.Attempt, p.policy.MaxDelay)
	p.log.Warn("reminder delivery failed, will retry",
		zap.String("task_id", task.ID),
		zap.Int("attempt", next.Attempt),
		zap.Duration("backoff", next.Backoff),
		zap.Error(err))
	return Retry, next, err
}

// Abandon dead-letters a task that will not be attempted again, for example
// because its queue shut down before the next retry.
func (p *Processor) Abandon(ctx context.Context, task ReminderNotification, cause error) {
	if cause != nil {
		if task.LastError == "" {
			task.LastError = cause.Error()
		} else {
			task.LastError = cause.Error() + ": " + task.LastError
		}
	}
	if err := p.dead.DeadLetter(ctx, task); err != nil {
		p.log.Error("dead letter write failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}
