package cli

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/tasks"
	"github.com/habitly/habitd/utils"
)

// reminderQueue is the part of a queue backend the commands drive.
type reminderQueue interface {
	tasks.Enqueuer
	Close()
}

func newProcessor(e *env) *tasks.Processor {
	var limiter *rate.Limiter
	if e.cfg.DeliveryRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.DeliveryRatePerSecond), e.cfg.DeliveryBurst)
	}
	dead := tasks.GormDeadLetters{DB: e.db, Log: e.log}
	return tasks.NewProcessor(utils.NewMailer(e.cfg), limiter, retryPolicy(e), dead, e.log)
}

func retryPolicy(e *env) tasks.RetryPolicy {
	return tasks.RetryPolicy{
		MaxRetries: e.cfg.DeliveryMaxRetries,
		BaseDelay:  time.Duration(e.cfg.DeliveryBaseDelaySec) * time.Second,
		MaxDelay:   time.Duration(e.cfg.DeliveryMaxDelaySec) * time.Second,
	}
}

// startQueue opens the configured backend. When consume is false an AMQP
// queue only publishes and leaves delivery to the serving process.
func startQueue(ctx context.Context, e *env, consume bool) (reminderQueue, *tasks.MemoryQueue, error) {
	proc := newProcessor(e)
	switch e.cfg.QueueBackend {
	case "amqp":
		q, err := tasks.DialAMQP(e.cfg.AMQPURL, e.cfg.AMQPQueue, proc, e.cfg.ReminderWorkers, e.log)
		if err != nil {
			return nil, nil, err
		}
		if consume {
			if err := q.Start(ctx); err != nil {
				q.Close()
				return nil, nil, err
			}
		}
		e.log.Info("reminder queue ready", zap.String("backend", "amqp"), zap.String("queue", e.cfg.AMQPQueue))
		return q, nil, nil
	case "memory", "":
		q := tasks.NewMemoryQueue(proc, e.cfg.ReminderWorkers, e.log)
		q.Start(ctx)
		e.log.Info("reminder queue ready", zap.String("backend", "memory"), zap.Int("workers", e.cfg.ReminderWorkers))
		return q, q, nil
	default:
		return nil, nil, fmt.Errorf("unknown queue backend %q", e.cfg.QueueBackend)
	}
}

func newLocker() tasks.Locker {
	local := tasks.NewLocalLocker()
	if rdb := utils.GetRedis(); rdb != nil {
		return tasks.FallbackLocker{Primary: tasks.NewRedisLocker(rdb, "habitd:lock:"), Secondary: local}
	}
	return local
}

const (
	decayJobName    = "streak-decay"
	dispatchJobName = "reminder-dispatch"
)

func decayJob(e *env) tasks.Job {
	hour, minute, _ := e.cfg.DecayTime()
	sweeper := services.NewDecaySweeper(e.db, e.loc, e.log)
	return tasks.Job{
		Name:        decayJobName,
		Schedule:    tasks.DailyAt(hour, minute),
		LockTTL:     time.Hour,
		OncePerTick: true,
		Run: func(ctx context.Context, now time.Time) error {
			report, err := sweeper.DecayInactiveGoals(ctx, now)
			if err != nil {
				return err
			}
			if report.Reset > 0 {
				utils.InvalidateByPrefix(ctx, utils.DashboardCachePrefix)
			}
			return nil
		},
	}
}

func dispatchJob(e *env, queue tasks.Enqueuer) tasks.Job {
	dispatcher := services.NewReminderDispatcher(e.db, queue, e.loc, e.log)
	return tasks.Job{
		Name:        dispatchJobName,
		Schedule:    tasks.EveryMinute,
		LockTTL:     2 * time.Minute,
		OncePerTick: true,
		Run: func(ctx context.Context, now time.Time) error {
			_, err := dispatcher.DispatchDueReminders(ctx, now)
			return err
		},
	}
}

func parseAt(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Now().In(loc), nil
	}
	t, err := time.ParseInLocation(time.RFC3339, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("--at must be RFC3339: %w", err)
	}
	return t.In(loc), nil
}
