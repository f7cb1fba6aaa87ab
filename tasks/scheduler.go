package tasks

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Schedule returns the next run time strictly after now.
type Schedule func(now time.Time) time.Time

// EveryMinute fires at second zero of every minute.
func EveryMinute(now time.Time) time.Time {
	return now.Truncate(time.Minute).Add(time.Minute)
}

// DailyAt fires once a day at hour:minute in the location of now.
func DailyAt(hour, minute int) Schedule {
	return func(now time.Time) time.Time {
		next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Job is a periodic entry point.
type Job struct {
	Name     string
	Schedule Schedule
	// LockTTL bounds how long a crashed run can block the next one.
	LockTTL time.Duration
	// OncePerTick claims each scheduled instant for LockTTL and never gives
	// the claim back, so instances sharing a Locker run a tick only once.
	OncePerTick bool
	Run         func(ctx context.Context, now time.Time) error
}

// Scheduler runs jobs on their schedules, one goroutine per job.
type Scheduler struct {
	jobs   []Job
	locker Locker
	loc    *time.Location
	log    *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler. Times handed to jobs are in loc.
func NewScheduler(locker Locker, loc *time.Location, log *zap.Logger, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{jobs: jobs, locker: locker, loc: loc, log: log, now: time.Now}
}

// Start begins the scheduler loops.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
}

// Stop cancels the loops and waits for running jobs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	defer s.wg.Done()
	for {
		next := job.Schedule(s.now().In(s.loc))
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		// Fire with the scheduled instant so minute matching is exact even if
		// the timer woke a little late.
		s.RunOnce(ctx, job, next)
	}
}

// RunOnce runs job for now unless a previous run still holds its lock or,
// for OncePerTick jobs, another instance already took this tick. It reports
// whether the job ran.
func (s *Scheduler) RunOnce(ctx context.Context, job Job, now time.Time) bool {
	ttl := job.LockTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	release, ok, err := s.locker.TryLock(ctx, job.Name, ttl)
	if err != nil {
		s.log.Error("scheduler lock failed", zap.String("job", job.Name), zap.Error(err))
		return false
	}
	if !ok {
		s.log.Warn("skipping job, previous run still active", zap.String("job", job.Name), zap.Time("at", now))
		return false
	}
	defer release()

	if job.OncePerTick {
		_, claimed, err := s.locker.TryLock(ctx, tickKey(job.Name, now), ttl)
		if err != nil {
			s.log.Error("scheduler tick claim failed", zap.String("job", job.Name), zap.Error(err))
			return false
		}
		if !claimed {
			s.log.Debug("tick already handled", zap.String("job", job.Name), zap.Time("at", now))
			return false
		}
	}

	start := time.Now()
	if err := job.Run(ctx, now); err != nil {
		s.log.Error("job failed", zap.String("job", job.Name), zap.Time("at", now), zap.Error(err))
		return true
	}
	s.log.Debug("job finished", zap.String("job", job.Name), zap.Duration("took", time.Since(start)))
	return true
}

func tickKey(name string, at time.Time) string {
	return name + "@" + at.UTC().Format(time.RFC3339)
}
