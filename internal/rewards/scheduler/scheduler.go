package scheduler

import (
	"context"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/querycache"
	"github.com/go-co-op/gocron/v2"
	"github.com/go-faster/errors"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	rolloverJobName = "day-rollover"
	sweepJobName    = "flow-sweep"
	sweepInterval   = time.Minute
	jobTimeout      = 10 * time.Second
)

type invalidator interface {
	InvalidateResource(ctx context.Context, resource querycache.Resource) error
}

type sweeper interface {
	Sweep() int
}

// DayRolloverResources go stale at midnight, when "today" changes.
var DayRolloverResources = []querycache.Resource{
	querycache.ResourceCanClaimToday,
	querycache.ResourceWeeklyCheckins,
}

type Scheduler struct {
	sched    gocron.Scheduler
	cache    invalidator
	sessions sweeper
	logger   *zap.Logger
}

func New(cache invalidator, sessions sweeper, clock clockwork.Clock, loc *time.Location, logger *zap.Logger) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithClock(clock), gocron.WithLocation(loc))
	if err != nil {
		return nil, errors.Wrap(err, "gocron.NewScheduler failed: ")
	}
	s := &Scheduler{sched: sched, cache: cache, sessions: sessions, logger: logger.Named("scheduler")}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 0))),
		gocron.NewTask(s.RolloverDay),
		gocron.WithName(rolloverJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sched.NewJob failed: ")
	}
	_, err = sched.NewJob(
		gocron.DurationJob(sweepInterval),
		gocron.NewTask(s.SweepSessions),
		gocron.WithName(sweepJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sched.NewJob failed: ")
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

func (s *Scheduler) Shutdown() error {
	return s.sched.Shutdown()
}

// RolloverDay marks every user's day-bound entries stale so claims reopen on
// the new calendar day.
func (s *Scheduler) RolloverDay() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	for _, r := range DayRolloverResources {
		if err := s.cache.InvalidateResource(ctx, r); err != nil {
			s.logger.Error("cache.InvalidateResource failed: ", zap.String("resource", string(r)), zap.Error(err))
		}
	}
	s.logger.Info("day rolled over")
}

func (s *Scheduler) SweepSessions() {
	if n := s.sessions.Sweep(); n > 0 {
		s.logger.Debug("evicted idle sessions", zap.Int("count", n))
	}
}
