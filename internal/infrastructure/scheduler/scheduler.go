package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context)

type Scheduler struct {
	c *cron.Cron
}

// New returns an empty schedule. Overlapping runs of the same job are skipped.
func New() *Scheduler {
	return &Scheduler{c: cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))}
}

// Add runs job on schedule (standard cron or "@every <duration>"). timeout
// bounds a single run.
func (s *Scheduler) Add(name, schedule string, timeout time.Duration, job Job) error {
	_, err := s.c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		job(ctx)
		log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("scheduled job done")
	})
	return err
}

func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Run starts the schedule and blocks until ctx is done, then waits for a
// running job to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.c.Start()
	<-ctx.Done()
	<-s.c.Stop().Done()
	return nil
}
