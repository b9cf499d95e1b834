package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ResetCodePurger clears reset codes whose expiry has passed.
type ResetCodePurger interface {
	ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron  *cron.Cron
	users ResetCodePurger
	now   func() time.Time
	log   zerolog.Logger
}

func NewScheduler(users ResetCodePurger, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	return &Scheduler{
		cron:  c,
		users: users,
		now:   time.Now,
		log:   log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.PurgeResetCodes); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) PurgeResetCodes() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cleared, err := s.users.ClearExpiredResetCodes(ctx, s.now().UTC())
	if err != nil {
		s.log.Error().Err(err).Msg("purge reset codes failed")
		return
	}
	if cleared > 0 {
		s.log.Info().Int64("cleared", cleared).Msg("expired reset codes purged")
	}
}
