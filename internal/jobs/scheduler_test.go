package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	calls []time.Time
	err   error
}

func (f *fakePurger) ClearExpiredResetCodes(_ context.Context, now time.Time) (int64, error) {
	f.calls = append(f.calls, now)
	return 2, f.err
}

func TestPurgeResetCodesUsesUTCNow(t *testing.T) {
	purger := &fakePurger{}
	s := NewScheduler(purger, zerolog.Nop())
	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.FixedZone("X", 3600))
	s.now = func() time.Time { return fixed }

	s.PurgeResetCodes()

	require.Len(t, purger.calls, 1)
	assert.Equal(t, time.UTC, purger.calls[0].Location())
	assert.True(t, purger.calls[0].Equal(fixed))
}

func TestPurgeResetCodesSurvivesErrors(t *testing.T) {
	purger := &fakePurger{err: errors.New("db down")}
	s := NewScheduler(purger, zerolog.Nop())
	assert.NotPanics(t, s.PurgeResetCodes)
}

func TestSchedulerStartStop(t *testing.T) {
	s := NewScheduler(&fakePurger{}, zerolog.Nop())
	require.NoError(t, s.Start())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
