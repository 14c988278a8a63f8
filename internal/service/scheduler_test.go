package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestNextDaily(t *testing.T) {
	shanghai, err := time.LoadLocation("Asia/Shanghai")
	require.NoError(t, err)
	at := 3 * time.Hour

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before today's slot",
			now:  time.Date(2025, 1, 25, 1, 0, 0, 0, shanghai),
			want: time.Date(2025, 1, 25, 3, 0, 0, 0, shanghai),
		},
		{
			name: "exactly at the slot moves to tomorrow",
			now:  time.Date(2025, 1, 25, 3, 0, 0, 0, shanghai),
			want: time.Date(2025, 1, 26, 3, 0, 0, 0, shanghai),
		},
		{
			name: "after the slot",
			now:  time.Date(2025, 1, 25, 12, 0, 0, 0, shanghai),
			want: time.Date(2025, 1, 26, 3, 0, 0, 0, shanghai),
		},
		{
			name: "other zone input is converted",
			now:  time.Date(2025, 1, 31, 20, 0, 0, 0, time.UTC), // 2025-02-01 04:00 Shanghai
			want: time.Date(2025, 2, 2, 3, 0, 0, 0, shanghai),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextDaily(tt.now, at, shanghai)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestScheduler_EveryRunsRepeatedly(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	var runs, failures atomic.Int32
	s.Every("tick", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})
	s.Every("failing", 5*time.Millisecond, func(ctx context.Context) error {
		failures.Add(1)
		return errors.New("boom")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 && failures.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestScheduler_RecoversFromPanic(t *testing.T) {
	s := NewScheduler(zerolog.Nop())

	var runs atomic.Int32
	s.Every("panicky", 5*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		panic("bad task")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestScheduler_DailyWaitsForSlot(t *testing.T) {
	now := time.Date(2025, 1, 25, 12, 0, 0, 0, time.UTC)
	s := NewScheduler(zerolog.Nop(), WithSchedulerClock(func() time.Time { return now }))

	var runs atomic.Int32
	s.Daily("retention", 3*time.Hour, time.UTC, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Run(ctx))
	assert.Zero(t, runs.Load())
}

func TestScheduler_NoTasks(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	assert.Error(t, s.Run(context.Background()))
}

func TestScheduler_RejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		s := NewScheduler(zerolog.Nop())

		var runs atomic.Int32
		s.Every("collect", interval, func(ctx context.Context) error {
			runs.Add(1)
			return nil
		})

		err := s.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collect")
		assert.Zero(t, runs.Load(), "no task may run when the schedule is rejected")
	}
}
