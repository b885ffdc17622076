package scheduler

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

func TestNextAlignedUnaligned(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 17, 0, time.UTC)
	next := nextAligned(now, 30*time.Second, -1)
	assert.Equal(t, now.Add(30*time.Second), next)
}

func TestNextAlignedSecondOfMinute(t *testing.T) {
	// At :17, a minute task aligned to :30 first runs at :30 of the
	// same minute.
	now := time.Date(2024, 3, 1, 12, 0, 17, 0, time.UTC)
	next := nextAligned(now, time.Minute, 30)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC), next)

	// At :45 the same task waits for the next minute's :30.
	now = time.Date(2024, 3, 1, 12, 0, 45, 0, time.UTC)
	next = nextAligned(now, time.Minute, 30)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 30, 0, time.UTC), next)

	// Exactly on the boundary schedules the next interval, not now.
	now = time.Date(2024, 3, 1, 12, 0, 30, 0, time.UTC)
	next = nextAligned(now, time.Minute, 30)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 1, 30, 0, time.UTC), next)
}

func TestRunDueExecutesAndReschedules(t *testing.T) {
	s := New(zerolog.Nop())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	var runs atomic.Int32
	s.Add(Task{
		Name:     "tick",
		Every:    30 * time.Second,
		AtSecond: -1,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	s.mu.Lock()
	s.tasks[0].nextRun = clock
	s.mu.Unlock()

	s.runDue(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	// Not due again until the interval elapses.
	clock = clock.Add(10 * time.Second)
	s.runDue(context.Background())
	assert.Equal(t, int32(1), runs.Load())

	clock = clock.Add(25 * time.Second)
	s.runDue(context.Background())
	assert.Equal(t, int32(2), runs.Load())
}

func TestTasksRunSequentiallyInOrder(t *testing.T) {
	s := New(zerolog.Nop())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		s.Add(Task{
			Name:  name,
			Every: time.Minute,
			Run: func(ctx context.Context) error {
				order = append(order, name)
				return nil
			},
		})
	}
	s.mu.Lock()
	for _, task := range s.tasks {
		task.nextRun = clock
	}
	s.mu.Unlock()

	s.runDue(context.Background())
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestFailingAndPanickingTasksDoNotStopOthers(t *testing.T) {
	s := New(zerolog.Nop())

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	var ran bool
	s.Add(Task{Name: "bad", Every: time.Minute, Run: func(ctx context.Context) error {
		return errors.New("boom")
	}})
	s.Add(Task{Name: "worse", Every: time.Minute, Run: func(ctx context.Context) error {
		panic("boom")
	}})
	s.Add(Task{Name: "good", Every: time.Minute, Run: func(ctx context.Context) error {
		ran = true
		return nil
	}})

	s.mu.Lock()
	for _, task := range s.tasks {
		task.nextRun = clock
	}
	s.mu.Unlock()

	require.NotPanics(t, func() { s.runDue(context.Background()) })
	assert.True(t, ran)
}

func TestStartStop(t *testing.T) {
	s := New(zerolog.Nop())
	s.Add(Task{Name: "noop", Every: time.Hour, Run: func(ctx context.Context) error {
		return nil
	}})

	s.Start()
	s.Stop()
	// Second Stop is a no-op.
	s.Stop()
}
