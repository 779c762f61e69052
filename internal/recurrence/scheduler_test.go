package recurrence

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	owners []int64
	sweeps int
	err    error
	mu     sync.Mutex
}

func (c *countingSweeper) ProcessAllDue(context.Context) (SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweeps++
	return SweepResult{}, c.err
}

func (c *countingSweeper) ProcessOwner(_ context.Context, ownerID int64) (SweepResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners = append(c.owners, ownerID)
	return SweepResult{Created: 2, Processed: 1}, nil
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweeps
}

func TestScheduler_RunsUntilCancelled(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("database locked")}
	scheduler := NewScheduler(sweeper, 5*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sweeper.count() >= 3 }, time.Second, time.Millisecond,
		"sweep errors must not stop the loop")
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestScheduler_DefaultsAndProcessOwner(t *testing.T) {
	sweeper := &countingSweeper{}
	scheduler := NewScheduler(sweeper, 0, false)
	assert.Equal(t, DefaultInterval, scheduler.interval)

	result, err := scheduler.ProcessOwner(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, []int64{7}, sweeper.owners)
	assert.Zero(t, sweeper.count())
}
