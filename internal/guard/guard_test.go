package guard_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/partner-chat/internal/guard"
)

func TestGuard_RejectsWhileInFlight(t *testing.T) {
	g := guard.New()

	release, err := g.Acquire("s1")
	require.NoError(t, err)
	assert.True(t, g.InFlight("s1"))

	_, err = g.Acquire("s1")
	assert.ErrorIs(t, err, guard.ErrInFlight)

	// other keys are independent
	releaseOther, err := g.Acquire("s2")
	require.NoError(t, err)
	releaseOther()

	release()
	release()
	assert.False(t, g.InFlight("s1"))

	release, err = g.Acquire("s1")
	require.NoError(t, err)
	release()
}

func TestGuard_StaleReleaseKeepsNewAdmission(t *testing.T) {
	g := guard.New()

	first, err := g.Acquire("s1")
	require.NoError(t, err)
	first()

	second, err := g.Acquire("s1")
	require.NoError(t, err)
	defer second()

	first()
	assert.True(t, g.InFlight("s1"))
}

func TestGuard_ConcurrentAcquireAdmitsOne(t *testing.T) {
	g := guard.New()

	var admitted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := g.Acquire("s1"); err == nil {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), admitted.Load())
}

func TestGuard_Do(t *testing.T) {
	g := guard.New()
	ctx := context.Background()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, "s1", func(context.Context) error {
			close(entered)
			<-unblock
			return nil
		})
	}()
	<-entered

	err := g.Do(ctx, "s1", func(context.Context) error {
		t.Fatal("duplicate call must not run")
		return nil
	})
	assert.ErrorIs(t, err, guard.ErrInFlight)

	close(unblock)
	require.NoError(t, <-done)
	assert.False(t, g.InFlight("s1"))
}

func TestGuard_Throttle(t *testing.T) {
	g := guard.New(guard.WithMinInterval(80 * time.Millisecond))

	release, err := g.Acquire("s1")
	require.NoError(t, err)
	release()

	_, err = g.Acquire("s1")
	assert.ErrorIs(t, err, guard.ErrThrottled)

	time.Sleep(100 * time.Millisecond)
	release, err = g.Acquire("s1")
	require.NoError(t, err)
	release()

	g.Forget("s1")
	release, err = g.Acquire("s1")
	require.NoError(t, err, "forgotten key starts fresh")
	release()
}

func TestGuard_Debounce(t *testing.T) {
	g := guard.New()

	var mu sync.Mutex
	var ran []int
	done := make(chan struct{})

	for i := 1; i <= 5; i++ {
		i := i
		g.Debounce("s1", 40*time.Millisecond, func() {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
			close(done)
		})
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never ran")
	}
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{5}, ran)
}

func TestGuard_DebounceCancel(t *testing.T) {
	g := guard.New()

	var ran atomic.Bool
	g.Debounce("s1", 20*time.Millisecond, func() { ran.Store(true) })
	g.Cancel("s1")

	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}
