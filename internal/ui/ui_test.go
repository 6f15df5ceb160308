package ui

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_TryLockTimesOut(t *testing.T) {
	l := NewLock()
	require.True(t, l.TryLock(0))

	start := time.Now()
	assert.False(t, l.TryLock(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	l.Unlock()
	assert.True(t, l.TryLock(0))
	l.Unlock()
}

func TestLock_TryLockWaits(t *testing.T) {
	l := NewLock()
	l.Lock()
	go func() {
		time.Sleep(5 * time.Millisecond)
		l.Unlock()
	}()
	assert.True(t, l.TryLock(time.Second))
	l.Unlock()
}

func TestLock_UnlockUnlockedPanics(t *testing.T) {
	assert.Panics(t, func() { NewLock().Unlock() })
}

func TestLoop_Order(t *testing.T) {
	loop := NewLoop(nil)
	base := loop.Now()

	var got []string
	loop.OnTick(func(time.Time) { got = append(got, "hook") })
	loop.NewTimer(time.Second, func(*Timer) { got = append(got, "timer") })
	loop.Post(func() { got = append(got, "event") })

	loop.Tick(base.Add(time.Second))
	assert.Equal(t, []string{"event", "timer", "hook"}, got)
}

func TestLoop_PostFromGoroutines(t *testing.T) {
	loop := NewLoop(nil)
	var wg sync.WaitGroup
	n := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop.Post(func() { n++ })
		}()
	}
	wg.Wait()
	loop.Tick(loop.Now())
	assert.Equal(t, 50, n)
}

func TestTimer_RepeatCount(t *testing.T) {
	loop := NewLoop(nil)
	base := loop.Now()

	fired := 0
	tm := loop.NewTimer(100*time.Millisecond, func(*Timer) { fired++ })
	tm.SetRepeatCount(1)

	loop.Tick(base.Add(50 * time.Millisecond))
	assert.Zero(t, fired, "not due yet")
	loop.Tick(base.Add(100 * time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.True(t, tm.Deleted())
	assert.Zero(t, loop.Timers())

	loop.Tick(base.Add(time.Second))
	assert.Equal(t, 1, fired)
}

func TestTimer_DeleteInsideCallback(t *testing.T) {
	loop := NewLoop(nil)
	base := loop.Now()

	fired := 0
	loop.NewTimer(time.Second, func(tm *Timer) {
		fired++
		tm.Delete()
		tm.Delete()
	})
	for i := 1; i <= 3; i++ {
		loop.Tick(base.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 1, fired)
}

func TestTimer_Periodic(t *testing.T) {
	loop := NewLoop(nil)
	base := loop.Now()

	fired := 0
	loop.NewTimer(time.Second, func(*Timer) { fired++ })
	for i := 1; i <= 5; i++ {
		loop.Tick(base.Add(time.Duration(i) * time.Second))
	}
	assert.Equal(t, 5, fired)
	assert.Equal(t, 1, loop.Timers())
}
