package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_TrailingEdge(t *testing.T) {
	clock := newFakeClock()
	var got []string
	d := NewDebouncer(clock, time.Second, func(v string) { got = append(got, v) })

	d.Schedule("A")
	clock.Advance(300 * time.Millisecond)
	d.Schedule("B")
	clock.Advance(300 * time.Millisecond)
	d.Schedule("C")

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, got, "must not fire before the window closes after the last call")
	assert.True(t, d.Pending())

	clock.Advance(time.Millisecond)
	require.Equal(t, []string{"C"}, got)
	assert.False(t, d.Pending())
	assert.Equal(t, 0, clock.Active())
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	clock := newFakeClock()
	var got []int
	d := NewDebouncer(clock, time.Second, func(v int) { got = append(got, v) })

	d.Schedule(1)
	clock.Advance(2 * time.Second)
	d.Schedule(2)
	clock.Advance(2 * time.Second)

	assert.Equal(t, []int{1, 2}, got)
}

func TestDebouncer_Stop(t *testing.T) {
	clock := newFakeClock()
	calls := 0
	d := NewDebouncer(clock, time.Second, func(int) { calls++ })

	d.Schedule(1)
	d.Stop()
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, calls)

	d.Schedule(2)
	clock.Advance(5 * time.Second)
	assert.Equal(t, 0, calls, "stopped debouncer ignores Schedule")

	d.Reset()
	d.Schedule(3)
	clock.Advance(time.Second)
	assert.Equal(t, 1, calls)
}

func TestDebouncer_StaleTimerDoesNotDeliver(t *testing.T) {
	clock := newFakeClock()
	var got []string
	d := NewDebouncer(clock, time.Second, func(v string) { got = append(got, v) })

	d.Schedule("old")
	d.mu.Lock()
	staleGen := d.gen
	d.mu.Unlock()

	d.Schedule("new")

	// a callback that lost the race with the newer Schedule
	d.fire(staleGen, "old")
	assert.Empty(t, got)

	clock.Advance(time.Second)
	assert.Equal(t, []string{"new"}, got)
}

func TestDebouncer_Defaults(t *testing.T) {
	d := NewDebouncer[int](nil, 0, func(int) {})
	assert.Equal(t, DefaultDebounceWindow, d.Window())
	assert.False(t, d.Pending())
}
