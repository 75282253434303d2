package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestLimiter_ThirtiethAdmittedThirtyFirstDenied(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(30, time.Minute, clock)

	for i := 1; i <= 30; i++ {
		require.True(t, l.Admit("session-a"), "request %d should be admitted", i)
		clock.advance(time.Second)
	}
	require.False(t, l.Admit("session-a"), "31st request within the window must be denied")
}

func TestLimiter_WindowReset(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(30, time.Minute, clock)

	for i := 0; i < 30; i++ {
		require.True(t, l.Admit("s"))
	}
	require.False(t, l.Admit("s"))

	// A bucket resets only once more than the window has elapsed since
	// the last recorded request.
	clock.advance(time.Minute)
	require.False(t, l.Admit("s"))

	clock.advance(time.Millisecond)
	require.True(t, l.Admit("s"))
}

func TestLimiter_SessionsIndependent(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(30, time.Minute, clock)

	for i := 0; i < 30; i++ {
		require.True(t, l.Admit("busy"))
	}
	require.False(t, l.Admit("busy"))
	require.True(t, l.Admit("quiet"))
	require.Equal(t, 2, l.ActiveSessions())
}

func TestLimiter_DenialNotRecorded(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1000, 0)}
	l := New(2, time.Minute, clock)

	require.True(t, l.Admit("s"))
	require.True(t, l.Admit("s"))
	require.False(t, l.Admit("s"))

	// The denial above must not refresh the window. Advancing past the
	// window from the last admitted request resets the bucket.
	clock.advance(time.Minute + time.Second)
	require.True(t, l.Admit("s"))
}
