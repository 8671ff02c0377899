package circuit_breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBreaker_Lifecycle(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New(Config{Window: 4, FailureRatio: 0.5, Cooldown: time.Minute, Recovery: 2}).(*breaker)
	cb.now = func() time.Time { return now }

	ok := func() error { return nil }
	errSvc := errors.New("service error")
	fail := func() error { return errSvc }

	for i := 0; i < 10; i++ {
		require.NoError(t, cb.Call(ok))
	}
	require.Equal(t, Closed, cb.State())

	require.ErrorIs(t, cb.Call(fail), errSvc)
	require.Equal(t, Closed, cb.State())
	require.ErrorIs(t, cb.Call(fail), errSvc)
	require.Equal(t, Open, cb.State())

	called := false
	err := cb.Call(func() error { called = true; return nil })
	require.ErrorIs(t, err, ErrOpen)
	require.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(ok))
	require.Equal(t, HalfOpen, cb.State())

	require.ErrorIs(t, cb.Call(fail), errSvc)
	require.Equal(t, Open, cb.State(), "failed trial reopens the breaker")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Call(ok))
	require.NoError(t, cb.Call(ok))
	require.Equal(t, Closed, cb.State())
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()
	cb := New(Config{Window: 2, FailureRatio: 0.5, Cooldown: time.Hour})
	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, Open, cb.State())
	cb.Reset()
	require.Equal(t, Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}

func TestBreaker_HalfOpenCapsTrials(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := New(Config{Window: 2, FailureRatio: 0.5, Cooldown: time.Minute, Recovery: 2}).(*breaker)
	cb.now = func() time.Time { return now }

	_ = cb.Call(func() error { return errors.New("boom") })
	require.Equal(t, Open, cb.State())
	now = now.Add(2 * time.Minute)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- cb.Call(func() error {
				started <- struct{}{}
				<-release
				return nil
			})
		}()
	}
	<-started
	<-started
	require.Equal(t, HalfOpen, cb.State())

	called := false
	require.ErrorIs(t, cb.Call(func() error { called = true; return nil }), ErrOpen)
	require.False(t, called)

	close(release)
	require.NoError(t, <-results)
	require.NoError(t, <-results)
	require.Equal(t, Closed, cb.State())
	require.NoError(t, cb.Call(func() error { return nil }))
}
