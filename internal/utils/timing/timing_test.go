package timing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstantElapsedFormat(t *testing.T) {
	i := Now()
	i.mono = i.mono.Add(-4200 * time.Millisecond)
	assert.Equal(t, "4.20s", i.Elapsed())

	i.mono = Now().mono.Add(-42 * time.Second)
	assert.Equal(t, "42.0s", i.Elapsed())

	i.mono = Now().mono.Add(-(3*time.Minute + 12*time.Second))
	assert.Equal(t, "3m 12s", i.Elapsed())

	i.mono = Now().mono.Add(-(time.Hour + 4*time.Minute + 58*time.Second))
	assert.Equal(t, "1h 4m 58s", i.Elapsed())
}

func TestBetween(t *testing.T) {
	for range 100 {
		d := Between(2*time.Second, 7*time.Second)
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.Less(t, d, 7*time.Second)
	}
	assert.Equal(t, time.Second, Between(time.Second, time.Second))
}

func TestRetrySucceedsEventually(t *testing.T) {
	calls := 0
	v, err := Retry(func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	}, nil, 5, 0)

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	notified := 0
	_, err := Retry(func() (int, error) {
		calls++
		return 0, errors.New("down")
	}, func(error) { notified++ }, 3, 0)

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, notified)
}

func TestWithTimeoutReturnsResult(t *testing.T) {
	v, err := WithTimeout(func() (string, error) {
		return "done", nil
	}, time.Second, "op")

	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestWithTimeoutExpires(t *testing.T) {
	_, err := WithTimeout(func() (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	}, 10*time.Millisecond, "slow op")

	var timeout ErrTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "slow op", timeout.What)
	assert.Equal(t, "slow op", err.Error())
}

func TestRunPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	assert.ErrorIs(t, Run(func() error { return boom }, time.Second, "op"), boom)
	assert.NoError(t, Run(func() error { return nil }, time.Second, "op"))
}
