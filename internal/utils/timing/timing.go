package timing

import (
	"fmt"
	"math/rand"
	"time"
)

// Instant marks a point in time and renders elapsed durations compactly
// ("4.20s", "3m 12s", "1h 4m 58s").
type Instant struct {
	Timestamp time.Time
	mono      time.Time
}

func Now() Instant {
	t := time.Now()
	return Instant{Timestamp: t, mono: t}
}

func (i Instant) Elapsed() string {
	d := time.Since(i.mono)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := d.Seconds() - float64(h*3600+m*60)

	var sec string
	switch {
	case h == 0 && m == 0 && s <= 10:
		sec = fmt.Sprintf("%.2fs", s)
	case h == 0 && m == 0:
		sec = fmt.Sprintf("%.1fs", s)
	default:
		sec = fmt.Sprintf("%ds", int(s))
	}

	ret := sec
	if m > 0 || h > 0 {
		ret = fmt.Sprintf("%dm %s", m, ret)
	}
	if h > 0 {
		ret = fmt.Sprintf("%dh %s", h, ret)
	}
	return ret
}

// Between returns a random duration in [min, max).
func Between(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// Retry runs fn up to attempts times, sleeping backoff between failures.
// The last error is returned once attempts are exhausted.
func Retry[T any](fn func() (T, error), onRetry func(err error), attempts int, backoff time.Duration) (T, error) {
	var zero T
	for i := 1; ; i++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if i == attempts {
			return zero, err
		}
		if onRetry != nil {
			onRetry(err)
		}
		time.Sleep(backoff)
	}
}

// ErrTimeout is returned by WithTimeout when fn does not finish in time.
type ErrTimeout struct {
	After time.Duration
	What  string
}

func (e ErrTimeout) Error() string {
	if e.What != "" {
		return e.What
	}
	return fmt.Sprintf("timeout after %s", e.After)
}

// WithTimeout races fn against a deadline. fn keeps running in its goroutine
// after a timeout; callers that need cleanup must arrange it themselves.
func WithTimeout[T any](fn func() (T, error), timeout time.Duration, msg string) (T, error) {
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-time.After(timeout):
		var zero T
		return zero, ErrTimeout{After: timeout, What: msg}
	}
}

// Run is WithTimeout for functions without a result.
func Run(fn func() error, timeout time.Duration, msg string) error {
	_, err := WithTimeout(func() (struct{}, error) { return struct{}{}, fn() }, timeout, msg)
	return err
}
