package browser

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admeasure/internal/logger"
)

type fakeContext struct {
	playwright.BrowserContext
	closed atomic.Bool
}

func (f *fakeContext) Close(...playwright.BrowserContextCloseOptions) error {
	f.closed.Store(true)
	return nil
}

// fakeLauncher counts launches and can be scripted to fail the first n times.
type fakeLauncher struct {
	launches atomic.Int32
	failures int32
}

func (f *fakeLauncher) launch() (playwright.BrowserContext, error) {
	n := f.launches.Add(1)
	if n <= f.failures {
		return nil, errors.New("browser process exited")
	}
	return &fakeContext{}, nil
}

func newTestSession(launcher *fakeLauncher) *Session {
	s := NewSession(logger.New("browser-test"), launcher.launch)
	s.backoff = time.Millisecond
	return s
}

func TestSessionStart(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSession(launcher)

	require.NoError(t, s.Start())
	assert.NotNil(t, s.Instance())
	assert.Equal(t, int32(1), launcher.launches.Load())
}

func TestSessionStartRetries(t *testing.T) {
	launcher := &fakeLauncher{failures: 2}
	s := newTestSession(launcher)

	require.NoError(t, s.Start())
	assert.Equal(t, int32(3), launcher.launches.Load())
}

func TestSessionStartGivesUp(t *testing.T) {
	launcher := &fakeLauncher{failures: 99}
	s := newTestSession(launcher)

	assert.Error(t, s.Start())
	assert.Equal(t, int32(3), launcher.launches.Load())
}

func TestSessionRestartReplacesInstance(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSession(launcher)
	require.NoError(t, s.Start())
	first := s.Instance().(*fakeContext)

	require.NoError(t, s.Restart())

	assert.True(t, first.closed.Load())
	assert.NotSame(t, first, s.Instance())
	assert.Equal(t, int32(2), launcher.launches.Load())
}

func TestSessionRestartSingleFlight(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSession(launcher)
	require.NoError(t, s.Start())

	// Two pages hit a dead browser at the same time; both must come back to
	// one usable instance after exactly one relaunch.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Restart()
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, int32(2), launcher.launches.Load())
	assert.NotNil(t, s.Instance())
}

func TestSessionRestartDebounced(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSession(launcher)
	require.NoError(t, s.Start())

	require.NoError(t, s.Restart())
	// Within the cooldown the second restart reuses the first one's outcome.
	require.NoError(t, s.Restart())
	assert.Equal(t, int32(2), launcher.launches.Load())
}

func TestSessionRestartAfterCooldown(t *testing.T) {
	launcher := &fakeLauncher{}
	s := newTestSession(launcher)
	s.cooldown = time.Millisecond
	require.NoError(t, s.Start())

	require.NoError(t, s.Restart())
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Restart())
	assert.Equal(t, int32(3), launcher.launches.Load())
}

func TestSessionCloseWithoutStart(t *testing.T) {
	s := newTestSession(&fakeLauncher{})
	s.Close()
}
