package consent

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admeasure/internal/logger"
)

type fakeEvent struct {
	data TCData
	ok   bool
	err  error
}

type fakeAPI struct {
	hasAPI      bool
	pingWaiting Ping
	pingLoaded  Ping
	events      []fakeEvent
	idx         int
	stableErr   error
	knownSeen   [][]string
}

func (f *fakeAPI) WaitForAPI(time.Duration) error {
	if f.hasAPI {
		return nil
	}
	return errors.New("window.__tcfapi not found")
}

func (f *fakeAPI) PingWaiting() (Ping, error) { return f.pingWaiting, nil }

func (f *fakeAPI) PingLoaded(time.Duration) (Ping, error) { return f.pingLoaded, nil }

func (f *fakeAPI) NextEvent(known []string, _, _ time.Duration) (TCData, bool, error) {
	f.knownSeen = append(f.knownSeen, known)
	if f.idx >= len(f.events) {
		// No more scripted events; stall until the poller's deadline fires.
		time.Sleep(5 * time.Second)
		return nil, false, errors.New("stalled")
	}
	ev := f.events[f.idx]
	f.idx++
	return ev.data, ev.ok, ev.err
}

func (f *fakeAPI) WaitStable(_, _ time.Duration) error { return f.stableErr }

func testPollerConfig() PollerConfig {
	return PollerConfig{
		Deadline:       300 * time.Millisecond,
		APIWait:        10 * time.Millisecond,
		PingDeadline:   10 * time.Millisecond,
		ListenerWindow: 10 * time.Millisecond,
		QueryGrace:     time.Millisecond,
		NavTimeout:     time.Millisecond,
	}
}

func runPoller(t *testing.T, api *fakeAPI) (*Result, State) {
	t.Helper()
	p := NewPoller(logger.New("tcf-test"), api, testPollerConfig())
	return p.Run("consent_accept", "https://site.example/")
}

func TestPollerNoAPI(t *testing.T) {
	res, state := runPoller(t, &fakeAPI{hasAPI: false})

	assert.Equal(t, StateNoAPI, state)
	assert.False(t, res.HasTcfAPI)
	assert.Empty(t, res.TCData)
	assert.Nil(t, res.Consent)
	assert.Nil(t, res.LegInt)
	assert.Nil(t, res.CmpID)
}

func TestPollerResolvesOnTCLoaded(t *testing.T) {
	api := &fakeAPI{
		hasAPI:      true,
		pingWaiting: Ping{"cmpLoaded": false},
		events: []fakeEvent{
			{data: TCData{"eventStatus": "cmpuishown"}, ok: true},
			{data: TCData{
				"eventStatus": "tcloaded",
				"cmpId":       float64(10),
				"purpose": map[string]any{
					"consents": map[string]any{"1": true, "2": false},
				},
			}, ok: true},
		},
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateResolved, state)
	assert.True(t, res.HasTcfAPI)
	require.NotNil(t, res.Consent)
	assert.True(t, *res.Consent)
	assert.Nil(t, res.LegInt)
	require.NotNil(t, res.CmpID)
	assert.Equal(t, 10, *res.CmpID)
	assert.Len(t, res.TCData, 2)
}

func TestPollerConsentFalseWhenAllFlagsCleared(t *testing.T) {
	api := &fakeAPI{
		hasAPI: true,
		events: []fakeEvent{
			{data: TCData{
				"eventStatus": "useractioncomplete",
				"purpose": map[string]any{
					"consents":            map[string]any{"1": false, "2": false},
					"legitimateInterests": map[string]any{"1": false},
				},
			}, ok: true},
		},
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateResolved, state)
	require.NotNil(t, res.Consent)
	assert.False(t, *res.Consent)
	require.NotNil(t, res.LegInt)
	assert.False(t, *res.LegInt)
}

func TestPollerDeduplicatesByStatus(t *testing.T) {
	api := &fakeAPI{
		hasAPI: true,
		events: []fakeEvent{
			{data: TCData{"eventStatus": "cmpuishown"}, ok: true},
			{data: TCData{"eventStatus": "cmpuishown", "marker": "second"}, ok: true},
			{data: TCData{"eventStatus": "tcloaded"}, ok: true},
		},
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateResolved, state)
	assert.Len(t, res.TCData, 2)
	assert.Nil(t, res.TCData[StatusCMPUIShown]["marker"])

	// After the first event the poller must announce what it already has.
	require.GreaterOrEqual(t, len(api.knownSeen), 2)
	assert.Empty(t, api.knownSeen[0])
	assert.Contains(t, api.knownSeen[1], StatusCMPUIShown)
}

func TestPollerTimesOut(t *testing.T) {
	res, state := runPoller(t, &fakeAPI{hasAPI: true})

	assert.Equal(t, StateTimedOut, state)
	assert.True(t, res.HasTcfAPI)
	assert.Nil(t, res.Consent)
}

func TestPollerAPILost(t *testing.T) {
	api := &fakeAPI{
		hasAPI:    true,
		events:    []fakeEvent{{err: errors.New("execution context destroyed")}},
		stableErr: ErrAPILost,
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateAPILost, state)
	assert.True(t, res.HasTcfAPI)
	assert.Nil(t, res.Consent)
}

func TestPollerRecordsFailedStatus(t *testing.T) {
	api := &fakeAPI{
		hasAPI: true,
		events: []fakeEvent{{data: TCData{"listener": "gone"}, ok: false}},
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateTimedOut, state)
	assert.Contains(t, res.TCData, StatusFailed)
}

func TestPollerCmpIDFallsBackToPings(t *testing.T) {
	api := &fakeAPI{
		hasAPI:     true,
		pingLoaded: Ping{"cmpLoaded": true, "cmpId": float64(6)},
	}
	res, state := runPoller(t, api)

	assert.Equal(t, StateTimedOut, state)
	require.NotNil(t, res.CmpID)
	assert.Equal(t, 6, *res.CmpID)
}

func TestDerivePrefersUserActionComplete(t *testing.T) {
	p := NewPoller(logger.New("tcf-test"), &fakeAPI{}, testPollerConfig())
	res := newResult("consent_reject", "https://site.example/")
	res.TCData[StatusTCLoaded] = TCData{
		"cmpId":   float64(5),
		"purpose": map[string]any{"consents": map[string]any{"1": true}},
	}
	res.TCData[StatusUserActionComplete] = TCData{
		"cmpId":   float64(7),
		"purpose": map[string]any{"consents": map[string]any{"1": false}},
	}

	p.derive(res)

	require.NotNil(t, res.Consent)
	assert.False(t, *res.Consent)
	require.NotNil(t, res.CmpID)
	assert.Equal(t, 7, *res.CmpID)
}
