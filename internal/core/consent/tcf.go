package consent

import (
	"errors"
	"sync"
	"time"

	"admeasure/internal/logger"
	"admeasure/internal/utils/timing"
)

// Event statuses defined by the TCF in-page API. The two terminal statuses
// mean the CMP has settled on a consent state.
const (
	StatusTCLoaded           = "tcloaded"
	StatusCMPUIShown         = "cmpuishown"
	StatusUserActionComplete = "useractioncomplete"
	StatusFailed             = "failed"
)

// TCData is one consent state object as reported by the API. It is kept as a
// raw map so the full evidence survives into consent.json; typed accessors
// cover the fields the verdict needs.
type TCData map[string]any

func (d TCData) EventStatus() string {
	s, _ := d["eventStatus"].(string)
	return s
}

func (d TCData) CmpID() (int, bool) {
	return intField(d, "cmpId")
}

func (d TCData) purposeFlags(key string) (map[string]any, bool) {
	purpose, ok := d["purpose"].(map[string]any)
	if !ok {
		return nil, false
	}
	flags, ok := purpose[key].(map[string]any)
	return flags, ok
}

// Ping is the object returned by the API's "ping" command.
type Ping map[string]any

func (p Ping) CmpLoaded() bool {
	loaded, _ := p["cmpLoaded"].(bool)
	return loaded
}

func (p Ping) CmpID() (int, bool) {
	return intField(p, "cmpId")
}

func intField(m map[string]any, key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Result is the structured outcome of one consent negotiation, persisted as
// consent.json whether or not the protocol converged.
type Result struct {
	Version     int               `json:"version"`
	Strategy    string            `json:"strategy"`
	URL         string            `json:"url"`
	HasTcfAPI   bool              `json:"hasTcfApi"`
	TCData      map[string]TCData `json:"tcData"`
	PingWaiting Ping              `json:"pingWaiting"`
	PingLoaded  Ping              `json:"pingLoaded"`
	Consent     *bool             `json:"consent"`
	LegInt      *bool             `json:"legInt"`
	CmpID       *int              `json:"cmpId"`
}

func newResult(strategy, url string) *Result {
	return &Result{
		Version:  3,
		Strategy: strategy,
		URL:      url,
		TCData:   map[string]TCData{},
	}
}

// State of the TC-data polling loop.
type State int

const (
	StateNoAPI State = iota
	StatePolling
	StateResolved
	StateTimedOut
	StateAPILost
)

func (s State) String() string {
	switch s {
	case StateNoAPI:
		return "NoApi"
	case StatePolling:
		return "Polling"
	case StateResolved:
		return "Resolved"
	case StateTimedOut:
		return "TimedOut"
	case StateAPILost:
		return "ApiLost"
	}
	return "unknown"
}

// ErrAPILost is returned by API.WaitStable when the in-page API has
// disappeared for good.
var ErrAPILost = errors.New("__tcfapi not found anymore")

// API is the in-page TCF surface the poller drives. The production
// implementation evaluates scripts on a live page; tests substitute a fake.
type API interface {
	// WaitForAPI blocks until window.__tcfapi exists or the timeout passes.
	WaitForAPI(timeout time.Duration) error
	// PingWaiting is the one-shot synchronous status check; it returns a nil
	// ping if the CMP already reports itself loaded.
	PingWaiting() (Ping, error)
	// PingLoaded polls the API until it reports loaded, bounded by deadline.
	PingLoaded(deadline time.Duration) (Ping, error)
	// NextEvent waits for a TC-data event whose status is not yet in known.
	// After window it forces a direct status query, which gets grace before
	// the attempt counts as failed. ok is false for a "failed" event.
	NextEvent(known []string, window, grace time.Duration) (data TCData, ok bool, err error)
	// WaitStable waits out a navigation and re-confirms the API exists.
	WaitStable(navTimeout, apiTimeout time.Duration) error
}

// PollerConfig carries every protocol deadline so tests can shrink them.
type PollerConfig struct {
	Deadline       time.Duration // whole TC-data loop
	APIWait        time.Duration // initial wait for window.__tcfapi
	PingDeadline   time.Duration // pingLoaded polling
	ListenerWindow time.Duration // one listener attempt
	QueryGrace     time.Duration // direct query after the window
	NavTimeout     time.Duration // stabilization after a crashed evaluation
}

func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		Deadline:       120 * time.Second,
		APIWait:        30 * time.Second,
		PingDeadline:   60 * time.Second,
		ListenerWindow: 50 * time.Second,
		QueryGrace:     500 * time.Millisecond,
		NavTimeout:     5 * time.Second,
	}
}

// Poller runs the TCF polling protocol: three concurrent best-effort
// sub-operations (waiting ping, loaded ping, TC-data loop) triangulating the
// consent state from whatever signals the CMP actually delivers.
type Poller struct {
	log *logger.Logger
	api API
	cfg PollerConfig
}

func NewPoller(log *logger.Logger, api API, cfg PollerConfig) *Poller {
	return &Poller{log: log, api: api, cfg: cfg}
}

// Run drives the protocol to completion and derives the verdict. It never
// fails: an absent API or a timeout yields a result with null fields.
func (p *Poller) Run(strategy, url string) (*Result, State) {
	res := newResult(strategy, url)

	p.log.Info().Msg("Waiting for __tcfapi...")
	if err := p.api.WaitForAPI(p.cfg.APIWait); err != nil {
		p.log.Err("__tcfapi not found", err)
		p.derive(res)
		return res, StateNoAPI
	}
	p.log.Info().Msg("__tcfapi found! Querying status...")
	res.HasTcfAPI = true

	state := StatePolling
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		ping, err := p.api.PingWaiting()
		if err != nil {
			p.log.Err("Error getting pingWaiting", err)
			return
		}
		res.PingWaiting = ping
		p.log.Info().Msg("Got pingWaiting.")
	}()

	go func() {
		defer wg.Done()
		ping, err := p.api.PingLoaded(p.cfg.PingDeadline)
		if err != nil {
			p.log.Err("Error getting pingLoaded", err)
			return
		}
		res.PingLoaded = ping
		p.log.Info().Msg("Got pingLoaded.")
	}()

	go func() {
		defer wg.Done()
		state = p.pollTCData(res)
		p.log.LogInfof("TC data polling finished: %s", state)
	}()

	wg.Wait()
	p.derive(res)
	return res, state
}

// pollTCData accumulates one TC-data object per distinct event status until a
// terminal status arrives, the deadline passes, or the API disappears.
func (p *Poller) pollTCData(res *Result) State {
	deadline := time.Now().Add(p.cfg.Deadline)
	ok := true

	for {
		if res.TCData[StatusUserActionComplete] != nil || res.TCData[StatusTCLoaded] != nil {
			return StateResolved
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return StateTimedOut
		}

		if !ok {
			// The last evaluation crashed, hopefully because of a navigation
			// triggered by the consent action. Wait for the page to settle.
			p.log.Info().Msg("TC data: waiting for page to stabilize...")
			if err := p.api.WaitStable(p.cfg.NavTimeout, p.cfg.APIWait); err != nil {
				p.log.Err("__tcfapi not found anymore", err)
				return StateAPILost
			}
		}

		p.log.Info().Msg("Trying to get more TC data...")
		known := make([]string, 0, len(res.TCData))
		for k := range res.TCData {
			known = append(known, k)
		}

		type event struct {
			data TCData
			ok   bool
		}
		ev, err := timing.WithTimeout(func() (event, error) {
			data, success, err := p.api.NextEvent(known, p.cfg.ListenerWindow, p.cfg.QueryGrace)
			return event{data, success}, err
		}, remaining, "getTCData timed out")
		var timedOut timing.ErrTimeout
		if errors.As(err, &timedOut) {
			return StateTimedOut
		}
		if err != nil {
			p.log.Err("TC Data evaluation failed", err)
			ok = false
			continue
		}
		ok = true

		key := StatusFailed
		if ev.ok {
			key = ev.data.EventStatus()
		}
		if _, seen := res.TCData[key]; !seen {
			res.TCData[key] = ev.data
		}
	}
}

// derive computes the consent verdict: any purpose-consent flag set means
// consent, analogously for legitimate interest, null when undeterminable.
// cmpId comes from whichever source reported one first.
func (p *Poller) derive(res *Result) {
	tc := res.TCData[StatusUserActionComplete]
	if tc == nil {
		tc = res.TCData[StatusTCLoaded]
	}

	if tc != nil {
		if flags, ok := tc.purposeFlags("consents"); ok {
			res.Consent = boolPtr(anyFlagSet(flags))
		}
		if flags, ok := tc.purposeFlags("legitimateInterests"); ok {
			res.LegInt = boolPtr(anyFlagSet(flags))
		}
		if id, ok := tc.CmpID(); ok {
			res.CmpID = &id
		}
	}
	if res.CmpID == nil && res.PingLoaded != nil {
		if id, ok := res.PingLoaded.CmpID(); ok {
			res.CmpID = &id
		}
	}
	if res.CmpID == nil && res.PingWaiting != nil {
		if id, ok := res.PingWaiting.CmpID(); ok {
			res.CmpID = &id
		}
	}
}

func anyFlagSet(flags map[string]any) bool {
	for _, v := range flags {
		if b, ok := v.(bool); ok && b {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
