package consent

import (
	"fmt"
	"strings"

	"admeasure/internal/core/cmp"
)

// Mode selects which side of the dialog the negotiation drives.
type Mode string

const (
	ModeAccept Mode = "consent_accept"
	ModeReject Mode = "consent_reject"
)

// StrategyOutcome tags one provider strategy's result in a race.
type StrategyOutcome struct {
	Name string
	Err  error
}

// RaceAny runs all strategies concurrently and returns nil as soon as one
// succeeds; the losers keep running in the background. Only when every
// strategy has failed does it return an error aggregating all reasons.
func RaceAny(strategies []func() StrategyOutcome) error {
	results := make(chan StrategyOutcome, len(strategies))
	for _, s := range strategies {
		go func(s func() StrategyOutcome) {
			results <- s()
		}(s)
	}

	outcomes := make([]StrategyOutcome, 0, len(strategies))
	for range strategies {
		o := <-results
		if o.Err == nil {
			return nil
		}
		outcomes = append(outcomes, o)
	}

	reasons := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		reasons = append(reasons, fmt.Sprintf("%s: %v", o.Name, o.Err))
	}
	return fmt.Errorf("all strategies failed:\n  - %s", strings.Join(reasons, "\n  - "))
}

// Engine locates and operates a CMP dialog while polling the TCF API for the
// resulting consent state. Provider strategies race; the generic heuristic is
// the fallback once all of them have failed. Polling always runs: a page
// without a visible dialog can still expose an already-resolved API.
type Engine struct {
	Providers []cmp.Provider
	Generic   func(cmp.Context) error
	Poller    PollerConfig
}

func NewEngine(mode Mode) *Engine {
	generic := cmp.GenericAccept
	if mode == ModeReject {
		generic = cmp.GenericReject
	}
	return &Engine{
		Providers: cmp.Providers(),
		Generic:   generic,
		Poller:    DefaultPollerConfig(),
	}
}

// Negotiate drives one consent negotiation to its verdict and persists it as
// consent.json. It reports whether a definite consent signal was obtained;
// callers then give the site an idle window to react to the decision.
func (e *Engine) Negotiate(c cmp.Context, mode Mode, url string) bool {
	verb := "accept"
	if mode == ModeReject {
		verb = "reject"
	}
	c.Log.LogInfof("Looking for dialogs to %s...", verb)

	// The dialog search runs alongside the polling: operating the dialog is
	// what produces the events the poller is waiting for.
	go e.operateDialog(c, mode, verb)

	poller := NewPoller(c.Log, NewPageAPI(c.Page), e.Poller)
	res, state := poller.Run(string(mode), url)

	c.Log.LogInfof("TCF data (%s): cmpId %s consent %s, legInt %s.",
		state, fmtIntPtr(res.CmpID), fmtBoolPtr(res.Consent), fmtBoolPtr(res.LegInt))
	if err := c.Store("consent.json", res); err != nil {
		c.Log.Err("Error storing consent result", err)
	}
	return res.Consent != nil
}

func (e *Engine) operateDialog(c cmp.Context, mode Mode, verb string) {
	strategies := make([]func() StrategyOutcome, 0, len(e.Providers))
	for _, p := range e.Providers {
		run := p.Accept
		if mode == ModeReject {
			run = p.Reject
		}
		name := p.Name
		strategies = append(strategies, func() StrategyOutcome {
			return StrategyOutcome{Name: name, Err: run(c)}
		})
	}

	if err := RaceAny(strategies); err != nil {
		// Expected on pages without a known CMP; fall through to the
		// generic heuristic.
		c.Log.Err("dialog "+verb+" failed", err)
		if err := e.Generic(c); err != nil {
			c.Log.Err("generic dialog "+verb+" failed", err)
		}
	}
}

func fmtBoolPtr(b *bool) string {
	if b == nil {
		return "null"
	}
	return fmt.Sprintf("%t", *b)
}

func fmtIntPtr(i *int) string {
	if i == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *i)
}
