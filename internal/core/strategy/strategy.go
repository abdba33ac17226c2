package strategy

import (
	"sort"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/core/cmp"
	"admeasure/internal/core/consent"
	"admeasure/internal/logger"
)

// Args is the execution context handed to every interaction strategy.
type Args struct {
	URL   string
	Page  playwright.Page
	Log   *logger.Logger
	Store func(filename string, v any) error
}

// Func is one named interaction strategy run against a visited page.
type Func func(Args) error

var registry = map[string]Func{
	"idle":           func(a Args) error { return Idle(a, idleMin, idleMax) },
	"click":          Click,
	"browse":         Browse,
	"consent_accept": consentAccept,
	"consent_reject": consentReject,
}

// Lookup resolves a strategy by its plan name.
func Lookup(name string) (Func, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Names lists the registered strategies, sorted.
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func consentAccept(a Args) error {
	engine := consent.NewEngine(consent.ModeAccept)
	if engine.Negotiate(cmpContext(a), consent.ModeAccept, a.URL) {
		return Idle(a, settleMin, settleMax)
	}
	return nil
}

func consentReject(a Args) error {
	engine := consent.NewEngine(consent.ModeReject)
	if engine.Negotiate(cmpContext(a), consent.ModeReject, a.URL) {
		return Idle(a, settleMin, settleMax)
	}
	return nil
}

func cmpContext(a Args) cmp.Context {
	return cmp.Context{Page: a.Page, Log: a.Log, Store: a.Store}
}
