package cmp

import (
	"github.com/playwright-community/playwright-go"

	"admeasure/internal/logger"
)

// Context is the shared execution context every provider strategy operates
// on: the page under measurement, the visit's log channel, and a sink for
// provider-specific diagnostic artifacts.
type Context struct {
	Page  playwright.Page
	Log   *logger.Logger
	Store func(filename string, v any) error
}

// Provider is one CMP implementation with accept and reject procedures.
type Provider struct {
	Name   string
	Accept func(Context) error
	Reject func(Context) error
}

// Providers lists the named CMPs in the order they are raced. The generic
// fallback is not part of this set.
func Providers() []Provider {
	return []Provider{
		{Name: "quantcast", Accept: QuantcastAccept, Reject: QuantcastReject},
		{Name: "onetrust", Accept: OnetrustAccept, Reject: OnetrustReject},
		{Name: "sourcepoint", Accept: SourcepointAccept, Reject: SourcepointReject},
		{Name: "cookiebot", Accept: CookiebotAccept, Reject: CookiebotReject},
	}
}
