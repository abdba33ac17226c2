package cmp

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

func OnetrustAccept(ctx Context) error {
	acceptButton := ctx.Page.Locator(`
		#onetrust-accept-btn-handler:visible,
		.optanon-allow-all:visible,
		.optanon-button-allow:visible,
		#onetrust-pc-sdk #accept-recommended-btn-handler:visible
	`)
	if err := acceptButton.Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("OneTrust dialog accepted.")
	return nil
}

func OnetrustReject(ctx Context) error {
	page := ctx.Page
	if err := waitFor(page.Locator(`
		#onetrust-pc-btn-handler:visible,
		#onetrust-pc-sdk:visible
	`), 30*time.Second); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Found a OneTrust dialog.")

	if err := page.Locator("#onetrust-pc-btn-handler:visible").Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2000),
	}); err != nil {
		ctx.Log.Err("OneTrust: No more options button", err)
	}

	uncheck := func() {
		buttons := page.Locator(`
			.cookie-subgroup-handler:checked ~ label:visible,
			.category-switch-handler:checked ~ label:visible,
			.ot-obj-leg-btn-handler:visible
		`)
		if waitFor(buttons, 500*time.Millisecond) == nil {
			_ = clickAll(buttons)
		}
	}

	tabs := page.Locator("#onetrust-consent-sdk .category-menu-switch-handler")
	isTabbedLayout := waitFor(tabs, 2*time.Second) == nil

	if isTabbedLayout {
		all, err := tabs.All()
		if err != nil {
			return err
		}
		for _, tab := range all {
			if err := tab.Click(); err != nil {
				return err
			}
			uncheck()
		}
	} else {
		accordions := page.Locator(`
			input[ot-accordion=true]:not(:checked),
			button[ot-accordion=true][aria-expanded=false]
		`)
		if waitFor(accordions, 500*time.Millisecond) == nil {
			if err := clickAll(accordions); err != nil {
				ctx.Log.Err("OneTrust non-tabbed: no accordion", err)
			}
		}
		uncheck()
	}

	if err := page.Locator(`.ot-pc-refuse-all-handler:visible, .save-preference-btn-handler:visible`).Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("OneTrust dialog rejected.")
	return nil
}
