package cmp

import (
	"time"

	"github.com/playwright-community/playwright-go"
)

func CookiebotAccept(ctx Context) error {
	accept := ctx.Page.Locator(`
		#CybotCookiebotDialogBodyLevelButtonLevelOptinAllowAll:visible,
		#CybotCookiebotDialogBodyButtonAccept:visible
	`)
	if err := accept.First().Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Cookiebot dialog accepted.")
	return nil
}

func CookiebotReject(ctx Context) error {
	page := ctx.Page
	if err := waitFor(page.Locator("#CybotCookiebotDialog:visible"), 30*time.Second); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Found a Cookiebot dialog.")

	// The decline shortcut exists on most but not all installations.
	decline := page.Locator(`
		#CybotCookiebotDialogBodyButtonDecline:visible,
		#CybotCookiebotDialogBodyLevelButtonLevelOptinDeclineAll:visible
	`)
	if err := decline.First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2000),
	}); err == nil {
		ctx.Log.Info().Msg("Cookiebot dialog rejected.")
		return nil
	}

	// Otherwise untick the category checkboxes and save the selection.
	if err := page.Locator("#CybotCookiebotDialogBodyLevelDetailsButton:visible").Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(2000),
	}); err != nil {
		ctx.Log.Err("Cookiebot: no details button", err)
	}

	checked := page.Locator(`
		#CybotCookiebotDialogBodyLevelButtonPreferences:checked,
		#CybotCookiebotDialogBodyLevelButtonStatistics:checked,
		#CybotCookiebotDialogBodyLevelButtonMarketing:checked
	`)
	if waitFor(checked, 500*time.Millisecond) == nil {
		_ = clickAll(checked)
	}

	buttons := page.Locator("#CybotCookiebotDialog button:visible, #CybotCookiebotDialog a.CybotCookiebotDialogBodyButton:visible")
	candidates, err := allWithText(buttons)
	if err != nil {
		return err
	}
	if err := ctx.Store("cookiebot-dialog.json", texts(candidates)); err != nil {
		ctx.Log.Err("Error storing cookiebot button texts", err)
	}
	save, err := FindMatching(candidates, Vocabulary.Save, Vocabulary.Accept)
	if err != nil {
		return err
	}
	if err := save.Element.Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Cookiebot dialog rejected.")
	return nil
}
