package cmp

import (
	"regexp"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Sourcepoint renders its dialog in an iframe whose URL carries a consentUUID
// parameter; the privacy manager is a second such frame.

func sourcepointPopup(ctx Context, match, avoid []*regexp.Regexp) error {
	frame, err := waitForFrame(ctx.Page, func(f playwright.Frame) bool {
		return strings.Contains(f.URL(), "&consentUUID=")
	}, 30*time.Second)
	if err != nil {
		return err
	}
	ctx.Log.Info().Msg("Sourcepoint iframe found!")

	buttons := frame.Locator(".message-button:visible")
	if err := waitFor(buttons, 30*time.Second); err != nil {
		return err
	}
	candidates, err := allWithText(buttons)
	if err != nil {
		return err
	}
	if err := ctx.Store("sourcepoint-modal.json", texts(candidates)); err != nil {
		ctx.Log.Err("Error storing sourcepoint modal texts", err)
	}

	btn, err := FindMatching(candidates, match, avoid)
	if err != nil {
		return err
	}
	if err := btn.Element.Click(); err != nil {
		return err
	}
	ctx.Log.LogInfof("Button clicked: %s", btn.Text)
	return nil
}

func SourcepointAccept(ctx Context) error {
	if err := sourcepointPopup(ctx, Vocabulary.Accept, Vocabulary.Prefs); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Sourcepoint dialog accepted.")
	return nil
}

func SourcepointReject(ctx Context) error {
	if err := sourcepointPopup(ctx, Vocabulary.Prefs, Vocabulary.Accept); err != nil {
		return err
	}
	frame, err := waitForFrame(ctx.Page, func(f playwright.Frame) bool {
		return strings.Contains(f.URL(), "&consentUUID=") && strings.Contains(f.URL(), "/privacy-manager")
	}, 30*time.Second)
	if err != nil {
		return err
	}
	ctx.Log.Info().Msg("Found Sourcepoint privacy manager.")

	types := frame.Locator(".pm-type-toggle div:visible")
	buttons := frame.Locator(".message-button:visible")
	actions := frame.Locator(".page-action:visible")
	if err := waitFor(buttons, 30*time.Second); err != nil {
		return err
	}

	toggleOffAll := func() {
		accordions := frame.Locator(".accordion:not(.active)")
		if waitFor(accordions, time.Second) == nil {
			_ = clickAll(accordions)
		}
		toggles := frame.Locator(".reject-toggle:not(.choice)")
		if waitFor(toggles, time.Second) == nil {
			_ = clickAll(toggles)
		}
		switches := frame.Locator(`
			*[role=switch][aria-checked=true] span.slider,
			*[role=switch][aria-checked=true] span.off
		`)
		if waitFor(switches, time.Second) == nil {
			_ = clickAll(switches)
		}
	}

	actionCandidates := func(parents bool) ([]Candidate[playwright.Locator], error) {
		all, err := actions.All()
		if err != nil {
			return nil, err
		}
		out := make([]Candidate[playwright.Locator], 0, len(all))
		for _, l := range all {
			if parents {
				l = l.Locator("..")
			}
			text, err := l.TextContent()
			if err != nil {
				text = ""
			}
			out = append(out, Candidate[playwright.Locator]{Text: strings.TrimSpace(text), Element: l})
		}
		return out, nil
	}

	// Diagnostics for later analysis of unmatched manager layouts.
	typeTexts, _ := types.AllTextContents()
	buttonTexts, _ := buttons.AllTextContents()
	actionTexts, _ := actions.AllTextContents()
	parentCands, _ := actionCandidates(true)
	if err := ctx.Store("sourcepoint-manager.json", map[string]any{
		"types":         typeTexts,
		"buttons":       buttonTexts,
		"actions":       actionTexts,
		"actionParents": texts(parentCands),
	}); err != nil {
		ctx.Log.Err("Error storing sourcepoint manager texts", err)
	}

	// First, iterate through the different types (consent, legint)
	if waitFor(types, 2*time.Second) == nil {
		ctx.Log.Info().Msg("Sourcepoint: toggling type toggles.")
		all, err := types.All()
		if err != nil {
			return err
		}
		for _, t := range all {
			if err := t.Click(); err != nil {
				return err
			}
			toggleOffAll()
		}
	} else {
		ctx.Log.Info().Msg("Sourcepoint: no type toggles.")
		toggleOffAll()
	}

	ctx.Log.Info().Msg("Sourcepoint: Check for legitimate interest button...")
	if err := sourcepointObjectLegInt(ctx, actionCandidates); err != nil {
		ctx.Log.LogInfof("Sourcepoint: no legitimate interest button found: %v", err)
	} else {
		toggleOffAll()
	}

	// third, find the save button
	ctx.Log.Info().Msg("Sourcepoint: Find the save button.")
	candidates, err := allWithText(buttons)
	if err != nil {
		return err
	}
	save, err := FindMatching(candidates, Vocabulary.Save, Vocabulary.Accept)
	if err != nil {
		return err
	}
	if err := save.Element.Click(); err != nil {
		return err
	}
	ctx.Log.Info().Msg("Sourcepoint dialog rejected.")
	return nil
}

func sourcepointObjectLegInt(ctx Context, candidates func(parents bool) ([]Candidate[playwright.Locator], error)) error {
	direct, err := candidates(false)
	if err != nil {
		return err
	}
	action, err := FindMatching(direct, Vocabulary.LegInt, Vocabulary.Gvl)
	if err != nil {
		ctx.Log.Info().Msg("No immediate legitimate interest button found, trying parents...")
		parents, perr := candidates(true)
		if perr != nil {
			return perr
		}
		action, perr = FindMatching(parents, Vocabulary.LegInt, Vocabulary.Gvl)
		if perr != nil {
			return perr
		}
		action.Element = action.Element.Locator(".page-action:visible")
	}
	ctx.Log.LogInfof("Clicking legitimate interest button: %s", action.Text)
	return action.Element.Click()
}
