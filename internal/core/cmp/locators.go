package cmp

import (
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// waitFor blocks until the locator has at least one attached element.
// Absent optional UI elements are detected by letting this time out.
func waitFor(locator playwright.Locator, timeout time.Duration) error {
	return locator.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

// clickAll clicks every element the locator currently resolves to, in order.
func clickAll(locator playwright.Locator) error {
	all, err := locator.All()
	if err != nil {
		return err
	}
	for _, l := range all {
		if err := l.Click(); err != nil {
			return err
		}
	}
	return nil
}

// allWithText pairs each of the locator's elements with its trimmed text.
func allWithText(locator playwright.Locator) ([]Candidate[playwright.Locator], error) {
	texts, err := locator.AllTextContents()
	if err != nil {
		return nil, err
	}
	out := make([]Candidate[playwright.Locator], 0, len(texts))
	for i, text := range texts {
		out = append(out, Candidate[playwright.Locator]{
			Text:    strings.TrimSpace(text),
			Element: locator.Nth(i),
		})
	}
	return out, nil
}

func texts(cands []Candidate[playwright.Locator]) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Text)
	}
	return out
}

// waitForFrame resolves as soon as any frame of the page satisfies the
// condition, watching both frame events and a periodic rescan because frames
// can attach before the listeners are in place.
func waitForFrame(page playwright.Page, condition func(playwright.Frame) bool, timeout time.Duration) (playwright.Frame, error) {
	found := make(chan playwright.Frame, 1)
	check := func(frame playwright.Frame) {
		if condition(frame) {
			select {
			case found <- frame:
			default:
			}
		}
	}
	page.OnFrameAttached(check)
	page.OnFrameNavigated(check)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for _, frame := range page.Frames() {
		check(frame)
	}
	for {
		select {
		case frame := <-found:
			return frame, nil
		case <-ticker.C:
			for _, frame := range page.Frames() {
				check(frame)
			}
		case <-deadline:
			return nil, fmt.Errorf("timeout waiting for frame after %s", timeout)
		}
	}
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
