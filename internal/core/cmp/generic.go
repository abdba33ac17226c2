package cmp

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/utils/timing"
)

// SortCandidates orders the generic-accept click candidates. The default is
// shortest label first, on the assumption that short labels ("Accept") are
// less likely to be decoy links than longer ones ("Manage my options"). The
// policy is replaceable pending validation of that assumption.
var SortCandidates = func(candidates []Candidate[playwright.Locator]) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return len(candidates[i].Text) < len(candidates[j].Text)
	})
}

// GenericAccept knows no provider: it scans every frame for clickable
// elements whose text matches the accept or save vocabulary and clicks the
// first candidate that accepts a click, all frames in parallel.
func GenericAccept(ctx Context) error {
	frames := ctx.Page.Frames()
	ctx.Log.LogInfof("Trying generic consent accept on page with %d frames.", len(frames))

	selectorAccept := "text=/" + strings.Join(acceptPatterns, "|") + "/i"
	selectorSave := "text=/" + strings.Join(savePatterns, "|") + "/i"

	var found atomic.Bool
	err := timing.Run(func() error {
		var wg sync.WaitGroup
		for i, frame := range frames {
			wg.Add(1)
			go func(i int, frame playwright.Frame) {
				defer wg.Done()
				for _, selector := range []string{selectorAccept, selectorSave} {
					candidates, err := allWithText(frame.Locator(selector))
					if err != nil {
						continue
					}
					for j := range candidates {
						candidates[j].Text = normalizeSpace(candidates[j].Text)
					}
					if len(candidates) == 0 {
						continue
					}
					found.Store(true)
					SortCandidates(candidates)
					for _, c := range candidates {
						ctx.Log.LogInfof("Clicking in frame %d: %s", i, c.Text)
						if err := c.Element.Click(playwright.LocatorClickOptions{
							Timeout: playwright.Float(7000),
						}); err != nil {
							ctx.Log.Err("Failed to click", err)
							continue
						}
						return
					}
				}
			}(i, frame)
		}
		wg.Wait()
		return nil
	}, 30*time.Second, "generic accept timed out")
	if err != nil {
		return err
	}
	if !found.Load() {
		ctx.Log.Info().Msg("Found no matching elements.")
	}
	return nil
}

// GenericReject has no generic heuristic; rejecting requires provider
// knowledge of the preference UI.
func GenericReject(Context) error {
	return errors.New("not implemented")
}
