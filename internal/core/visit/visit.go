// Package visit drives individual page visits and schedules them across a
// shared browser session.
package visit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/config"
	"admeasure/internal/core/browser"
	"admeasure/internal/core/har"
	"admeasure/internal/core/strategy"
	"admeasure/internal/logger"
	"admeasure/internal/utils/jsonio"
	"admeasure/internal/utils/timing"
)

const (
	openTimeout     = 60 * time.Second
	openAttempts    = 2
	openBackoff     = 30 * time.Second
	strategyTimeout = 5 * time.Minute
	artifactTimeout = 30 * time.Second
	pageCloseGrace  = 30 * time.Second

	harBodyLimit = 1 << 20
)

// Visitor runs one job's visits against a shared browser session. Measure
// toggles artifact capture: prime visits warm the profile and only record a
// body-less HAR.
type Visitor struct {
	Session  *browser.Session
	Plan     *config.MeasurementPlan
	Strategy strategy.Func
	DataDir  string
	Measure  bool
}

// VisitPage opens the task's URL in a fresh page, runs the interaction
// strategy, captures the configured artifacts and closes the page. Failures
// inside the visit are logged, not returned; only a broken output directory
// is fatal to the run.
func (v *Visitor) VisitPage(task Task) error {
	dir := filepath.Join(v.DataDir, task.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create visit dir: %w", err)
	}

	history := logger.NewHistory()
	log := logger.NewWithHistory(task.ID, history)
	store := func(filename string, val any) error {
		return jsonio.WriteFile(filepath.Join(dir, filename), val)
	}

	if v.Measure && v.Plan.Log.Console {
		defer func() {
			if err := store("console.json", history.Messages()); err != nil {
				log.Err("Storing console log", err)
			}
		}()
	}

	log.Info().Msgf("Visiting %s", task.URL)
	start := timing.Now()

	page, err := v.openPage(log)
	if err != nil {
		log.Err("Could not open page", err)
		return nil
	}
	logConsole(page, history, task.ID)

	var recorder *har.Recorder
	if v.Plan.Log.Har {
		bodyLimit := -1
		if v.Measure {
			bodyLimit = harBodyLimit
		}
		recorder = har.NewRecorder(log, page, bodyLimit)
	}

	if _, err := page.Goto(task.URL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}); err != nil {
		log.Err("Page load error", err)
	} else {
		if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		}); err != nil {
			log.Err("Waiting for DOM content", err)
		}
		args := strategy.Args{URL: task.URL, Page: page, Log: log, Store: store}
		if err := timing.Run(func() error { return v.Strategy(args) }, strategyTimeout, "strategy timed out"); err != nil {
			log.Err("Strategy failed", err)
		}
	}

	if v.Measure {
		v.captureArtifacts(page, dir, store, log)
	}

	// The HAR reads response bodies lazily, so it must be drained while the
	// page is still open.
	if recorder != nil {
		if err := store("requests.har", recorder.Data()); err != nil {
			log.Err("Storing HAR", err)
		}
	}

	if err := timing.Run(func() error { return page.Close() }, pageCloseGrace, "page close timed out"); err != nil {
		log.Err("Closing page", err)
	}

	if v.Measure && v.Plan.Log.Video {
		v.saveVideo(page, dir, log)
	}

	log.Info().Msgf("Done after %s", start.Elapsed())
	return nil
}

// openPage retries page creation against the current browser instance, and
// as a last resort restarts the browser once.
func (v *Visitor) openPage(log *logger.Logger) (playwright.Page, error) {
	open := func() (playwright.Page, error) {
		return timing.WithTimeout(func() (playwright.Page, error) {
			return v.Session.Instance().NewPage()
		}, openTimeout, "opening page timed out")
	}
	page, err := timing.Retry(open, func(err error) {
		log.Err("Opening page failed, retrying", err)
	}, openAttempts, openBackoff)
	if err == nil {
		return page, nil
	}

	log.Err("Opening page failed, restarting browser", err)
	if err := v.Session.Restart(); err != nil {
		return nil, err
	}
	return open()
}

// captureArtifacts collects the configured page artifacts concurrently, each
// under its own deadline so one stuck capture cannot starve the rest.
func (v *Visitor) captureArtifacts(page playwright.Page, dir string, store func(string, any) error, log *logger.Logger) {
	var wg sync.WaitGroup
	capture := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := timing.Run(fn, artifactTimeout, name+" timed out"); err != nil {
				log.Err("Capturing "+name, err)
			}
		}()
	}

	if mode := v.Plan.Log.Screenshot; mode != "" {
		capture("screenshot", func() error {
			_, err := page.Screenshot(playwright.PageScreenshotOptions{
				Path:     playwright.String(filepath.Join(dir, "screenshot.jpg")),
				Type:     playwright.ScreenshotTypeJpeg,
				Quality:  playwright.Int(70),
				FullPage: playwright.Bool(mode == "full"),
			})
			return err
		})
	}
	if v.Plan.Log.Contents {
		capture("contents", func() error {
			return store("contents.json", frameContents(page))
		})
	}
	if v.Plan.Log.Cookies {
		capture("cookies", func() error {
			return store("cookies.json", storageDump(page))
		})
	}
	if v.Plan.Log.AccessibilityTree {
		capture("accessibility tree", func() error {
			snapshot, err := page.Locator("body").AriaSnapshot()
			if err != nil {
				return err
			}
			return store("accessibility.json", map[string]string{"snapshot": snapshot})
		})
	}

	wg.Wait()
}

// saveVideo moves the recording out of the temporary video directory. The
// file only finalizes after the page is closed.
func (v *Visitor) saveVideo(page playwright.Page, dir string, log *logger.Logger) {
	err := timing.Run(func() error {
		video := page.Video()
		if video == nil {
			return nil
		}
		if err := video.SaveAs(filepath.Join(dir, "video.webm")); err != nil {
			return err
		}
		return video.Delete()
	}, artifactTimeout, "video save timed out")
	if err != nil {
		log.Err("Saving video", err)
	}
}
