package strategy

import (
	"math/rand"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/utils/timing"
)

const (
	idleMin = 15 * time.Second
	idleMax = 45 * time.Second

	// Window granted to a site to react to a definite consent decision.
	settleMin = 20 * time.Second
	settleMax = 45 * time.Second
)

// Idle sleeps at least min, then waits for the network to go idle until max.
// The idle check deliberately happens only after the minimum wait: the
// network may be idle intermittently and we do not want to exit early.
func Idle(a Args, min, max time.Duration) error {
	a.Log.Info().Msg("Waiting...")
	start := timing.Now()
	time.Sleep(min)
	a.Log.LogInfof("Slept for %s.", start.Elapsed())

	err := a.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64((max - min).Milliseconds())),
	})
	if err != nil {
		a.Log.LogInfof("Timeout after %s", start.Elapsed())
	} else {
		a.Log.LogInfof("Network is idle after %s.", start.Elapsed())
	}
	return nil
}

// Click idles, then follows up to three random same-tab links.
func Click(a Args) error {
	if err := Idle(a, 7*time.Second, 15*time.Second); err != nil {
		return err
	}
	for i := 0; i < 3; i++ {
		if !clickRandomLink(a) {
			break
		}
	}
	return nil
}

func clickRandomLink(a Args) bool {
	links, err := a.Page.Locator("a:visible:not([target=_blank]):not([href^=mailto])").All()
	if err != nil || len(links) == 0 {
		a.Log.Info().Msg("Page has no links.")
		return false
	}
	link := links[rand.Intn(len(links))]
	text, _ := link.TextContent()
	a.Log.LogInfof("Clicking random link: %s", strings.Join(strings.Fields(text), " "))

	if err := link.Click(playwright.LocatorClickOptions{
		Force: playwright.Bool(true),
		Delay: playwright.Float(50),
	}); err != nil {
		a.Log.Err("Failed to click link", err)
		return true
	}
	_ = Idle(a, 2*time.Second, 7*time.Second)
	return true
}

// Browse simulates a reading user: idle, then scrolling and mouse movement
// in parallel, then another idle.
func Browse(a Args) error {
	if err := Idle(a, 5*time.Second, 10*time.Second); err != nil {
		return err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		moveMouse(a, 10*time.Second)
	}()
	scroll(a)
	<-done
	return Idle(a, 3*time.Second, 10*time.Second)
}

func scroll(a Args) {
	for i := 0; i < 5; i++ {
		a.Log.Info().Msg("Scrolling down...")
		if err := a.Page.Keyboard().Press("PageDown", playwright.KeyboardPressOptions{
			Delay: playwright.Float(100),
		}); err != nil {
			a.Log.Err("Cannot scroll", err)
		}
		if err := a.Page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State:   playwright.LoadStateNetworkidle,
			Timeout: playwright.Float(2000),
		}); err != nil {
			a.Log.Info().Msg("Network not idle yet, continuing anyway")
		}
	}
}

func moveMouse(a Args, duration time.Duration) {
	size := a.Page.ViewportSize()
	if size == nil || size.Width == 0 || size.Height == 0 {
		a.Log.Info().Msg("Unable to get page dimensions")
		return
	}
	deadline := time.Now().Add(duration)
	x := rand.Intn(size.Width)
	y := rand.Intn(size.Height)
	_ = a.Page.Mouse().Move(float64(x), float64(y))

	for time.Now().Before(deadline) {
		x = clamp(x+rand.Intn(101)-50, 0, size.Width)
		y = clamp(y+rand.Intn(101)-50, 0, size.Height)
		a.Log.LogInfof("Moving cursor to {x: %d, y: %d}", x, y)
		if err := a.Page.Mouse().Move(float64(x), float64(y), playwright.MouseMoveOptions{
			Steps: playwright.Int(20),
		}); err != nil {
			a.Log.Err("Cannot move mouse", err)
			return
		}
		time.Sleep(timing.Between(500*time.Millisecond, 1500*time.Millisecond))
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
