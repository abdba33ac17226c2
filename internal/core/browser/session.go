package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/config"
	"admeasure/internal/logger"
	"admeasure/internal/utils/timing"
)

const (
	restartCooldown = 60 * time.Second
	closeTimeout    = 30 * time.Second
	launchTimeout   = 120 * time.Second
	launchAttempts  = 3
	launchBackoff   = 30 * time.Second
)

// Session wraps exactly one live persistent browser context. The Session's
// identity is stable for the duration of a job while the underlying context
// is replaced on restart. Restart is single-flight: callers arriving while
// one is running, or within the cooldown of the last one, share its outcome
// instead of triggering another relaunch.
type Session struct {
	log    *logger.Logger
	launch func() (playwright.BrowserContext, error)

	attempts int
	backoff  time.Duration
	cooldown time.Duration

	mu          sync.Mutex
	instance    playwright.BrowserContext
	pending     chan struct{}
	lastRestart time.Time
	restartErr  error
}

// NewSession builds an unstarted session around a launch function. Tests
// substitute a fake launcher.
func NewSession(log *logger.Logger, launch func() (playwright.BrowserContext, error)) *Session {
	return &Session{
		log:      log,
		launch:   launch,
		attempts: launchAttempts,
		backoff:  launchBackoff,
		cooldown: restartCooldown,
	}
}

// ForPlan builds a session launching the plan's device as a persistent
// context bound to profileDir. videoDir, when non-empty, enables video
// recording into that directory.
func ForPlan(log *logger.Logger, pw *playwright.Playwright, plan *config.MeasurementPlan, profileDir, videoDir string) *Session {
	device := plan.Device
	if device == nil {
		device = &config.Device{Type: "chromium"}
	}

	var browserType playwright.BrowserType
	switch device.Type {
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		browserType = pw.Chromium
	}

	options := playwright.BrowserTypeLaunchPersistentContextOptions{
		Timeout: playwright.Float(float64(launchTimeout.Milliseconds())),
		Args:    stealthArgs,
	}
	if plan.Locale != "" {
		options.Locale = playwright.String(plan.Locale)
	}
	if plan.Timezone != "" {
		options.TimezoneId = playwright.String(plan.Timezone)
	}
	if plan.GPC {
		options.ExtraHttpHeaders = map[string]string{"Sec-GPC": "1", "DNT": "1"}
	}
	if videoDir != "" {
		options.RecordVideo = &playwright.RecordVideo{Dir: videoDir}
	}
	if device.Options.Channel != "" {
		options.Channel = playwright.String(device.Options.Channel)
	}
	if device.Options.SlowMo > 0 {
		options.SlowMo = playwright.Float(device.Options.SlowMo)
	}
	if device.Options.Headless != nil {
		options.Headless = playwright.Bool(*device.Options.Headless)
	}
	if device.Profile != "" {
		if descriptor, ok := pw.Devices[device.Profile]; ok {
			options.UserAgent = playwright.String(descriptor.UserAgent)
			options.Viewport = descriptor.Viewport
			options.DeviceScaleFactor = playwright.Float(descriptor.DeviceScaleFactor)
			options.IsMobile = playwright.Bool(descriptor.IsMobile)
			options.HasTouch = playwright.Bool(descriptor.HasTouch)
		} else {
			log.LogWarnf("Unknown device profile %q, using defaults.", device.Profile)
		}
	}

	return NewSession(log, func() (playwright.BrowserContext, error) {
		instance, err := browserType.LaunchPersistentContext(profileDir, options)
		if err != nil {
			return nil, err
		}
		if err := applyStealth(instance); err != nil {
			_ = instance.Close()
			return nil, fmt.Errorf("stealth patch: %w", err)
		}
		return instance, nil
	})
}

// Start performs the initial launch, retry-wrapped because browser startup
// is flaky.
func (s *Session) Start() error {
	instance, err := s.launchWithRetry()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.instance = instance
	s.mu.Unlock()
	return nil
}

// Instance returns the currently live browser context.
func (s *Session) Instance() playwright.BrowserContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance
}

// Restart replaces the underlying browser context. Concurrent callers and
// callers within the cooldown window of the previous restart await the same
// operation rather than starting another.
func (s *Session) Restart() error {
	s.mu.Lock()
	if s.pending != nil {
		done := s.pending
		s.mu.Unlock()
		s.log.Info().Msg("Browser restart already in progress...")
		<-done
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.restartErr
	}
	if time.Since(s.lastRestart) < s.cooldown {
		defer s.mu.Unlock()
		s.log.Info().Msg("Browser restart already in progress...")
		return s.restartErr
	}
	done := make(chan struct{})
	s.pending = done
	s.lastRestart = time.Now()
	s.mu.Unlock()

	s.log.Info().Msg("Restarting browser...")
	err := s.doRestart()

	s.mu.Lock()
	s.restartErr = err
	s.pending = nil
	s.mu.Unlock()
	close(done)
	s.log.Info().Msg("Browser restart complete.")
	return err
}

func (s *Session) doRestart() error {
	if old := s.Instance(); old != nil {
		err := timing.Run(func() error { return old.Close() }, closeTimeout, "timeout closing browser")
		if err != nil {
			s.log.Err("Error closing browser", err)
		}
	}
	instance, err := s.launchWithRetry()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.instance = instance
	s.mu.Unlock()
	return nil
}

func (s *Session) launchWithRetry() (playwright.BrowserContext, error) {
	return timing.Retry(s.launch, func(err error) {
		s.log.LogErrorf("Browser launch failed, backing off for %s: %v", s.backoff, err)
	}, s.attempts, s.backoff)
}

// Close shuts the session down, best-effort and bounded.
func (s *Session) Close() {
	instance := s.Instance()
	if instance == nil {
		return
	}
	if err := timing.Run(func() error { return instance.Close() }, closeTimeout, "timeout closing browser"); err != nil {
		s.log.Err("Error closing browser", err)
	}
}
