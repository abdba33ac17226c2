package visit

import (
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"admeasure/internal/logger"
	"admeasure/internal/utils/timing"
)

// FrameContents holds one frame's URL and serialized HTML. Content is nil
// when the frame could not be read (detached, cross-origin restriction).
type FrameContents struct {
	URL     string  `json:"url"`
	Content *string `json:"content"`
}

// frameContents serializes the main frame and every child frame. A frame
// that fails or stalls yields a nil content instead of failing the capture.
func frameContents(page playwright.Page) []FrameContents {
	frames := page.Frames()
	out := make([]FrameContents, 0, len(frames))
	for _, frame := range frames {
		fc := FrameContents{URL: frame.URL()}
		content, err := timing.WithTimeout(frame.Content, 10*time.Second, "frame content")
		if err == nil {
			fc.Content = &content
		}
		out = append(out, fc)
	}
	return out
}

// storageDump reads the page's cookie jar and both web storage areas.
func storageDump(page playwright.Page) map[string]any {
	dump := map[string]any{
		"cookies":        []any{},
		"sessionStorage": map[string]any{},
		"localStorage":   map[string]any{},
	}
	if cookies, err := page.Context().Cookies(); err == nil {
		dump["cookies"] = cookies
	}
	if v, err := page.Evaluate(`() => Object.assign({}, window.sessionStorage)`); err == nil {
		dump["sessionStorage"] = v
	}
	if v, err := page.Evaluate(`() => Object.assign({}, window.localStorage)`); err == nil {
		dump["localStorage"] = v
	}
	return dump
}

// logConsole mirrors the page's console output into the visit history so it
// ends up in console.json alongside our own messages.
func logConsole(page playwright.Page, history *logger.History, part string) {
	page.OnConsole(func(msg playwright.ConsoleMessage) {
		history.Append(logger.Message{
			Part: fmt.Sprintf("%s console.%s", part, msg.Type()),
			Text: msg.Text(),
			Time: time.Now(),
		})
	})
}
