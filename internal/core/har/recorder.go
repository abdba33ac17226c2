package har

import (
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"admeasure/internal/logger"
	"admeasure/internal/utils/timing"
)

var (
	skippedMimeRe = regexp.MustCompile(`(?i)^(image|video|audio|font|text/(css|javascript)|application/(x-)?javascript)`)
	skippedExtRe  = regexp.MustCompile(`(?i)\.(png|jpe?g|webm|mp4|gif|ttf|woff)$`)
)

// Recorder captures all network exchanges on a page into HAR entries.
//
// A response is matched to the entry created at request time through a
// correlation id generated on the request event: concurrent or repeated
// requests to the same URL never collide. Redirect chains are linked by
// writing the follow-up request's URL into the prior entry's redirectURL.
//
// maxSize gates body capture: <=0 disables header and body capture entirely
// (the prime pass), >0 captures headers always and bodies only under the
// limit.
type Recorder struct {
	log     *logger.Logger
	maxSize int

	mu      sync.Mutex
	ids     map[playwright.Request]string
	entries map[string]*Entry
	order   []string
	pending sync.WaitGroup
}

func NewRecorder(log *logger.Logger, page playwright.Page, maxSize int) *Recorder {
	r := &Recorder{
		log:     log,
		maxSize: maxSize,
		ids:     make(map[playwright.Request]string),
		entries: make(map[string]*Entry),
	}
	page.OnRequest(r.OnRequest)
	page.OnResponse(r.OnResponse)
	return r
}

func (r *Recorder) OnRequest(request playwright.Request) {
	url := request.URL()
	if url == "" {
		return
	}

	frameURL := ""
	if frame := request.Frame(); frame != nil {
		frameURL = frame.URL()
	}
	entry := &Entry{
		Comment:         frameURL,
		StartedDateTime: time.Now().UTC().Format(time.RFC3339Nano),
		Time:            -1,
		Request: Request{
			Method:      request.Method(),
			URL:         url,
			HTTPVersion: httpVersionUnknown,
			Cookies:     []NameValue{},
			Headers:     []NameValue{},
			QueryString: []NameValue{},
			HeadersSize: -1,
			BodySize:    -1,
		},
		Response: unknownResponse(),
		Timings:  Timings{Send: -1, Wait: -1, Receive: -1},
	}

	id := uuid.NewString()
	r.mu.Lock()
	if from := request.RedirectedFrom(); from != nil {
		if fromID, ok := r.ids[from]; ok {
			r.entries[fromID].Response.RedirectURL = url
		}
	}
	r.ids[request] = id
	r.entries[id] = entry
	r.order = append(r.order, id)
	r.mu.Unlock()

	if r.maxSize <= 0 {
		return
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if headers, err := request.HeadersArray(); err == nil {
			r.mu.Lock()
			entry.Request.Headers = toNameValues(headers)
			r.mu.Unlock()
		} else {
			r.log.Err("Error getting request headers", err)
		}

		if buf, err := request.PostDataBuffer(); err != nil || len(buf) == 0 {
			return
		}
		sizes, err := request.Sizes()
		if err != nil {
			r.log.Err("couldn't get request body", err)
			return
		}
		if sizes.RequestBodySize <= 0 || sizes.RequestBodySize >= r.maxSize {
			return
		}
		mimeType, _ := request.HeaderValue("content-type")
		text, err := request.PostData()
		if err != nil {
			r.log.Err("couldn't get request body", err)
			return
		}
		r.mu.Lock()
		entry.Request.PostData = &PostData{MimeType: mimeType, Text: text}
		r.mu.Unlock()
	}()
}

func (r *Recorder) OnResponse(response playwright.Response) {
	request := response.Request()

	r.mu.Lock()
	id, ok := r.ids[request]
	if !ok {
		r.mu.Unlock()
		return
	}
	entry := r.entries[id]
	// A later redirect may already have linked its URL here; keep it.
	redirectURL := entry.Response.RedirectURL
	entry.Response = Response{
		Status:      response.Status(),
		StatusText:  response.StatusText(),
		HTTPVersion: httpVersionUnknown,
		Cookies:     []NameValue{},
		Headers:     []NameValue{},
		Content:     Content{Size: -1, MimeType: mimeTypeUnknown},
		RedirectURL: redirectURL,
		HeadersSize: -1,
		BodySize:    -1,
	}
	r.mu.Unlock()

	if r.maxSize <= 0 {
		return
	}

	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if headers, err := response.HeadersArray(); err == nil {
			r.mu.Lock()
			entry.Response.Headers = toNameValues(headers)
			r.mu.Unlock()
		} else {
			r.log.Err("Error getting response headers", err)
		}
		if err := r.resolveBody(entry, response); err != nil {
			r.log.LogErrorf("Error getting response body: %s: %d %s: %v",
				response.URL(), response.Status(), response.StatusText(), err)
		}
	}()
}

// resolveBody applies the body capture policy, in order: empty responses and
// redirects store empty content, media and script payloads are skipped,
// oversized bodies get the too-large marker with their size, everything else
// is captured as text.
func (r *Recorder) resolveBody(entry *Entry, response playwright.Response) error {
	sizes, err := response.Request().Sizes()
	if err != nil {
		return err
	}
	size := sizes.ResponseBodySize
	mimeType, _ := response.HeaderValue("content-type")
	status := response.Status()

	var content Content
	switch {
	case size == 0 || (300 <= status && status < 400):
		content = Content{Size: 0, MimeType: ""}
	case skippedMimeRe.MatchString(mimeType) || skippedExtRe.MatchString(response.Request().URL()):
		content = Content{Size: size, MimeType: MimeTypeSkipped}
	case size > r.maxSize:
		content = Content{Size: size, MimeType: MimeTypeTooLarge}
	default:
		text, err := response.Text()
		if err != nil {
			return err
		}
		content = Content{Size: size, MimeType: mimeType, Text: text}
	}

	r.mu.Lock()
	entry.Response.Content = content
	r.mu.Unlock()
	return nil
}

// Data finalizes the recording. It waits briefly for in-flight body fetches,
// so it must be called before the page is closed.
func (r *Recorder) Data() Har {
	_ = timing.Run(func() error {
		r.pending.Wait()
		return nil
	}, 10*time.Second, "timeout waiting for response bodies")

	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		entries = append(entries, r.entries[id])
	}
	return Har{
		Log: Log{
			Version: "1.2",
			Creator: Creator{Name: "admeasure", Version: "2"},
			Entries: entries,
		},
	}
}

func toNameValues(headers []playwright.NameValue) []NameValue {
	out := make([]NameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, NameValue{Name: h.Name, Value: h.Value})
	}
	return out
}
