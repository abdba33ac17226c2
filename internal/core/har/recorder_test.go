package har

import (
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admeasure/internal/logger"
)

type fakeRequest struct {
	playwright.Request
	url            string
	method         string
	redirectedFrom playwright.Request
	headers        []playwright.NameValue
	sizes          playwright.RequestSizesResult
	postData       string
	contentType    string
}

func (f *fakeRequest) URL() string                        { return f.url }
func (f *fakeRequest) Method() string                     { return f.method }
func (f *fakeRequest) Frame() playwright.Frame            { return nil }
func (f *fakeRequest) RedirectedFrom() playwright.Request { return f.redirectedFrom }
func (f *fakeRequest) HeadersArray() ([]playwright.NameValue, error) {
	return f.headers, nil
}
func (f *fakeRequest) PostDataBuffer() ([]byte, error) { return []byte(f.postData), nil }
func (f *fakeRequest) PostData() (string, error)       { return f.postData, nil }
func (f *fakeRequest) HeaderValue(string) (string, error) {
	return f.contentType, nil
}
func (f *fakeRequest) Sizes() (*playwright.RequestSizesResult, error) {
	return &f.sizes, nil
}

type fakeResponse struct {
	playwright.Response
	req         *fakeRequest
	status      int
	statusText  string
	headers     []playwright.NameValue
	contentType string
	text        string
}

func (f *fakeResponse) Request() playwright.Request { return f.req }
func (f *fakeResponse) Status() int                 { return f.status }
func (f *fakeResponse) StatusText() string          { return f.statusText }
func (f *fakeResponse) URL() string                 { return f.req.url }
func (f *fakeResponse) HeadersArray() ([]playwright.NameValue, error) {
	return f.headers, nil
}
func (f *fakeResponse) HeaderValue(string) (string, error) {
	return f.contentType, nil
}
func (f *fakeResponse) Text() (string, error) { return f.text, nil }

func newTestRecorder(maxSize int) *Recorder {
	return &Recorder{
		log:     logger.New("har-test"),
		maxSize: maxSize,
		ids:     make(map[playwright.Request]string),
		entries: make(map[string]*Entry),
	}
}

func respond(r *Recorder, req *fakeRequest, status int, size int, contentType, text string) {
	req.sizes.ResponseBodySize = size
	r.OnResponse(&fakeResponse{
		req:         req,
		status:      status,
		statusText:  "OK",
		contentType: contentType,
		text:        text,
	})
}

func TestRecorderRedirectLinking(t *testing.T) {
	r := newTestRecorder(1 << 20)

	first := &fakeRequest{url: "https://a.example/", method: "GET"}
	second := &fakeRequest{url: "https://b.example/", method: "GET", redirectedFrom: first}

	r.OnRequest(first)
	r.OnRequest(second)
	respond(r, first, 301, 0, "", "")
	respond(r, second, 200, 5, "text/html", "hello")

	har := r.Data()
	require.Len(t, har.Log.Entries, 2)

	assert.Equal(t, "https://a.example/", har.Log.Entries[0].Request.URL)
	assert.Equal(t, "https://b.example/", har.Log.Entries[0].Response.RedirectURL)
	assert.Equal(t, 301, har.Log.Entries[0].Response.Status)
	assert.Equal(t, "", har.Log.Entries[1].Response.RedirectURL)
	assert.Equal(t, "hello", har.Log.Entries[1].Response.Content.Text)
}

func TestRecorderRedirectLinkSurvivesLateResponse(t *testing.T) {
	r := newTestRecorder(1 << 20)

	first := &fakeRequest{url: "https://a.example/", method: "GET"}
	second := &fakeRequest{url: "https://b.example/", method: "GET", redirectedFrom: first}

	// The follow-up request event can fire before the redirect response event.
	r.OnRequest(first)
	r.OnRequest(second)
	respond(r, second, 200, 5, "text/html", "hello")
	respond(r, first, 302, 0, "", "")

	har := r.Data()
	require.Len(t, har.Log.Entries, 2)
	assert.Equal(t, "https://b.example/", har.Log.Entries[0].Response.RedirectURL)
}

func TestRecorderBodyPolicy(t *testing.T) {
	cases := []struct {
		name        string
		url         string
		status      int
		size        int
		contentType string
		text        string
		wantMime    string
		wantText    string
		wantSize    int
	}{
		{"empty body", "https://x.example/a", 200, 0, "text/html", "", "", "", 0},
		{"redirect", "https://x.example/b", 302, 88, "text/html", "ignored", "", "", 0},
		{"image mime", "https://x.example/c", 200, 500, "image/png", "", MimeTypeSkipped, "", 500},
		{"script mime", "https://x.example/d", 200, 500, "application/javascript", "", MimeTypeSkipped, "", 500},
		{"media extension", "https://x.example/logo.png", 200, 500, "application/octet-stream", "", MimeTypeSkipped, "", 500},
		{"under limit", "https://x.example/e", 200, 600000, "text/html", "body", "text/html", "body", 600000},
		{"over limit", "https://x.example/f", 200, 2 << 20, "text/html", "ignored", MimeTypeTooLarge, "", 2 << 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRecorder(1 << 20)
			req := &fakeRequest{url: tc.url, method: "GET"}
			r.OnRequest(req)
			respond(r, req, tc.status, tc.size, tc.contentType, tc.text)

			har := r.Data()
			require.Len(t, har.Log.Entries, 1)
			content := har.Log.Entries[0].Response.Content
			assert.Equal(t, tc.wantMime, content.MimeType)
			assert.Equal(t, tc.wantText, content.Text)
			assert.Equal(t, tc.wantSize, content.Size)
		})
	}
}

func TestRecorderBodyLimitBoundary(t *testing.T) {
	r := newTestRecorder(500000)
	req := &fakeRequest{url: "https://x.example/big", method: "GET"}
	r.OnRequest(req)
	respond(r, req, 200, 600000, "text/html", "must not be captured")

	har := r.Data()
	require.Len(t, har.Log.Entries, 1)
	content := har.Log.Entries[0].Response.Content
	assert.Equal(t, MimeTypeTooLarge, content.MimeType)
	assert.Equal(t, 600000, content.Size)
	assert.Empty(t, content.Text)
}

func TestRecorderPrimeModeSkipsBodies(t *testing.T) {
	r := newTestRecorder(-1)

	req := &fakeRequest{
		url:     "https://a.example/",
		method:  "GET",
		headers: []playwright.NameValue{{Name: "cookie", Value: "secret"}},
	}
	r.OnRequest(req)
	respond(r, req, 200, 100, "text/html", "body")

	har := r.Data()
	require.Len(t, har.Log.Entries, 1)
	entry := har.Log.Entries[0]
	assert.Empty(t, entry.Request.Headers)
	assert.Empty(t, entry.Response.Headers)
	assert.Equal(t, mimeTypeUnknown, entry.Response.Content.MimeType)
	assert.Equal(t, 200, entry.Response.Status)
}

func TestRecorderResponseWithoutRequest(t *testing.T) {
	r := newTestRecorder(1 << 20)
	respond(r, &fakeRequest{url: "https://a.example/"}, 200, 1, "text/html", "x")
	assert.Empty(t, r.Data().Log.Entries)
}

func TestRecorderCreator(t *testing.T) {
	har := newTestRecorder(-1).Data()
	assert.Equal(t, "1.2", har.Log.Version)
	assert.Equal(t, Creator{Name: "admeasure", Version: "2"}, har.Log.Creator)
}

func TestRecorderRequestWithoutResponse(t *testing.T) {
	r := newTestRecorder(1 << 20)
	r.OnRequest(&fakeRequest{url: "https://a.example/", method: "GET"})

	har := r.Data()
	require.Len(t, har.Log.Entries, 1)
	assert.Equal(t, -1, har.Log.Entries[0].Response.Status)
	assert.Equal(t, httpVersionUnknown, har.Log.Entries[0].Response.HTTPVersion)
}
