package har

// Minimal HAR 1.2 document model covering the fields the recorder fills in.
// Unknown values carry the documented sentinels (-1, "HTTP/x.x", "x-unknown")
// until their async resolution completes.

const (
	httpVersionUnknown = "HTTP/x.x"
	mimeTypeUnknown    = "x-unknown"

	// Content markers for bodies that are deliberately not captured.
	MimeTypeSkipped  = "x-image-skipped"
	MimeTypeTooLarge = "x-too-large"
)

type Har struct {
	Log Log `json:"log"`
}

type Log struct {
	Version string   `json:"version"`
	Creator Creator  `json:"creator"`
	Entries []*Entry `json:"entries"`
}

type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type NameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Entry struct {
	Comment         string   `json:"comment,omitempty"`
	StartedDateTime string   `json:"startedDateTime"`
	Time            float64  `json:"time"`
	Request         Request  `json:"request"`
	Response        Response `json:"response"`
	Cache           struct{} `json:"cache"`
	Timings         Timings  `json:"timings"`
}

type Request struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	QueryString []NameValue `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

type PostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

type Response struct {
	Comment     string      `json:"comment,omitempty"`
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []NameValue `json:"cookies"`
	Headers     []NameValue `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int         `json:"headersSize"`
	BodySize    int         `json:"bodySize"`
}

type Content struct {
	Size     int    `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

type Timings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

func unknownResponse() Response {
	return Response{
		Comment:     "no known response",
		Status:      -1,
		HTTPVersion: httpVersionUnknown,
		Cookies:     []NameValue{},
		Headers:     []NameValue{},
		Content:     Content{Size: -1, MimeType: mimeTypeUnknown},
		HeadersSize: -1,
		BodySize:    -1,
	}
}
