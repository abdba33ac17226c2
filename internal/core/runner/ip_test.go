package runner

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("203.0.113.7\n"))
	}))
	defer srv.Close()

	assert.Equal(t, "203.0.113.7", publicIP(srv.URL))
}

func TestPublicIPFailuresYieldEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.Equal(t, "", publicIP(srv.URL))
	assert.Equal(t, "", publicIP("http://127.0.0.1:1"))
}

func TestLookupIPsSignalsCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("198.51.100.4"))
	}))
	defer srv.Close()

	r := &Runner{ipReady: make(chan struct{})}
	go r.lookupIPs(srv.URL, "http://127.0.0.1:1")

	<-r.ipReady
	assert.Equal(t, "198.51.100.4", r.ipv4)
	assert.Equal(t, "", r.ipv6)
}
