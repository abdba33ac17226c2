package runner

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// lookupIPs resolves both egress addresses and signals the summaries waiting
// on them. Measurements are region-sensitive, so the job summaries record
// where the traffic actually came from.
func (r *Runner) lookupIPs(v4Endpoint, v6Endpoint string) {
	defer close(r.ipReady)
	r.ipv4 = publicIP(v4Endpoint)
	r.ipv6 = publicIP(v6Endpoint)
}

// publicIP asks an ipify endpoint for our egress address. Returns "" when
// the lookup fails (offline, no v6 route).
func publicIP(endpoint string) string {
	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(endpoint)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(body))
}
