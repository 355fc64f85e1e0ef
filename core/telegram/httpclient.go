package telegram

import (
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/membergate/core/telegram/netutil"
)

// transportConfig holds the timeouts of the Bot API client. The response
// timeout must exceed the long-poll timeout because getUpdates holds the
// response open.
type transportConfig struct {
	dial, keepAlive, tlsHandshake, idle time.Duration
	response, total                     time.Duration
	retries                             int
	backoff                             time.Duration
}

var botAPITransport = transportConfig{
	dial:         5 * time.Second,
	keepAlive:    30 * time.Second,
	tlsHandshake: 5 * time.Second,
	idle:         30 * time.Second,
	response:     65 * time.Second,
	total:        75 * time.Second,
	retries:      3,
	backoff:      2 * time.Second,
}

// BuildHTTPClient returns the client used for Bot API calls. Requests that
// fail to connect or time out are replayed when their body allows it.
func BuildHTTPClient() *http.Client {
	cfg := botAPITransport
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.dial, KeepAlive: cfg.keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       cfg.idle,
		TLSHandshakeTimeout:   cfg.tlsHandshake,
		ResponseHeaderTimeout: cfg.response,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   cfg.total,
		Transport: &retryTransport{base: base, retries: cfg.retries, backoff: cfg.backoff},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for n := 1; err != nil && n <= t.retries && netutil.ShouldRetry(err); n++ {
		replay, ok := rewind(req)
		if !ok {
			break
		}
		timer := time.NewTimer(t.backoff * time.Duration(n))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}
		resp, err = t.base.RoundTrip(replay)
	}
	return resp, err
}

// rewind clones req with a fresh body, reporting false when the body cannot
// be replayed.
func rewind(req *http.Request) (*http.Request, bool) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	clone.Body = body
	return clone, true
}
