package telegram

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/citybot/core/telegram/netutil"
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryBackoff      = 2 * time.Second
	// Headers of a getUpdates response arrive only once the long poll ends.
	responseTimeoutMargin = 5 * time.Second
)

// HTTPClientOptions tunes BuildHTTPClient. Zero values select defaults.
type HTTPClientOptions struct {
	LongPollTimeout time.Duration
	RetryAttempts   int
	RetryBackoff    time.Duration
}

// BuildHTTPClient returns an HTTP client tuned for Telegram API calls.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	if opts.LongPollTimeout <= 0 {
		opts.LongPollTimeout = defaultLongPollTimeout * time.Second
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = defaultRetryAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	responseTimeout := opts.LongPollTimeout + responseTimeoutMargin

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: responseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout: responseTimeout + defaultDialTimeout + defaultTLSHandshake,
		Transport: &retryTransport{
			base:       transport,
			maxRetries: opts.RetryAttempts,
			backoff:    opts.RetryBackoff,
		},
	}
}

// retryTransport repeats a round trip that failed before any response
// arrived, as long as netutil.ShouldRetry deems the error transient.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	cur := req
	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(cur)
		if err == nil {
			return resp, nil
		}
		if attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return nil, err
		}
		if err := sleepCtx(req.Context(), t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
		next, ok, rerr := rewind(req)
		if rerr != nil {
			return nil, rerr
		}
		if !ok {
			return nil, err
		}
		cur = next
	}
}

// rewind clones req with a fresh body. ok is false when the body cannot be replayed.
func rewind(req *http.Request) (*http.Request, bool, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, true, nil
	}
	if req.GetBody == nil {
		return nil, false, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false, err
	}
	clone.Body = body
	return clone, true, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
