package crawler

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/masahif/sitescope/internal/config"
)

const maxRedirects = 10

var errTooManyRedirects = errors.New("too many redirects")

// HTTPClient handles HTTP requests with performance metrics and bounded retry
type HTTPClient struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	retry        config.RetryConfig
	retryPolicy  retrypolicy.RetryPolicy[*HTTPResponse]
	limiter      *RateLimiter
	metrics      *Metrics
}

// ClientOptions configures an HTTPClient
type ClientOptions struct {
	UserAgent    string
	Timeout      time.Duration // per attempt, redirects and body included
	MaxBodyBytes int64
	Retry        config.RetryConfig
	RequestDelay time.Duration // minimum spacing of requests to one host
	Metrics      *Metrics
}

// HTTPMetrics contains performance metrics for an HTTP request
type HTTPMetrics struct {
	TTFB         time.Duration // Time to First Byte
	DownloadTime time.Duration // Total download time
	DNSLookup    time.Duration // DNS lookup time
	TCPConnect   time.Duration // TCP connection time
	TLSHandshake time.Duration // TLS handshake time
}

// HTTPResponse contains the response and metrics
type HTTPResponse struct {
	URL         string // As requested
	FinalURL    string // After following redirects
	StatusCode  int
	Status      string
	Headers     http.Header
	ContentType string
	Body        []byte // Only set for 200 text/html responses, or for probes
	BodySize    int64  // Bytes read from the wire, capped
	Elapsed     time.Duration
	Redirects   []RedirectHop
	Metrics     HTTPMetrics
	Attempts    int
}

// IsHTML reports whether the response declares an HTML content type
func (r *HTTPResponse) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(opts ClientOptions) *HTTPClient {
	if opts.UserAgent == "" {
		opts.UserAgent = config.DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 << 20
	}
	opts.Retry = normalizeRetry(opts.Retry)
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		// Accept-Encoding is set explicitly so Content-Encoding stays visible
		DisableCompression: true,
	}

	client := &http.Client{
		Transport: &recordingTransport{base: transport},
		Timeout:   opts.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}

	return &HTTPClient{
		client:       client,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
		retry:        opts.Retry,
		retryPolicy:  newRetryPolicy(opts.Retry),
		limiter:      NewRateLimiter(opts.RequestDelay),
		metrics:      opts.Metrics,
	}
}

// Probe performs a single GET with its own timeout and no retry, always
// capturing the (capped) body. It is meant for best-effort side requests.
func (h *HTTPClient) Probe(ctx context.Context, rawURL string, timeout time.Duration) (*HTTPResponse, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	resp, err := h.fetch(ctx, rawURL, true)
	if resp != nil {
		resp.Attempts = 1
	}
	return resp, err
}

// fetch performs one GET attempt. It measures DNS lookup time, TCP
// connection time, TLS handshake time, time to first byte (TTFB), and total
// download time, and records every redirect hop.
func (h *HTTPClient) fetch(ctx context.Context, rawURL string, captureAll bool) (*HTTPResponse, error) {
	if err := validateFetchURL(rawURL); err != nil {
		return nil, err
	}
	if err := h.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	ctx, recorder := withHopRecorder(ctx)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &permanentError{fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	// Setup performance tracking
	var metrics HTTPMetrics
	var dnsStart, connectStart, tlsStart, firstByteTime time.Time

	trace := &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			metrics.DNSLookup = time.Since(dnsStart)
		},
		ConnectStart: func(string, string) {
			connectStart = time.Now()
		},
		ConnectDone: func(string, string, error) {
			metrics.TCPConnect = time.Since(connectStart)
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(tls.ConnectionState, error) {
			metrics.TLSHandshake = time.Since(tlsStart)
		},
		GotFirstResponseByte: func() {
			firstByteTime = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	startTime := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		if errors.Is(err, errTooManyRedirects) {
			return nil, &permanentError{err}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	elapsed := time.Since(startTime)

	if !firstByteTime.IsZero() {
		metrics.TTFB = firstByteTime.Sub(startTime)
	}

	result := &HTTPResponse{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		Headers:     resp.Header,
		ContentType: resp.Header.Get("Content-Type"),
		Elapsed:     elapsed,
	}

	capture := captureAll || (resp.StatusCode == http.StatusOK && result.IsHTML())
	body, size, err := h.readBody(resp, capture)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	result.Body = body
	result.BodySize = size

	metrics.DownloadTime = time.Since(startTime)
	result.Metrics = metrics
	result.Redirects = recorder.chain()
	h.metrics.FetchDuration.Observe(metrics.DownloadTime.Seconds())

	return result, nil
}

// readBody returns the decoded body when capture is set. Otherwise the raw
// body is drained so the connection can be reused. Both paths stop at
// maxBodyBytes.
func (h *HTTPClient) readBody(resp *http.Response, capture bool) ([]byte, int64, error) {
	if !capture {
		defer resp.Body.Close()
		n, err := io.Copy(io.Discard, io.LimitReader(resp.Body, h.maxBodyBytes))
		return nil, n, err
	}

	reader, err := decodedBody(resp)
	if err != nil {
		_ = resp.Body.Close()
		return nil, 0, err
	}
	defer reader.Close()

	body, err := io.ReadAll(io.LimitReader(reader, h.maxBodyBytes))
	if err != nil {
		return nil, int64(len(body)), err
	}
	return body, int64(len(body)), nil
}

// Close closes the HTTP client
func (h *HTTPClient) Close() {
	h.client.CloseIdleConnections()
}

func validateFetchURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return &permanentError{fmt.Errorf("invalid URL: %w", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &permanentError{fmt.Errorf("unsupported URL scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &permanentError{fmt.Errorf("URL %q has no host", rawURL)}
	}
	return nil
}
