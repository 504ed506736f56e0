package crawler

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/andybalholm/brotli"
)

// RedirectHop is one response observed while following redirects.
// The final response is the last hop.
type RedirectHop struct {
	URL    string  `json:"url"`
	Status int     `json:"status"`
	TTFB   float64 `json:"ttfb"` // seconds
}

type hopRecorderKey struct{}

// hopRecorder collects every round trip of a single logical request
type hopRecorder struct {
	mu   sync.Mutex
	hops []RedirectHop
}

func withHopRecorder(ctx context.Context) (context.Context, *hopRecorder) {
	rec := &hopRecorder{}
	return context.WithValue(ctx, hopRecorderKey{}, rec), rec
}

func (r *hopRecorder) add(hop RedirectHop) {
	r.mu.Lock()
	r.hops = append(r.hops, hop)
	r.mu.Unlock()
}

func (r *hopRecorder) chain() []RedirectHop {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RedirectHop, len(r.hops))
	copy(out, r.hops)
	return out
}

// recordingTransport times each round trip and reports it to the
// hopRecorder carried by the request context, if any.
type recordingTransport struct {
	base http.RoundTripper
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if rec, ok := req.Context().Value(hopRecorderKey{}).(*hopRecorder); ok {
		rec.add(RedirectHop{
			URL:    req.URL.String(),
			Status: resp.StatusCode,
			TTFB:   time.Since(start).Seconds(),
		})
	}
	return resp, nil
}

// decodedBody wraps the response body in a decoder for its Content-Encoding.
// The caller closes the returned reader; the response body is closed with it.
func decodedBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		return &stackedCloser{Reader: gz, closers: []io.Closer{gz, resp.Body}}, nil
	case "br":
		return &stackedCloser{Reader: brotli.NewReader(resp.Body), closers: []io.Closer{resp.Body}}, nil
	case "deflate":
		fl := flate.NewReader(resp.Body)
		return &stackedCloser{Reader: fl, closers: []io.Closer{fl, resp.Body}}, nil
	default:
		return resp.Body, nil
	}
}

type stackedCloser struct {
	io.Reader
	closers []io.Closer
}

func (s *stackedCloser) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
