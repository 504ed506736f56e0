package crawler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeFetcher struct {
	resp *HTTPResponse
	err  error
	hits int
}

func (f *fakeFetcher) Get(ctx context.Context, url string) (*HTTPResponse, error) {
	f.hits++
	return f.resp, f.err
}

func htmlResponse(url string, status int, contentType, body string) *HTTPResponse {
	h := http.Header{}
	h.Set("Content-Type", contentType)
	h.Set("X-Frame-Options", "DENY")
	return &HTTPResponse{
		URL:         url,
		FinalURL:    url,
		StatusCode:  status,
		Status:      http.StatusText(status),
		Headers:     h,
		ContentType: contentType,
		Body:        []byte(body),
		BodySize:    int64(len(body)),
		Elapsed:     120 * time.Millisecond,
		Redirects:   []RedirectHop{{URL: url, Status: status, TTFB: 0.1}},
	}
}

func TestPageProcessorFullRecord(t *testing.T) {
	fetcher := &fakeFetcher{resp: htmlResponse("https://ex.com/a", 200, "text/html",
		`<html><head><title>A</title></head><body><a href="/b">B</a><a href="/b/">B again</a><a href="https://other.com">x</a></body></html>`)}
	p := NewPageProcessor(fetcher, "https://ex.com", nil, "sitescope")

	res := p.Process(context.Background(), FrontierEntry{URL: "https://ex.com/a", Depth: 2})

	full, ok := res.Record.(*FullRecord)
	if !ok {
		t.Fatalf("expected *FullRecord, got %T", res.Record)
	}
	if full.Title != "A" || full.Depth != 2 || full.StatusCode != 200 {
		t.Errorf("unexpected record: title=%q depth=%d status=%d", full.Title, full.Depth, full.StatusCode)
	}
	if full.ResponseTime != 0.12 {
		t.Errorf("ResponseTime = %v, want 0.12", full.ResponseTime)
	}
	if full.SecurityHeaders.XFrameOptions != "DENY" {
		t.Errorf("security headers not projected: %+v", full.SecurityHeaders)
	}
	if len(full.InternalLinks) != 1 || len(full.ExternalLinks) != 1 {
		t.Errorf("links: internal=%v external=%v", full.InternalLinks, full.ExternalLinks)
	}
	if len(res.Links) != 2 {
		t.Errorf("discovered links should keep duplicates, got %v", res.Links)
	}
}

func TestPageProcessorErrorRecords(t *testing.T) {
	tests := []struct {
		name       string
		fetcher    *fakeFetcher
		errorType  string
		hasHeaders bool
	}{
		{
			name:      "fetch error",
			fetcher:   &fakeFetcher{err: &FetchError{URL: "https://ex.com/x", Attempts: 3, StatusCode: 503, Err: errors.New("retryable status 503")}},
			errorType: OutcomeFetchFailed,
		},
		{
			name:       "not found",
			fetcher:    &fakeFetcher{resp: htmlResponse("https://ex.com/x", 404, "text/html", "")},
			errorType:  OutcomeFetchFailed,
			hasHeaders: true,
		},
		{
			name:       "not html",
			fetcher:    &fakeFetcher{resp: htmlResponse("https://ex.com/x", 200, "application/pdf", "")},
			errorType:  OutcomeNotHTML,
			hasHeaders: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPageProcessor(tt.fetcher, "https://ex.com", nil, "sitescope")
			res := p.Process(context.Background(), FrontierEntry{URL: "https://ex.com/x", Depth: 1})

			rec, ok := res.Record.(*ErrorRecord)
			if !ok {
				t.Fatalf("expected *ErrorRecord, got %T", res.Record)
			}
			if rec.ErrorType != tt.errorType {
				t.Errorf("ErrorType = %q, want %q", rec.ErrorType, tt.errorType)
			}
			if rec.Message == "" {
				t.Error("error message should be populated")
			}
			if (rec.HTTP != nil) != tt.hasHeaders {
				t.Errorf("HTTP headers present = %v, want %v", rec.HTTP != nil, tt.hasHeaders)
			}
			if len(res.Links) != 0 {
				t.Errorf("error records have no links, got %v", res.Links)
			}
		})
	}
}

func TestPageProcessorFetchErrorJSON(t *testing.T) {
	fetcher := &fakeFetcher{err: &FetchError{URL: "https://ex.com/x", Attempts: 3, StatusCode: 503}}
	p := NewPageProcessor(fetcher, "https://ex.com", nil, "sitescope")
	res := p.Process(context.Background(), FrontierEntry{URL: "https://ex.com/x", Depth: 1})

	data, err := json.Marshal(res.Record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}

	if fields["status_code"] != "Error" {
		t.Errorf("status_code = %v, want \"Error\"", fields["status_code"])
	}
	if fields["error"] == "" || fields["error"] == nil {
		t.Error("error field missing")
	}
	for _, key := range []string{"title", "word_count", "internal_links", "http", "site_wide"} {
		if _, ok := fields[key]; ok {
			t.Errorf("fetch error record should not carry %q", key)
		}
	}
}

func TestPageProcessorRobotsGate(t *testing.T) {
	server := robotsServer(t, "User-agent: *\nDisallow: /private\n")
	defer server.Close()

	pre := NewPreflight(testClient(), time.Second).Run(context.Background(), server.URL)
	fetcher := &fakeFetcher{resp: htmlResponse(server.URL+"/private", 200, "text/html", "<p>x</p>")}
	p := NewPageProcessor(fetcher, server.URL, pre, "sitescope")

	res := p.Process(context.Background(), FrontierEntry{URL: server.URL + "/private/page"})
	rec, ok := res.Record.(*ErrorRecord)
	if !ok || rec.ErrorType != OutcomeRobotsDisallowed {
		t.Fatalf("expected robots_disallowed record, got %+v", res.Record)
	}
	if fetcher.hits != 0 {
		t.Error("disallowed URL was fetched")
	}
}

func TestFullRecordJSONIsFlat(t *testing.T) {
	fetcher := &fakeFetcher{resp: htmlResponse("https://ex.com", 200, "text/html; charset=utf-8",
		`<html lang="en"><body><h1>Déjà vu &amp; <b>co</b></h1></body></html>`)}
	p := NewPageProcessor(fetcher, "https://ex.com", nil, "sitescope")
	res := p.Process(context.Background(), FrontierEntry{URL: "https://ex.com"})

	data, err := json.Marshal(res.Record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"url", "status_code", "h1_tags", "keyword_density", "http", "security_headers", "redirect_chain", "language_match", "in_degree"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("full record JSON missing %q", key)
		}
	}
	if fields["status_code"] != float64(200) {
		t.Errorf("status_code = %v, want 200", fields["status_code"])
	}
	if _, ok := fields["error"]; ok {
		t.Error("full record must not carry an error field")
	}
}

func robotsServer(t *testing.T, robots string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(robots))
			return
		}
		http.NotFound(w, r)
	}))
}
