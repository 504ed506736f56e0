package storage

import (
	"time"

	"github.com/masahif/sitescope/internal/crawler"
	"github.com/masahif/sitescope/internal/parser"
)

func sampleResult(runID string, finished time.Time) *crawler.Result {
	seed := "https://example.com"
	home := &crawler.FullRecord{
		RecordBase: crawler.RecordBase{
			URL:          seed,
			StatusCode:   200,
			ResponseTime: 0.25,
			OutDegree:    2,
			SiteWide:     &crawler.SitePreflightData{Sitemaps: []string{}},
		},
		Page: parser.Page{
			Title:         "Café <Home> & more",
			ContentHash:   "abc123",
			InternalLinks: []string{seed + "/about", seed + "/down"},
		},
	}
	about := &crawler.FullRecord{
		RecordBase: crawler.RecordBase{
			URL:        seed + "/about",
			Depth:      1,
			StatusCode: 200,
			InDegree:   1,
		},
		Page: parser.Page{Title: "About"},
	}
	down := &crawler.ErrorRecord{
		RecordBase: crawler.RecordBase{URL: seed + "/down", Depth: 1, InDegree: 1},
		ErrorType:  crawler.OutcomeFetchFailed,
		Message:    "retryable status 503",
	}
	lonely := &crawler.ErrorRecord{
		RecordBase: crawler.RecordBase{URL: seed + "/lonely", Depth: 1, StatusCode: 404, IsOrphan: true},
		ErrorType:  crawler.OutcomeFetchFailed,
		Message:    "HTTP 404 Not Found",
	}

	return &crawler.Result{
		RunID:      runID,
		Seed:       seed,
		StartedAt:  finished.Add(-time.Minute),
		FinishedAt: finished,
		Pages: map[string]crawler.PageRecord{
			home.URL:   home,
			about.URL:  about,
			down.URL:   down,
			lonely.URL: lonely,
		},
		Order: []string{home.URL, about.URL, down.URL, lonely.URL},
		Edges: []crawler.Edge{
			{Source: home.URL, Target: about.URL},
			{Source: home.URL, Target: down.URL},
		},
	}
}
