package crawler

import (
	"testing"

	"github.com/masahif/sitescope/internal/parser"
)

func TestAggregate(t *testing.T) {
	seed := "https://ex.com"
	pages := map[string]PageRecord{
		seed: &FullRecord{
			RecordBase: RecordBase{URL: seed, StatusCode: 200},
			Page:       parser.Page{InternalLinks: []string{"https://ex.com/a", "https://ex.com/b"}},
		},
		"https://ex.com/a": &FullRecord{
			RecordBase: RecordBase{URL: "https://ex.com/a", StatusCode: 200},
			Page:       parser.Page{InternalLinks: []string{seed}},
		},
		"https://ex.com/b": &ErrorRecord{
			RecordBase: RecordBase{URL: "https://ex.com/b", StatusCode: 404},
			ErrorType:  OutcomeFetchFailed,
		},
		"https://ex.com/lonely": &FullRecord{
			RecordBase: RecordBase{URL: "https://ex.com/lonely", StatusCode: 200},
			Page:       parser.Page{InternalLinks: []string{}},
		},
	}

	g := NewGraph()
	g.AddEdge(seed, "https://ex.com/a")
	g.AddEdge(seed, "https://ex.com/b")
	g.AddEdge("https://ex.com/a", seed)

	site := SitePreflightData{RobotsTxt: "User-agent: *", Sitemaps: []string{"https://ex.com/sitemap.xml"}}
	Aggregate(pages, g, seed, site)

	tests := []struct {
		url    string
		in     int
		out    int
		orphan bool
	}{
		{seed, 1, 2, false},
		{"https://ex.com/a", 1, 1, false},
		{"https://ex.com/b", 1, 0, false},
		{"https://ex.com/lonely", 0, 0, true},
	}
	for _, tt := range tests {
		base := pages[tt.url].Common()
		if base.InDegree != tt.in || base.OutDegree != tt.out || base.IsOrphan != tt.orphan {
			t.Errorf("%s: in=%d out=%d orphan=%v, want in=%d out=%d orphan=%v",
				tt.url, base.InDegree, base.OutDegree, base.IsOrphan, tt.in, tt.out, tt.orphan)
		}
	}

	if sw := pages[seed].Common().SiteWide; sw == nil || sw.RobotsTxt != "User-agent: *" {
		t.Errorf("seed site_wide = %+v", sw)
	}
	if pages["https://ex.com/a"].Common().SiteWide != nil {
		t.Error("only the seed gets site_wide")
	}
}

func TestAggregateSeedNeverOrphan(t *testing.T) {
	seed := "https://ex.com"
	pages := map[string]PageRecord{
		seed: &ErrorRecord{RecordBase: RecordBase{URL: seed}, ErrorType: OutcomeFetchFailed},
	}
	Aggregate(pages, NewGraph(), seed, SitePreflightData{})

	base := pages[seed].Common()
	if base.IsOrphan {
		t.Error("seed flagged as orphan")
	}
	if base.SiteWide == nil || base.SiteWide.Sitemaps == nil {
		t.Error("seed should carry site_wide with a non-nil sitemap list")
	}
}
