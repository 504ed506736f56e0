package crawler

// Aggregate fills in the graph-derived fields once the crawl has halted.
// Out-degree counts the unique internal links of a full record; in-degree
// comes from the accumulated in-edges; every page but the seed with no
// in-edges is an orphan. The seed record also receives the site-wide data.
func Aggregate(pages map[string]PageRecord, graph *Graph, seed string, site SitePreflightData) {
	for url, rec := range pages {
		base := rec.Common()

		base.OutDegree = 0
		if full, ok := rec.(*FullRecord); ok {
			base.OutDegree = len(full.InternalLinks)
		}
		base.InDegree = graph.InDegree(url)
		base.IsOrphan = url != seed && base.InDegree == 0

		if url == seed {
			data := site
			if data.Sitemaps == nil {
				data.Sitemaps = []string{}
			}
			base.SiteWide = &data
		}
	}
}
