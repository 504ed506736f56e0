package crawler

import (
	"sync"
)

// FrontierEntry is a URL waiting to be fetched and its hop distance from
// the seed.
type FrontierEntry struct {
	URL   string
	Depth int
}

// Frontier is the FIFO work queue shared by all workers of one crawl.
// It owns the visited and pending sets; a URL is handed out at most once
// and never after the visited count reaches the page budget.
type Frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []FrontierEntry
	pending  map[string]struct{}
	visited  map[string]struct{}
	order    []string
	maxPages int
	inFlight int
	stopped  bool
}

// NewFrontier creates a frontier with the given page budget
func NewFrontier(maxPages int) *Frontier {
	f := &Frontier{
		pending:  make(map[string]struct{}),
		visited:  make(map[string]struct{}),
		maxPages: maxPages,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Offer enqueues url at depth unless it is already visited or pending, or
// the visited+pending count has reached the budget.
func (f *Frontier) Offer(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.stopped {
		return false
	}
	if _, ok := f.visited[url]; ok {
		return false
	}
	if _, ok := f.pending[url]; ok {
		return false
	}
	if len(f.visited)+len(f.pending) >= f.maxPages {
		return false
	}

	f.queue = append(f.queue, FrontierEntry{URL: url, Depth: depth})
	f.pending[url] = struct{}{}
	f.cond.Signal()
	return true
}

// Next blocks until an entry is available and claims it as visited. It
// returns false once the crawl is halted: the budget is reached, the queue
// is empty with nothing in flight, or Stop was called. Every claimed entry
// must be released with Done.
func (f *Frontier) Next() (FrontierEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.stopped || len(f.visited) >= f.maxPages {
			f.cond.Broadcast()
			return FrontierEntry{}, false
		}

		if len(f.queue) > 0 {
			entry := f.queue[0]
			f.queue[0] = FrontierEntry{}
			f.queue = f.queue[1:]
			delete(f.pending, entry.URL)

			if _, ok := f.visited[entry.URL]; ok {
				continue
			}
			f.visited[entry.URL] = struct{}{}
			f.order = append(f.order, entry.URL)
			f.inFlight++
			return entry, true
		}

		if f.inFlight == 0 {
			f.cond.Broadcast()
			return FrontierEntry{}, false
		}
		f.cond.Wait()
	}
}

// Done releases an entry claimed by Next. Links found on the page must be
// offered before calling Done so idle workers do not halt early.
func (f *Frontier) Done() {
	f.mu.Lock()
	f.inFlight--
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Stop halts the frontier; waiting and future Next calls return false
func (f *Frontier) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Visited returns the claimed URLs in visit order
func (f *Frontier) Visited() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Counts returns the visited and pending sizes
func (f *Frontier) Counts() (visited, pending int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited), len(f.pending)
}
