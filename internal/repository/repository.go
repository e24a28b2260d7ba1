package repository

import (
	"context"
	"sync"
	"time"

	"github.com/sekikawa0127/github-repo-search/internal/cache"
	"github.com/sekikawa0127/github-repo-search/internal/connectivity"
	"github.com/sekikawa0127/github-repo-search/internal/domain"
	"github.com/sekikawa0127/github-repo-search/internal/pager"
	"github.com/sekikawa0127/github-repo-search/internal/source"
)

const (
	defaultPageSize = 10
	defaultDebounce = 300 * time.Millisecond
)

// Repository is the facade combining page loaders, the record cache and
// the connectivity monitor. It owns the cache: every page loaded through
// any query lands in the same store, so a detail lookup can succeed for a
// record loaded under an earlier, abandoned query.
type Repository struct {
	source   source.RemoteSource
	store    *cache.Store[domain.Repo]
	monitor  *connectivity.Monitor
	pageSize int
	debounce time.Duration
}

// Option configures a Repository.
type Option func(*Repository)

// WithPageSize overrides the default page size of 10.
func WithPageSize(size int) Option {
	return func(r *Repository) { r.pageSize = size }
}

// WithDebounce overrides the default query debounce of 300ms.
func WithDebounce(d time.Duration) Option {
	return func(r *Repository) { r.debounce = d }
}

// New creates a Repository. monitor may be nil when connectivity
// observation is not needed.
func New(src source.RemoteSource, store *cache.Store[domain.Repo], monitor *connectivity.Monitor, opts ...Option) *Repository {
	r := &Repository{
		source:   src,
		store:    store,
		monitor:  monitor,
		pageSize: defaultPageSize,
		debounce: defaultDebounce,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PageResult is one emission of a paged stream: a loaded page or the
// load error for the consumer to retry, tagged with the query that
// produced it.
type PageResult struct {
	Query string
	Page  *pager.Page
	Err   error
}

// Lookup is the outcome of a details lookup against one cache snapshot.
type Lookup struct {
	Repo  *domain.Repo
	Found bool
}

// Stream is a live paged search. Pages are produced on demand: the first
// page of every query loads eagerly, each further page (or a retry after
// an error) waits for LoadMore. Already-delivered pages are retained in
// the stream state so a refresh can re-anchor without refetching
// everything blindly.
type Stream struct {
	pages   chan PageResult
	more    chan struct{}
	refresh chan struct{}

	mu     sync.Mutex
	state  pager.State
	anchor *int
}

// Pages returns the stream of page results. The channel is closed when
// the stream's context ends.
func (s *Stream) Pages() <-chan PageResult {
	return s.pages
}

// LoadMore requests the next page from the active session, or a retry of
// the last failed load. It never blocks; redundant signals coalesce.
func (s *Stream) LoadMore() {
	select {
	case s.more <- struct{}{}:
	default:
	}
}

// SetAnchor records the consumer's current item position, used to derive
// the reload key on Refresh.
func (s *Stream) SetAnchor(position int) {
	s.mu.Lock()
	p := position
	s.anchor = &p
	s.mu.Unlock()
}

// Refresh invalidates the active session and reloads from the page
// closest to the recorded anchor. It never blocks; redundant signals
// coalesce.
func (s *Stream) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// State returns a copy of the pages loaded by the active session and the
// recorded anchor.
func (s *Stream) State() pager.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := pager.State{
		Pages:  make([]pager.Page, len(s.state.Pages)),
		Anchor: s.anchor,
	}
	copy(state.Pages, s.state.Pages)
	return state
}

func (s *Stream) appendPage(page pager.Page) {
	s.mu.Lock()
	s.state.Pages = append(s.state.Pages, page)
	s.mu.Unlock()
}

func (s *Stream) resetState() {
	s.mu.Lock()
	s.state.Pages = nil
	s.anchor = nil
	s.mu.Unlock()
}

// Search consumes a stream of raw query strings and returns a paged
// stream over the matching repositories. Inputs are debounced; empty
// strings never trigger a remote call; a value identical to the active
// query is coalesced. Every new effective query cancels the previous
// paging session and restarts from page 1, and no page belonging to a
// superseded query is delivered after the switch.
func (r *Repository) Search(ctx context.Context, queries <-chan string) *Stream {
	s := &Stream{
		pages:   make(chan PageResult),
		more:    make(chan struct{}, 1),
		refresh: make(chan struct{}, 1),
	}
	go r.run(ctx, queries, s)
	return s
}

func (r *Repository) run(ctx context.Context, queries <-chan string, s *Stream) {
	var (
		pending       string
		hasPending    bool
		current       string
		timer         *time.Timer
		timerC        <-chan time.Time
		sessOut       chan PageResult
		cancelSession = func() {}
	)
	defer func() {
		cancelSession()
		close(s.pages)
	}()

	startSession := func(startKey *int) {
		cancelSession()
		sessCtx, cancel := context.WithCancel(ctx)
		cancelSession = cancel
		sessOut = make(chan PageResult)
		s.resetState()
		go r.session(sessCtx, pager.New(r.source, r.store, current), startKey, sessOut, s.more)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case q, ok := <-queries:
			if !ok {
				// Keep serving the current session after the input ends.
				queries = nil
				continue
			}
			pending, hasPending = q, true
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(r.debounce)
			timerC = timer.C

		case <-timerC:
			timerC = nil
			if !hasPending || pending == "" || pending == current {
				continue
			}
			current = pending
			startSession(nil)

		case <-s.refresh:
			if current == "" {
				continue
			}
			loader := pager.New(r.source, r.store, current)
			startSession(loader.RefreshKey(s.State()))

		case res, ok := <-sessOut:
			if !ok {
				sessOut = nil
				continue
			}
			if res.Query != current {
				continue
			}
			select {
			case s.pages <- res:
			case <-ctx.Done():
				return
			}
			if res.Err == nil {
				s.appendPage(*res.Page)
			}
		}
	}
}

// session drives one loader from startKey until the dataset ends, the
// context is cancelled or the session is superseded. A load error is
// emitted and the same key is retried on the next demand signal.
func (r *Repository) session(ctx context.Context, loader *pager.Loader, startKey *int, out chan<- PageResult, more <-chan struct{}) {
	defer close(out)

	key := startKey
	for {
		page, err := loader.Load(ctx, key, r.pageSize)
		if ctx.Err() != nil {
			return
		}

		res := PageResult{Query: loader.Query(), Page: page, Err: err}
		select {
		case <-ctx.Done():
			return
		case out <- res:
		}

		if err == nil {
			if page.NextKey == nil {
				return
			}
			key = page.NextKey
		}

		select {
		case <-ctx.Done():
			return
		case <-more:
		}
	}
}

// LoadPage performs a single page load for a request/response consumer:
// it binds a loader to query, loads the page for key (nil means page 1)
// and appends the enriched batch to the shared cache.
func (r *Repository) LoadPage(ctx context.Context, query string, key *int, pageSize int) (*pager.Page, error) {
	if pageSize <= 0 {
		pageSize = r.pageSize
	}
	return pager.New(r.source, r.store, query).Load(ctx, key, pageSize)
}

// RepoDetails observes the record cache and projects the repository with
// the given id out of every snapshot. The lookup is level-triggered: a
// late subscriber receives the outcome for the current snapshot
// immediately, and every cache update re-evaluates and re-emits even when
// the outcome is unchanged.
func (r *Repository) RepoDetails(ctx context.Context, id int64) <-chan Lookup {
	out := make(chan Lookup)
	snapshots := r.store.All(ctx)

	go func() {
		defer close(out)
		for snapshot := range snapshots {
			lookup := Lookup{}
			for i := range snapshot {
				if snapshot[i].ID == id {
					repo := snapshot[i]
					lookup = Lookup{Repo: &repo, Found: true}
					break
				}
			}
			select {
			case out <- lookup:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Connectivity exposes the de-duplicated Available/Unavailable stream of
// the underlying monitor.
func (r *Repository) Connectivity(ctx context.Context) <-chan connectivity.State {
	return r.monitor.States(ctx)
}

// ConnectivityState returns the last observed connectivity state.
func (r *Repository) ConnectivityState() connectivity.State {
	if r.monitor == nil {
		return connectivity.Available
	}
	return r.monitor.Current()
}
