package pager

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/sekikawa0127/github-repo-search/internal/cache"
	"github.com/sekikawa0127/github-repo-search/internal/domain"
	"github.com/sekikawa0127/github-repo-search/internal/source"
)

// contributorsPerRepo is the page size requested from the contributors
// endpoint for each repository. It is independent of the outer page size.
const contributorsPerRepo = 10

// Page is one batch of loaded repositories plus continuation keys.
// A nil PrevKey marks the first page; a nil NextKey marks the end of the
// dataset.
type Page struct {
	Data    []domain.Repo
	PrevKey *int
	NextKey *int
}

// State is the paging consumer's view of the pages loaded so far, used to
// derive a refresh key after invalidation. Anchor is the absolute item
// position the consumer is closest to, or nil when unknown.
type State struct {
	Pages  []Page
	Anchor *int
}

// Loader loads one page of search results at a time for a single bound
// query, enriches every repository with its top contributors and appends
// each successfully loaded batch to the shared store. A Loader holds no
// state besides its query; every Load call is an independent unit of work.
type Loader struct {
	source source.RemoteSource
	store  *cache.Store[domain.Repo]
	query  string
}

// New creates a Loader bound to query.
func New(src source.RemoteSource, store *cache.Store[domain.Repo], query string) *Loader {
	return &Loader{
		source: src,
		store:  store,
		query:  query,
	}
}

// Query returns the query the loader is bound to.
func (l *Loader) Query() string {
	return l.query
}

// Load fetches one page of repositories for the bound query. A nil key
// means the first page. Every returned repository is independently
// enriched with contributors; an enrichment failure keeps the repository
// in the batch without contributor data. The enriched batch is appended
// to the store exactly once per successful call. A page-fetch failure
// returns an error and leaves the store untouched, and a cancelled
// context propagates as the bare context error.
func (l *Loader) Load(ctx context.Context, key *int, pageSize int) (*Page, error) {
	page := 1
	if key != nil {
		page = *key
	}

	repos, err := l.source.SearchRepos(ctx, l.query, page, pageSize)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	enriched := l.enrichAll(ctx, repos)
	if ctx.Err() != nil {
		// Never append a partial batch for a cancelled load.
		return nil, ctx.Err()
	}

	l.store.Append(enriched)

	var prevKey, nextKey *int
	if page > 1 {
		prev := page - 1
		prevKey = &prev
	}
	if len(repos) > 0 {
		next := page + 1
		nextKey = &next
	}

	return &Page{
		Data:    enriched,
		PrevKey: prevKey,
		NextKey: nextKey,
	}, nil
}

// RefreshKey derives the page key to reload from after invalidation:
// the page closest to the anchor position, re-centered via its prev key
// when present, its next key otherwise.
func (l *Loader) RefreshKey(state State) *int {
	if state.Anchor == nil {
		return nil
	}
	page := state.closestPage(*state.Anchor)
	if page == nil {
		return nil
	}
	if page.PrevKey != nil {
		key := *page.PrevKey + 1
		return &key
	}
	if page.NextKey != nil {
		key := *page.NextKey - 1
		return &key
	}
	return nil
}

// enrichAll fetches contributors for every repository concurrently.
// Failures are isolated per repository.
func (l *Loader) enrichAll(ctx context.Context, repos []domain.Repo) []domain.Repo {
	enriched := make([]domain.Repo, len(repos))

	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func(i int, repo domain.Repo) {
			defer wg.Done()
			enriched[i] = l.enrich(ctx, repo)
		}(i, repo)
	}
	wg.Wait()

	return enriched
}

// enrich merges the top contributors into repo. On any failure the
// repository is returned unchanged, without contributor data.
func (l *Loader) enrich(ctx context.Context, repo domain.Repo) domain.Repo {
	owner, name, ok := strings.Cut(repo.FullName, "/")
	if !ok || owner == "" || name == "" {
		slog.Warn("malformed repository full name, skipping contributors", "repo", repo.FullName)
		return repo
	}

	contributors, err := l.source.Contributors(ctx, owner, name, contributorsPerRepo)
	if err != nil {
		slog.Warn("failed to fetch contributors", "repo", repo.FullName, "error", err)
		return repo
	}

	if len(contributors) > 0 {
		top := contributors[0]
		repo.Contributor = &top
	}
	repo.Contributors = contributors
	return repo
}

// closestPage returns the loaded page containing the anchor position, or
// the last page when the anchor lies past the loaded range.
func (s State) closestPage(anchor int) *Page {
	if len(s.Pages) == 0 {
		return nil
	}
	offset := anchor
	for i := range s.Pages {
		if offset < len(s.Pages[i].Data) {
			return &s.Pages[i]
		}
		offset -= len(s.Pages[i].Data)
	}
	return &s.Pages[len(s.Pages)-1]
}
