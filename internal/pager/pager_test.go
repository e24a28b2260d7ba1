package pager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekikawa0127/github-repo-search/internal/cache"
	"github.com/sekikawa0127/github-repo-search/internal/domain"
	apperrors "github.com/sekikawa0127/github-repo-search/internal/errors"
)

// stubSource is a hand-rolled RemoteSource for loader tests.
type stubSource struct {
	mu               sync.Mutex
	searchFn         func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error)
	contributorsFn   func(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error)
	searchCalls      []searchCall
	contributorCalls []contributorCall
}

type searchCall struct {
	query   string
	page    int
	perPage int
}

type contributorCall struct {
	owner   string
	name    string
	perPage int
}

func (s *stubSource) SearchRepos(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
	s.mu.Lock()
	s.searchCalls = append(s.searchCalls, searchCall{query: query, page: page, perPage: perPage})
	s.mu.Unlock()
	return s.searchFn(ctx, query, page, perPage)
}

func (s *stubSource) Contributors(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error) {
	s.mu.Lock()
	s.contributorCalls = append(s.contributorCalls, contributorCall{owner: owner, name: name, perPage: perPage})
	s.mu.Unlock()
	return s.contributorsFn(ctx, owner, name, perPage)
}

func (s *stubSource) searched() []searchCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]searchCall(nil), s.searchCalls...)
}

func (s *stubSource) enriched() []contributorCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contributorCall(nil), s.contributorCalls...)
}

func makeRepo(id int64) domain.Repo {
	return domain.Repo{
		ID:       id,
		FullName: fmt.Sprintf("owner%d/repo%d", id, id),
		Stars:    int(id) * 10,
		HTMLURL:  fmt.Sprintf("https://github.com/owner%d/repo%d", id, id),
		Owner: domain.Owner{
			ID:    id,
			Login: fmt.Sprintf("owner%d", id),
		},
	}
}

func makeContributors(n int) []domain.Contributor {
	contributors := make([]domain.Contributor, n)
	for i := range contributors {
		id := int64(i + 1)
		contributors[i] = domain.Contributor{
			ID:            &id,
			Login:         fmt.Sprintf("contributor%d", i+1),
			Contributions: 100 - i,
		}
	}
	return contributors
}

func fixedSearch(repos []domain.Repo) func(context.Context, string, int, int) ([]domain.Repo, error) {
	return func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
		return repos, nil
	}
}

func fixedContributors(contributors []domain.Contributor) func(context.Context, string, string, int) ([]domain.Contributor, error) {
	return func(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error) {
		return contributors, nil
	}
}

func intPtr(n int) *int { return &n }

func TestLoad_FirstPage(t *testing.T) {
	src := &stubSource{
		searchFn:       fixedSearch([]domain.Repo{makeRepo(1), makeRepo(2), makeRepo(3)}),
		contributorsFn: fixedContributors(makeContributors(2)),
	}
	store := cache.NewStore[domain.Repo]()
	loader := New(src, store, "android")

	page, err := loader.Load(context.Background(), nil, 20)
	require.NoError(t, err)

	assert.Len(t, page.Data, 3)
	assert.Nil(t, page.PrevKey)
	require.NotNil(t, page.NextKey)
	assert.Equal(t, 2, *page.NextKey)

	for _, repo := range page.Data {
		require.NotNil(t, repo.Contributor)
		assert.Equal(t, "contributor1", repo.Contributor.Login)
		assert.Len(t, repo.Contributors, 2)
	}

	// A nil key means page 1.
	require.Len(t, src.searched(), 1)
	assert.Equal(t, searchCall{query: "android", page: 1, perPage: 20}, src.searched()[0])

	// One contributors call per record, at the fixed per-record page size.
	calls := src.enriched()
	require.Len(t, calls, 3)
	for _, call := range calls {
		assert.Equal(t, contributorsPerRepo, call.perPage)
	}

	assert.Equal(t, page.Data, store.Snapshot())
}

func TestLoad_MiddlePageKeys(t *testing.T) {
	src := &stubSource{
		searchFn:       fixedSearch([]domain.Repo{makeRepo(1), makeRepo(2), makeRepo(3)}),
		contributorsFn: fixedContributors(makeContributors(1)),
	}
	loader := New(src, cache.NewStore[domain.Repo](), "android")

	page, err := loader.Load(context.Background(), intPtr(3), 10)
	require.NoError(t, err)

	require.NotNil(t, page.PrevKey)
	require.NotNil(t, page.NextKey)
	assert.Equal(t, 2, *page.PrevKey)
	assert.Equal(t, 4, *page.NextKey)
	assert.Equal(t, searchCall{query: "android", page: 3, perPage: 10}, src.searched()[0])
}

func TestLoad_EmptyResponseEndsDataset(t *testing.T) {
	src := &stubSource{
		searchFn:       fixedSearch(nil),
		contributorsFn: fixedContributors(nil),
	}
	store := cache.NewStore[domain.Repo]()
	loader := New(src, store, "android")

	page, err := loader.Load(context.Background(), intPtr(5), 10)
	require.NoError(t, err)

	assert.Empty(t, page.Data)
	assert.Nil(t, page.NextKey)
	require.NotNil(t, page.PrevKey)
	assert.Equal(t, 4, *page.PrevKey)
	assert.Empty(t, src.enriched())
	assert.Zero(t, store.Len())
}

func TestLoad_EnrichmentFailureIsIsolatedPerRecord(t *testing.T) {
	src := &stubSource{
		searchFn: fixedSearch([]domain.Repo{makeRepo(1), makeRepo(2), makeRepo(3)}),
		contributorsFn: func(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error) {
			if owner == "owner2" {
				return nil, apperrors.FromStatusCode(500, "boom", nil)
			}
			return makeContributors(2), nil
		},
	}
	store := cache.NewStore[domain.Repo]()
	loader := New(src, store, "android")

	page, err := loader.Load(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)

	var failed domain.Repo
	for _, repo := range page.Data {
		if repo.ID == 2 {
			failed = repo
			continue
		}
		require.NotNil(t, repo.Contributor)
		assert.Len(t, repo.Contributors, 2)
	}

	// The failed record keeps its own fields and loses only the enrichment.
	assert.Equal(t, int64(2), failed.ID)
	assert.Equal(t, "owner2/repo2", failed.FullName)
	assert.Nil(t, failed.Contributor)
	assert.Empty(t, failed.Contributors)

	// The full batch is appended regardless of enrichment outcomes.
	assert.Equal(t, 3, store.Len())
}

func TestLoad_MalformedFullNameSkipsEnrichment(t *testing.T) {
	malformed := makeRepo(1)
	malformed.FullName = "no-separator"

	src := &stubSource{
		searchFn:       fixedSearch([]domain.Repo{malformed, makeRepo(2)}),
		contributorsFn: fixedContributors(makeContributors(1)),
	}
	loader := New(src, cache.NewStore[domain.Repo](), "android")

	page, err := loader.Load(context.Background(), nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)

	assert.Nil(t, page.Data[0].Contributor)
	assert.Empty(t, page.Data[0].Contributors)
	require.NotNil(t, page.Data[1].Contributor)

	require.Len(t, src.enriched(), 1)
	assert.Equal(t, "owner2", src.enriched()[0].owner)
	assert.Equal(t, "repo2", src.enriched()[0].name)
}

func TestLoad_PageFetchFailureLeavesCacheUntouched(t *testing.T) {
	upstreamErr := apperrors.FromStatusCode(500, "failed to search repositories", nil)
	src := &stubSource{
		searchFn: func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
			return nil, upstreamErr
		},
		contributorsFn: fixedContributors(nil),
	}
	store := cache.NewStore[domain.Repo]()
	store.Append([]domain.Repo{makeRepo(99)})
	loader := New(src, store, "android")

	page, err := loader.Load(context.Background(), nil, 10)
	require.Error(t, err)
	assert.Nil(t, page)
	assert.ErrorIs(t, err, upstreamErr)

	// The pre-call snapshot is unchanged.
	assert.Equal(t, 1, store.Len())
	assert.Empty(t, src.enriched())
}

func TestLoad_CancellationPropagatesFromFetch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &stubSource{
		searchFn: func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
			return nil, ctx.Err()
		},
		contributorsFn: fixedContributors(nil),
	}
	store := cache.NewStore[domain.Repo]()
	loader := New(src, store, "android")

	_, err := loader.Load(ctx, nil, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())
}

func TestLoad_CancellationDuringEnrichmentAppendsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	src := &stubSource{
		searchFn: func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
			// Cancel between the page fetch and the enrichment fan-out.
			cancel()
			return []domain.Repo{makeRepo(1), makeRepo(2)}, nil
		},
		contributorsFn: func(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error) {
			return nil, ctx.Err()
		},
	}
	store := cache.NewStore[domain.Repo]()
	loader := New(src, store, "android")

	_, err := loader.Load(ctx, nil, 10)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.Len())
}

func TestRefreshKey(t *testing.T) {
	loader := New(&stubSource{}, cache.NewStore[domain.Repo](), "android")

	pageWith := func(prev, next *int) Page {
		return Page{
			Data:    []domain.Repo{makeRepo(1), makeRepo(2)},
			PrevKey: prev,
			NextKey: next,
		}
	}

	tests := []struct {
		name  string
		state State
		want  *int
	}{
		{
			name:  "no anchor position",
			state: State{Pages: []Page{pageWith(intPtr(3), intPtr(5))}},
			want:  nil,
		},
		{
			name:  "anchor but no resolvable page",
			state: State{Pages: nil, Anchor: intPtr(0)},
			want:  nil,
		},
		{
			name:  "closest page has prev key",
			state: State{Pages: []Page{pageWith(intPtr(3), intPtr(5))}, Anchor: intPtr(0)},
			want:  intPtr(4),
		},
		{
			name:  "closest page has only next key",
			state: State{Pages: []Page{pageWith(nil, intPtr(5))}, Anchor: intPtr(0)},
			want:  intPtr(4),
		},
		{
			name:  "closest page has no keys",
			state: State{Pages: []Page{pageWith(nil, nil)}, Anchor: intPtr(0)},
			want:  nil,
		},
		{
			name: "anchor selects the containing page",
			state: State{
				Pages:  []Page{pageWith(nil, intPtr(2)), pageWith(intPtr(1), intPtr(3))},
				Anchor: intPtr(3),
			},
			want: intPtr(2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := loader.RefreshKey(tt.state)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestLoad_WrapsNoUnrelatedErrors(t *testing.T) {
	plain := errors.New("connection reset")
	src := &stubSource{
		searchFn: func(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
			return nil, plain
		},
		contributorsFn: fixedContributors(nil),
	}
	loader := New(src, cache.NewStore[domain.Repo](), "android")

	_, err := loader.Load(context.Background(), nil, 10)
	assert.ErrorIs(t, err, plain)
}
