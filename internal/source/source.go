package source

import (
	"context"

	"github.com/sekikawa0127/github-repo-search/internal/domain"
)

// RemoteSource defines the interface for the upstream repository API.
type RemoteSource interface {
	// SearchRepos retrieves one page of repositories matching query,
	// sorted by stars in descending order. page starts at 1.
	SearchRepos(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error)

	// Contributors retrieves up to perPage top contributors for the
	// repository owner/name.
	Contributors(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error)
}
