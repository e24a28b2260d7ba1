package source

import (
	"context"

	"github.com/google/go-github/v55/github"
	"golang.org/x/oauth2"

	"github.com/sekikawa0127/github-repo-search/internal/domain"
	apperrors "github.com/sekikawa0127/github-repo-search/internal/errors"
)

// githubSource implements RemoteSource using the GitHub API
type githubSource struct {
	client      *github.Client
	rateLimiter RateLimiter
}

// NewGitHubSource creates a new GitHub-backed remote source. An empty
// token yields an unauthenticated client.
func NewGitHubSource(token string) RemoteSource {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		tc := oauth2.NewClient(context.Background(), ts)
		client = github.NewClient(tc)
	} else {
		client = github.NewClient(nil)
	}

	return &githubSource{
		client:      client,
		rateLimiter: NewRateLimiter(),
	}
}

// SearchRepos retrieves one page of repositories matching query, sorted
// by stars in descending order.
func (s *githubSource) SearchRepos(ctx context.Context, query string, page, perPage int) ([]domain.Repo, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.SearchOptions{
		Sort:  "stars",
		Order: "desc",
		ListOptions: github.ListOptions{
			Page:    page,
			PerPage: perPage,
		},
	}

	result, resp, err := s.client.Search.Repositories(ctx, query, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapResponseError("failed to search repositories", resp, err)
	}

	s.updateRateLimitFromResponse(resp)

	repos := make([]domain.Repo, 0, len(result.Repositories))
	for _, repo := range result.Repositories {
		repos = append(repos, toRepo(repo))
	}
	return repos, nil
}

// Contributors retrieves up to perPage top contributors for owner/name.
func (s *githubSource) Contributors(ctx context.Context, owner, name string, perPage int) ([]domain.Contributor, error) {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	opts := &github.ListContributorsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}

	contributors, resp, err := s.client.Repositories.ListContributors(ctx, owner, name, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, mapResponseError("failed to list contributors for "+owner+"/"+name, resp, err)
	}

	s.updateRateLimitFromResponse(resp)

	out := make([]domain.Contributor, 0, len(contributors))
	for _, c := range contributors {
		out = append(out, toContributor(c))
	}
	return out, nil
}

// updateRateLimitFromResponse updates the rate limiter from API response
func (s *githubSource) updateRateLimitFromResponse(resp *github.Response) {
	if resp != nil && resp.Rate.Remaining >= 0 {
		s.rateLimiter.UpdateLimit(resp.Rate.Remaining, resp.Rate.Reset.Time)
	}
}

// mapResponseError converts an upstream failure into a status-carrying
// application error.
func mapResponseError(message string, resp *github.Response, err error) error {
	if resp == nil {
		return apperrors.NewInternalError(message, err)
	}
	return apperrors.FromStatusCode(resp.StatusCode, message, err)
}

func toRepo(repo *github.Repository) domain.Repo {
	return domain.Repo{
		ID:          repo.GetID(),
		FullName:    repo.GetFullName(),
		Description: repo.GetDescription(),
		Stars:       repo.GetStargazersCount(),
		HTMLURL:     repo.GetHTMLURL(),
		Owner:       toOwner(repo.GetOwner()),
	}
}

func toOwner(user *github.User) domain.Owner {
	if user == nil {
		return domain.Owner{}
	}
	return domain.Owner{
		ID:        user.GetID(),
		Login:     user.GetLogin(),
		AvatarURL: user.GetAvatarURL(),
	}
}

func toContributor(c *github.Contributor) domain.Contributor {
	var id *int64
	if c.ID != nil {
		v := c.GetID()
		id = &v
	}
	return domain.Contributor{
		ID:            id,
		Login:         c.GetLogin(),
		Contributions: c.GetContributions(),
		AvatarURL:     c.GetAvatarURL(),
		HTMLURL:       c.GetHTMLURL(),
	}
}
