package domain

// Repo represents one enriched GitHub repository search result.
// ID is stable across the dataset and is the sole cache key.
type Repo struct {
	ID           int64         `json:"id"`
	FullName     string        `json:"full_name"`
	Description  string        `json:"description,omitempty"`
	Stars        int           `json:"stargazers_count"`
	HTMLURL      string        `json:"html_url"`
	Owner        Owner         `json:"owner"`
	Contributor  *Contributor  `json:"contributor,omitempty"`
	Contributors []Contributor `json:"contributors,omitempty"`
}

// Owner represents the user or organization that owns a repository.
type Owner struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

// Contributor represents a repository contributor. The upstream API may
// omit the ID for anonymous contributors.
type Contributor struct {
	ID            *int64 `json:"id,omitempty"`
	Login         string `json:"login"`
	Contributions int    `json:"contributions"`
	AvatarURL     string `json:"avatar_url,omitempty"`
	HTMLURL       string `json:"html_url"`
}

// TopContributor returns the primary contributor, falling back to the
// first entry of the contributor list.
func (r Repo) TopContributor() *Contributor {
	if r.Contributor != nil {
		return r.Contributor
	}
	if len(r.Contributors) > 0 {
		return &r.Contributors[0]
	}
	return nil
}
