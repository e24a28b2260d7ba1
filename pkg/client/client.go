package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sekikawa0127/github-repo-search/internal/domain"
)

// Client is the API client for github-repo-search
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// PageResponse is one page of search results with continuation keys.
type PageResponse struct {
	Data    []domain.Repo `json:"data"`
	PrevKey *int          `json:"prev_key"`
	NextKey *int          `json:"next_key"`
}

// SearchRepos retrieves one page of repository search results
func (c *Client) SearchRepos(query string, page, perPage int) (*PageResponse, error) {
	params := url.Values{}
	params.Set("q", query)
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		params.Set("per_page", strconv.Itoa(perPage))
	}

	var response PageResponse
	if err := c.get("/api/v1/repos/search", params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetRepo retrieves the cached details of a single repository
func (c *Client) GetRepo(id int64) (*domain.Repo, error) {
	var response struct {
		Data *domain.Repo `json:"data"`
	}
	if err := c.get(fmt.Sprintf("/api/v1/repos/%d", id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetStatus retrieves the server's connectivity state
func (c *Client) GetStatus() (string, error) {
	var response struct {
		State string `json:"state"`
	}
	if err := c.get("/api/v1/status", nil, &response); err != nil {
		return "", err
	}
	return response.State, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck() error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get("/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error: %s - %s", resp.Status, string(body))
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
