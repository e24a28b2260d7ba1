package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/sekikawa0127/github-repo-search/internal/cache"
	"github.com/sekikawa0127/github-repo-search/internal/config"
	"github.com/sekikawa0127/github-repo-search/internal/connectivity"
	"github.com/sekikawa0127/github-repo-search/internal/domain"
	"github.com/sekikawa0127/github-repo-search/internal/repository"
	"github.com/sekikawa0127/github-repo-search/internal/source"
	"github.com/sekikawa0127/github-repo-search/pkg/client"
)

var (
	maxPages int
	pageSize int
	endpoint string
)

var rootCmd = &cobra.Command{
	Use:   "repo-search",
	Short: "GitHub repository search tool",
	Long: `A CLI tool for searching GitHub repositories.

Search results are enriched with each repository's top contributors and
reconciled into an in-memory cache usable for detail lookups.`,
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search repositories",
	Long:  `Search GitHub repositories matching a query, sorted by stars.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

var showCmd = &cobra.Command{
	Use:   "show [query] [id]",
	Short: "Show repository details",
	Long:  `Search for repositories and display the details of the one with the given id.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runShow,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check upstream connectivity",
	RunE:  runStatus,
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Query a running API server",
}

var remoteSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search repositories through the API server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteSearch,
}

var remoteShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show cached repository details from the API server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteShow,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&maxPages, "pages", 1, "number of pages to load")
	rootCmd.PersistentFlags().IntVar(&pageSize, "page-size", 0, "page size (default from config)")
	remoteCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "API server endpoint (default from config)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteSearchCmd)
	remoteCmd.AddCommand(remoteShowCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildRepository(cfg *config.Config) *repository.Repository {
	src := source.NewGitHubSource(cfg.GitHubToken)
	store := cache.NewStore[domain.Repo]()
	size := cfg.PageSize
	if pageSize > 0 {
		size = pageSize
	}
	return repository.New(src, store, nil, repository.WithPageSize(size))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	repo := buildRepository(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queries := make(chan string, 1)
	queries <- query
	stream := repo.Search(ctx, queries)

	fmt.Printf("Searching for: %s\n", query)

	var repos []domain.Repo
	loaded := 0
	for res := range stream.Pages() {
		if res.Err != nil {
			return fmt.Errorf("failed to load page: %w", res.Err)
		}
		repos = append(repos, res.Page.Data...)
		loaded++
		if loaded >= maxPages || res.Page.NextKey == nil {
			break
		}
		stream.LoadMore()
	}

	renderRepos(repos)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	query := args[0]
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid repository id %q", args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	repo := buildRepository(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load pages until the id shows up in the cache.
	var key *int
	for page := 0; page < maxPages; page++ {
		result, err := repo.LoadPage(ctx, query, key, 0)
		if err != nil {
			return fmt.Errorf("failed to load page: %w", err)
		}
		if containsID(result.Data, id) || result.NextKey == nil {
			break
		}
		key = result.NextKey
	}

	lookup := <-repo.RepoDetails(ctx, id)
	if !lookup.Found {
		return fmt.Errorf("repository %d not found in the first %d page(s) for %q", id, maxPages, query)
	}

	renderRepoDetails(*lookup.Repo)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	probe := connectivity.DefaultProbe(cfg.ProbeURL, 5*time.Second)
	state := connectivity.Unavailable
	if probe(context.Background()) {
		state = connectivity.Available
	}
	fmt.Printf("Upstream API: %s\n", state)
	return nil
}

func runRemoteSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	c, err := remoteClient()
	if err != nil {
		return err
	}

	var repos []domain.Repo
	page := 0
	for loaded := 0; loaded < maxPages; loaded++ {
		result, err := c.SearchRepos(query, page, pageSize)
		if err != nil {
			return fmt.Errorf("failed to search: %w", err)
		}
		repos = append(repos, result.Data...)
		if result.NextKey == nil {
			break
		}
		page = *result.NextKey
	}

	renderRepos(repos)
	return nil
}

func runRemoteShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid repository id %q", args[0])
	}

	c, err := remoteClient()
	if err != nil {
		return err
	}

	repo, err := c.GetRepo(id)
	if err != nil {
		return fmt.Errorf("failed to get repository: %w", err)
	}

	renderRepoDetails(*repo)
	return nil
}

func remoteClient() (*client.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	url := cfg.APIEndpoint
	if endpoint != "" {
		url = endpoint
	}
	return client.NewClient(url), nil
}

func renderRepos(repos []domain.Repo) {
	if len(repos) == 0 {
		fmt.Println("No repositories found")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Repository", "Stars", "Top Contributor", "URL"})
	for _, repo := range repos {
		contributor := "-"
		if top := repo.TopContributor(); top != nil {
			contributor = top.Login
		}
		table.Append([]string{
			fmt.Sprintf("%d", repo.ID),
			repo.FullName,
			fmt.Sprintf("%d", repo.Stars),
			contributor,
			repo.HTMLURL,
		})
	}
	table.Render()
}

func renderRepoDetails(repo domain.Repo) {
	fmt.Printf("\n%s\n", repo.FullName)
	if repo.Description != "" {
		fmt.Println(repo.Description)
	}
	fmt.Println()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Field", "Value"})
	table.Append([]string{"ID", fmt.Sprintf("%d", repo.ID)})
	table.Append([]string{"Stars", fmt.Sprintf("%d", repo.Stars)})
	table.Append([]string{"Owner", repo.Owner.Login})
	table.Append([]string{"URL", repo.HTMLURL})
	table.Render()

	if len(repo.Contributors) > 0 {
		fmt.Println("\nTop contributors:")
		contributors := tablewriter.NewWriter(os.Stdout)
		contributors.SetHeader([]string{"Login", "Contributions"})
		for _, c := range repo.Contributors {
			contributors.Append([]string{c.Login, fmt.Sprintf("%d", c.Contributions)})
		}
		contributors.Render()
	}
}

func containsID(repos []domain.Repo, id int64) bool {
	for _, repo := range repos {
		if repo.ID == id {
			return true
		}
	}
	return false
}
