package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sekikawa0127/github-repo-search/internal/api"
	"github.com/sekikawa0127/github-repo-search/internal/cache"
	"github.com/sekikawa0127/github-repo-search/internal/config"
	"github.com/sekikawa0127/github-repo-search/internal/connectivity"
	"github.com/sekikawa0127/github-repo-search/internal/domain"
	"github.com/sekikawa0127/github-repo-search/internal/repository"
	"github.com/sekikawa0127/github-repo-search/internal/savedstate"
	"github.com/sekikawa0127/github-repo-search/internal/source"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize the pipeline
	src := source.NewGitHubSource(cfg.GitHubToken)
	store := cache.NewStore[domain.Repo]()

	monitor := connectivity.NewMonitor(
		connectivity.DefaultProbe(cfg.ProbeURL, 5*time.Second),
		time.Duration(cfg.ProbeIntervalSec)*time.Second,
	)
	go monitor.Run(context.Background())

	repo := repository.New(src, store, monitor, repository.WithPageSize(cfg.PageSize))

	// Initialize handler
	handler := api.NewHandler(repo, savedstate.NewSlot())

	// Setup routes
	router := api.SetupRoutes(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	fmt.Printf("Starting API server on %s\n", addr)

	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start server: %v\n", err)
		os.Exit(1)
	}
}
