package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sekikawa0127/github-repo-search/internal/errors"
	"github.com/sekikawa0127/github-repo-search/internal/repository"
	"github.com/sekikawa0127/github-repo-search/internal/savedstate"
)

// Handler handles API requests
type Handler struct {
	repo *repository.Repository
	slot *savedstate.Slot
}

// NewHandler creates a new API handler
func NewHandler(repo *repository.Repository, slot *savedstate.Slot) *Handler {
	return &Handler{
		repo: repo,
		slot: slot,
	}
}

// SearchRepos loads one page of search results and appends it to the
// shared cache.
// GET /api/v1/repos/search?q=&page=&per_page=
func (h *Handler) SearchRepos(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		respondError(c, apperrors.NewBadRequestError("query parameter 'q' is required"))
		return
	}

	var key *int
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			respondError(c, apperrors.NewBadRequestError("'page' must be a positive integer"))
			return
		}
		key = &page
	}

	perPage := 0
	if raw := c.Query("per_page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, apperrors.NewBadRequestError("'per_page' must be a positive integer"))
			return
		}
		perPage = n
	}

	page, err := h.repo.LoadPage(c.Request.Context(), query, key, perPage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     page.Data,
		"prev_key": page.PrevKey,
		"next_key": page.NextKey,
	})
}

// GetRepo looks a repository up in the cache by id. A hit refreshes the
// saved-state slot; a miss falls back to it before reporting not found.
// GET /api/v1/repos/:id
func (h *Handler) GetRepo(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, apperrors.NewBadRequestError("'id' must be an integer"))
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	lookup := <-h.repo.RepoDetails(ctx, id)
	if lookup.Found {
		_ = h.slot.Save(*lookup.Repo)
		c.JSON(http.StatusOK, gin.H{"data": lookup.Repo})
		return
	}

	if restored, ok := h.slot.Restore(); ok && restored.ID == id {
		c.JSON(http.StatusOK, gin.H{"data": restored, "restored": true})
		return
	}

	respondError(c, apperrors.NewNotFoundError("repository"))
}

// GetStatus returns the current connectivity state.
// GET /api/v1/status
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state": h.repo.ConnectivityState().String(),
	})
}

// HealthCheck returns the service health.
// GET /health
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// respondError writes an error response with the appropriate status code
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrCodeInternal,
			"message": err.Error(),
		},
	})
}
