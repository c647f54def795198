package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"goea/domain/core"
	apperrors "goea/internal/errors"
	"goea/ports"
)

// DefaultRunLimit caps GET /runs when no limit is given.
const DefaultRunLimit = 50

// RunHandler serves archived enrichment runs.
type RunHandler struct {
	repo ports.RunRepository
}

// NewRunHandler creates a handler over repo.
func NewRunHandler(repo ports.RunRepository) *RunHandler {
	return &RunHandler{repo: repo}
}

// ListRuns returns run headers, newest first.
func (h *RunHandler) ListRuns(c *gin.Context) {
	limit := DefaultRunLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			respondError(c, apperrors.InvalidInput("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// GetRun returns one run with all results. ?method=fdr_bh&alpha=0.05 keeps
// only the significant results.
func (h *RunHandler) GetRun(c *gin.Context) {
	id, err := core.ParseRunID(c.Param("id"))
	if err != nil {
		respondError(c, apperrors.WithCode(apperrors.CodeInvalidInput, err))
		return
	}

	run, err := h.repo.GetRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	if s := c.Query("alpha"); s != "" {
		alpha, err := strconv.ParseFloat(s, 64)
		if err != nil || alpha <= 0 || alpha > 1 {
			respondError(c, apperrors.InvalidInput("alpha must be in (0, 1]"))
			return
		}
		filtered := *run
		filtered.Results = run.Significant(c.Query("method"), alpha)
		run = &filtered
	}
	c.JSON(http.StatusOK, run)
}
