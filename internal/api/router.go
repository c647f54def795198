package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "goea/internal/errors"
	"goea/internal/subdag"
	"goea/ports"
)

// NewRouter wires the read-only query API. Run routes are only registered
// when repo is non-nil.
func NewRouter(builder *subdag.Builder, repo ports.RunRepository, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "terms": builder.Graph().Len()})
	})

	terms := NewTermHandler(builder)
	r.GET("/terms/:id", terms.GetTerm)
	r.GET("/terms/:id/ancestors", terms.GetAncestors)
	r.GET("/terms/:id/descendants", terms.GetDescendants)

	if repo != nil {
		runs := NewRunHandler(repo)
		r.GET("/runs", runs.ListRuns)
		r.GET("/runs/:id", runs.GetRun)
	}
	return r
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func respondError(c *gin.Context, err error) {
	code := apperrors.CodeFor(err)
	c.JSON(apperrors.HTTPStatus(code), gin.H{"error": err.Error(), "code": code})
}
