package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/hierarchy"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// statusFromErr maps the repository/hierarchy error taxonomy onto HTTP.
// Not-found conditions are expected outcomes for callers; configuration
// and constraint problems are client errors; the rest is a server fault.
func statusFromErr(err error) int {
	switch {
	case errors.Is(err, repository.ErrNodeNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrMessageNotFound),
		errors.Is(err, repository.ErrReferenceNotFound),
		errors.Is(err, repository.ErrNoRecipients):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrDuplicateTemplate),
		errors.Is(err, hierarchy.ErrNoLevelTables),
		errors.Is(err, hierarchy.ErrAmbiguousHierarchy),
		errors.Is(err, hierarchy.ErrUnknownFilterLevel):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status. Server faults are logged with
// their cause but answered with a generic message; expected errors carry
// their own text to the caller.
func respondError(c *gin.Context, logger *zap.Logger, err error, fallback string) {
	status := statusFromErr(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
