package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// SystemHandler serves setup validation and the dashboard counters.
type SystemHandler struct {
	hierarchy  repository.HierarchyRepository
	broadcasts repository.BroadcastRepository
	logger     *zap.Logger
}

func NewSystemHandler(hierarchy repository.HierarchyRepository, broadcasts repository.BroadcastRepository, logger *zap.Logger) *SystemHandler {
	return &SystemHandler{hierarchy: hierarchy, broadcasts: broadcasts, logger: logger}
}

// Validate handles GET /api/v1/validate
func (h *SystemHandler) Validate(c *gin.Context) {
	usersTable, levelTables, err := h.hierarchy.Validate(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to validate schema")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users_table_exists":  usersTable,
		"levels_tables_exist": levelTables,
	})
}

// Stats handles GET /api/v1/statistics
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.broadcasts.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to collect statistics")
		return
	}
	c.JSON(http.StatusOK, stats)
}
