package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// HierarchyHandler serves hierarchy upload and browsing.
type HierarchyHandler struct {
	repo   repository.HierarchyRepository
	logger *zap.Logger
}

func NewHierarchyHandler(repo repository.HierarchyRepository, logger *zap.Logger) *HierarchyHandler {
	return &HierarchyHandler{repo: repo, logger: logger}
}

type uploadHierarchyRequest struct {
	// Hierarchy is the ordered level name list, top first.
	Hierarchy []string `json:"hierarchy" binding:"required,min=1"`
	// Data holds one map per row, keyed by level name.
	Data []map[string]string `json:"data"`
}

// Upload handles POST /api/v1/hierarchy/upload
func (h *HierarchyHandler) Upload(c *gin.Context) {
	var req uploadHierarchyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tables, err := h.repo.UploadHierarchy(c.Request.Context(), req.Hierarchy, req.Data)
	if err != nil {
		respondError(c, h.logger, err, "failed to upload hierarchy")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":        "tables and data created successfully",
		"created_tables": tables,
	})
}

// LevelValues handles GET /api/v1/hierarchy/lvl-values
//
// Returns every row of every level table, for frontend dropdowns. An
// empty object before any upload, not an error.
func (h *HierarchyHandler) LevelValues(c *gin.Context) {
	values, err := h.repo.LevelValues(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch level values")
		return
	}
	c.JSON(http.StatusOK, values)
}

// Filter handles GET /api/v1/hierarchy/hierarchy-filter?filter_type=&filter_value=
func (h *HierarchyHandler) Filter(c *gin.Context) {
	filterType := c.Query("filter_type")
	filterValue := c.Query("filter_value")
	if filterType == "" || filterValue == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filter_type and filter_value are required"})
		return
	}

	rows, err := h.repo.Filter(c.Request.Context(), filterType, filterValue)
	if err != nil {
		respondError(c, h.logger, err, "failed to run hierarchy filter")
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no rows match the given filter"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filtered_values": rows})
}
