package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

type TemplateHandler struct {
	repo   repository.TemplateRepository
	logger *zap.Logger
}

func NewTemplateHandler(repo repository.TemplateRepository, logger *zap.Logger) *TemplateHandler {
	return &TemplateHandler{repo: repo, logger: logger}
}

type createTemplateRequest struct {
	TemplateName   string `json:"template_name" binding:"required"`
	MessageTitle   string `json:"message_title" binding:"required"`
	MessageContent string `json:"message_content" binding:"required"`
}

// Create handles POST /api/v1/templates
func (h *TemplateHandler) Create(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := h.repo.Create(c.Request.Context(), req.TemplateName, req.MessageTitle, req.MessageContent)
	if err != nil {
		respondError(c, h.logger, err, "failed to create template")
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

// List handles GET /api/v1/templates?limit=10
func (h *TemplateHandler) List(c *gin.Context) {
	limit := 10
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'limit' parameter"})
			return
		}
		limit = parsed
		if limit > 100 {
			limit = 100
		}
	}

	templates, err := h.repo.List(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to list templates")
		return
	}
	c.JSON(http.StatusOK, templates)
}
