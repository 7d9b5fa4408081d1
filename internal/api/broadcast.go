package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// BroadcastHandler serves the send action and the operator's sent views.
type BroadcastHandler struct {
	repo   repository.BroadcastRepository
	logger *zap.Logger
}

func NewBroadcastHandler(repo repository.BroadcastRepository, logger *zap.Logger) *BroadcastHandler {
	return &BroadcastHandler{repo: repo, logger: logger}
}

type sendRequest struct {
	TemplateName   string `json:"template_name" binding:"required"`
	MessageTitle   string `json:"message_title" binding:"required"`
	MessageContent string `json:"message_content" binding:"required"`
	BtmLvl         string `json:"btm_lvl" binding:"required"`
	UserCount      int    `json:"user_count"`
}

// Send handles POST /api/v1/expMessages
func (h *BroadcastHandler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.repo.Broadcast(c.Request.Context(), repository.BroadcastInput{
		TemplateName:   req.TemplateName,
		MessageTitle:   req.MessageTitle,
		MessageContent: req.MessageContent,
		TargetNode:     req.BtmLvl,
		PlannedCount:   req.UserCount,
	})
	if err != nil {
		respondError(c, h.logger, err, "failed to broadcast message")
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":           "reference data and exp_messages created successfully",
		"reference_id":      result.ReferenceID,
		"exp_message_count": result.MessageCount,
	})
}

// List handles GET /api/v1/viewMessages?limit=10
func (h *BroadcastHandler) List(c *gin.Context) {
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

	summaries, err := h.repo.ListBroadcasts(c.Request.Context(), limit)
	if err != nil {
		respondError(c, h.logger, err, "failed to list broadcasts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": summaries})
}

// Detail handles GET /api/v1/viewMessages/:id
func (h *BroadcastHandler) Detail(c *gin.Context) {
	referenceID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference id"})
		return
	}

	detail, err := h.repo.Detail(c.Request.Context(), referenceID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch broadcast detail")
		return
	}
	c.JSON(http.StatusOK, gin.H{"reference_data": detail})
}
