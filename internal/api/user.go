package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// UserHandler serves user sync, login, and user resolution.
type UserHandler struct {
	users      repository.UserRepository
	broadcasts repository.BroadcastRepository
	logger     *zap.Logger
}

func NewUserHandler(users repository.UserRepository, broadcasts repository.BroadcastRepository, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, broadcasts: broadcasts, logger: logger}
}

type addUsersRequest struct {
	Users []repository.UserInput `json:"users" binding:"required,min=1,dive"`
}

// AddUsers handles POST /api/v1/users/add-users
//
// Upsert-merge: one bad row ends up in the error report, the rest of the
// batch still lands.
func (h *UserHandler) AddUsers(c *gin.Context) {
	var req addUsersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.users.BatchUpsert(c.Request.Context(), req.Users)
	if err != nil {
		respondError(c, h.logger, err, "failed to sync users")
		return
	}
	c.JSON(http.StatusCreated, result)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
}

// Login handles POST /api/v1/users/login
//
// A bare lookup — no credentials, no token. Deliberate.
func (h *UserHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		respondError(c, h.logger, err, "failed to look up user")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID,
		"username": user.Username,
	})
}

// Filter handles GET /api/v1/users/user_filter?btm_lvl_name=
//
// An existing node with no users answers {"users": []} — only an unknown
// node is a 404.
func (h *UserHandler) Filter(c *gin.Context) {
	nodeName := c.Query("btm_lvl_name")
	if nodeName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "btm_lvl_name is required"})
		return
	}

	ids, err := h.users.UsersUnderNode(c.Request.Context(), nodeName)
	if err != nil {
		respondError(c, h.logger, err, "failed to filter users")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": ids})
}

// OpenMessage handles GET /api/v1/users/messages/:message_id
//
// Fetching the message is what marks it read; the transition is one-way.
func (h *UserHandler) OpenMessage(c *gin.Context) {
	messageID, err := strconv.ParseInt(c.Param("message_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	msg, err := h.broadcasts.OpenMessage(c.Request.Context(), messageID)
	if err != nil {
		respondError(c, h.logger, err, "failed to fetch message")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message_title":   msg.MsgTitle,
		"message_content": msg.MsgContent,
		"sent_time":       msg.SentTime.Format("02/01/2006 15:04:05"),
	})
}

// Inbox handles GET /api/v1/users/:user_id/messages
func (h *UserHandler) Inbox(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	items, err := h.users.Inbox(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err, "failed to list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":        userID,
		"reference_data": items,
	})
}

// Search handles GET /api/v1/users/user-search?user_ids=1,2&reference_id=7
func (h *UserHandler) Search(c *gin.Context) {
	referenceID, err := strconv.ParseInt(c.Query("reference_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid reference_id"})
		return
	}

	var userIDs []int64
	for _, part := range strings.Split(c.Query("user_ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_ids"})
			return
		}
		userIDs = append(userIDs, id)
	}
	if len(userIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids is required"})
		return
	}

	results, err := h.users.Search(c.Request.Context(), userIDs, referenceID)
	if err != nil {
		respondError(c, h.logger, err, "failed to search users")
		return
	}
	if len(results) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "users not found"})
		return
	}
	c.JSON(http.StatusOK, results)
}
