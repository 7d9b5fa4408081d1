package models

import (
	"strconv"
	"time"
)

// Message read states. The transition is one-way: unread → read.
const (
	ReadStatusUnread = "unread"
	ReadStatusRead   = "read"
)

// ChannelWebhooks is the only delivery channel today; the column exists so
// more can be added without a schema change.
const ChannelWebhooks = "webhooks"

// User is a person attached to the bottom-most hierarchy level. The column
// binding the user to that level is named after whichever level is
// currently bottom-most (e.g. branch_id), so the struct carries the value
// under a stable field and the repository maps the column name.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	NodeID   int64  `json:"btm_lvl_id"`
}

// Attributes exposes the substitutable fields for {{placeholder}}
// personalization.
func (u *User) Attributes() map[string]string {
	return map[string]string{
		"id":       strconv.FormatInt(u.ID, 10),
		"username": u.Username,
		"email":    u.Email,
		"role":     u.Role,
	}
}

// Template is a reusable message skeleton. The body may reference user
// attributes with {{name}} tokens.
type Template struct {
	ID             int64     `json:"template_id"`
	Name           string    `json:"template_name"`
	MessageTitle   string    `json:"message_title"`
	MessageContent string    `json:"message_content"`
	UseCount       int       `json:"template_use_count"`
	CreatedAt      time.Time `json:"created_at"`
	ModifiedAt     time.Time `json:"modified_at"`
}

// Reference is the metadata row shared by every message of one broadcast.
// TargetNode is stored under a dynamically named column (<bottom>_name).
type Reference struct {
	ID             int64  `json:"id"`
	TemplateName   string `json:"template_name"`
	MessageTitle   string `json:"message_title"`
	MessageContent string `json:"message_content"`
	TargetNode     string `json:"btm_lvl"`
	UserCount      int    `json:"user_count"`
}

// ExpMessage is one personalized message for one recipient.
type ExpMessage struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	Channel     string     `json:"channel"`
	MsgTitle    string     `json:"msg_title"`
	MsgContent  string     `json:"msg_content"`
	ReferenceID int64      `json:"reference_id"`
	SentTime    time.Time  `json:"sent_time"`
	MsgReadTime *time.Time `json:"msg_read_time,omitempty"`
	ReadStatus  string     `json:"read_status"`
}

// BroadcastSummary is one sent broadcast in the operator's list view,
// de-duplicated by reference.
type BroadcastSummary struct {
	ReferenceID  int64     `json:"reference_id"`
	TemplateName string    `json:"template_name"`
	SentTime     time.Time `json:"sent_time"`
}

// BroadcastDetail is one broadcast with its delivery progress.
type BroadcastDetail struct {
	Reference
	ReadPercent float64 `json:"read_percent"`
	UserIDs     []int64 `json:"users"`
}

// InboxItem is one entry of a recipient's message list.
type InboxItem struct {
	ExpMessageID int64     `json:"exp_message_id"`
	MessageTitle string    `json:"message_title"`
	SentTime     time.Time `json:"sent_time"`
}

// UserSearchResult joins a recipient with their message row for one
// broadcast.
type UserSearchResult struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	ReadStatus   string `json:"read_status"`
	MsgTitle     string `json:"msg_title"`
	MsgContent   string `json:"msg_content"`
	ExpMessageID int64  `json:"exp_message_id"`
}

// Stats is the operator dashboard counters.
type Stats struct {
	TotalUsers         int64 `json:"total_users"`
	TotalMessagesToday int64 `json:"total_messages_today"`
}
