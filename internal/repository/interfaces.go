package repository

import (
	"context"
	"errors"

	"github.com/lalith-99/notifyhub/internal/models"
)

// Sentinel errors. Handlers map these onto the HTTP taxonomy: not-found
// conditions become 404s, constraint and configuration problems become
// 400s, everything else a 500. Repositories wrap them with context via
// fmt.Errorf("...: %w", ...), so callers test with errors.Is.
var (
	ErrNodeNotFound      = errors.New("hierarchy node not found")
	ErrNoRecipients      = errors.New("no recipients under node")
	ErrUserNotFound      = errors.New("user not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrReferenceNotFound = errors.New("broadcast reference not found")
	ErrDuplicateTemplate = errors.New("template name already exists")
)

// UserInput is one row of a batch user sync.
type UserInput struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Role     string `json:"role" binding:"required"`
	NodeID   int64  `json:"btm_lvl_id" binding:"required"`
}

// RowError reports one failed row of a batch without failing the batch.
type RowError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult is the partial-success report of a batch user sync.
type BatchResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Errors  []RowError `json:"errors"`
}

// BroadcastInput is one send action: a selected template (already expanded
// into title/content by the operator) aimed at one bottom-level node.
type BroadcastInput struct {
	TemplateName   string
	MessageTitle   string
	MessageContent string
	TargetNode     string
	PlannedCount   int
}

// BroadcastResult reports what one send persisted.
type BroadcastResult struct {
	ReferenceID  int64
	MessageCount int
}

// HierarchyRepository materializes and reads the level-table chain.
type HierarchyRepository interface {
	// UploadHierarchy ensures the level tables exist for the ordered name
	// list, then inserts the data rows (insert-or-get, scoped to each
	// row's parent). Returns the ensured table names in order.
	UploadHierarchy(ctx context.Context, levels []string, data []map[string]string) ([]string, error)

	// LevelValues returns every row of every level table, keyed by table
	// name. Empty map when no hierarchy has been uploaded.
	LevelValues(ctx context.Context) (map[string][]map[string]any, error)

	// Filter runs the generated join query for one level name/value pair.
	// Returns hierarchy.ErrUnknownFilterLevel for a bad filter type; an
	// empty slice when nothing matches.
	Filter(ctx context.Context, filterType, filterValue string) ([]map[string]string, error)

	// Validate reports whether the users table and any level tables exist.
	Validate(ctx context.Context) (usersTable bool, levelTables bool, err error)
}

// UserRepository handles user sync, lookup, and resolution under a node.
type UserRepository interface {
	// BatchUpsert merges the given users into the users table keyed on
	// username, collecting per-row failures instead of aborting.
	BatchUpsert(ctx context.Context, users []UserInput) (*BatchResult, error)

	// GetByUsername is the login lookup. ErrUserNotFound when absent.
	GetByUsername(ctx context.Context, username string) (*models.User, error)

	// UsersUnderNode resolves a bottom-level display name to the ids of
	// the users attached to it. ErrNodeNotFound when the node is unknown;
	// an existing node with no users yields an empty non-nil slice.
	UsersUnderNode(ctx context.Context, nodeName string) ([]int64, error)

	// Inbox lists a user's messages joined with their broadcast metadata,
	// newest first.
	Inbox(ctx context.Context, userID int64) ([]models.InboxItem, error)

	// Search returns the given users joined with their message rows for
	// one broadcast.
	Search(ctx context.Context, userIDs []int64, referenceID int64) ([]models.UserSearchResult, error)
}

// TemplateRepository handles message templates.
type TemplateRepository interface {
	// Create inserts a template. ErrDuplicateTemplate on a name clash.
	Create(ctx context.Context, name, title, content string) (*models.Template, error)

	// List returns templates, newest first.
	List(ctx context.Context, limit int) ([]models.Template, error)
}

// BroadcastRepository is the fan-out engine and its read side.
type BroadcastRepository interface {
	// Broadcast persists one reference row plus one personalized message
	// per recipient, all in a single transaction. ErrNodeNotFound when
	// the target node is unknown; ErrNoRecipients (with full rollback,
	// reference row included) when the node has no users.
	Broadcast(ctx context.Context, in BroadcastInput) (*BroadcastResult, error)

	// ListBroadcasts returns sent broadcasts de-duplicated by reference,
	// newest first.
	ListBroadcasts(ctx context.Context, limit int) ([]models.BroadcastSummary, error)

	// Detail returns one broadcast's reference fields, read percentage,
	// and recipient ids. ErrReferenceNotFound when absent.
	Detail(ctx context.Context, referenceID int64) (*models.BroadcastDetail, error)

	// OpenMessage fetches one message for its recipient and flips it to
	// read. The transition is one-way: re-opening does not touch the read
	// time. ErrMessageNotFound when absent.
	OpenMessage(ctx context.Context, messageID int64) (*models.ExpMessage, error)

	// Stats returns the dashboard counters.
	Stats(ctx context.Context) (*models.Stats, error)
}
