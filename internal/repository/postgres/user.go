package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/notifyhub/internal/hierarchy"
	"github.com/lalith-99/notifyhub/internal/models"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// UserStore handles user sync, the login lookup, and resolving the users
// under a bottom-level node.
type UserStore struct {
	db     DB
	logger *zap.Logger
}

func NewUserStore(db DB, logger *zap.Logger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

var _ repository.UserRepository = (*UserStore)(nil)

// ensureUserTable creates the users table bound to the current bottom-most
// level. When the hierarchy has deepened since the table was created, the
// new bottom-level column is added additively; the previous one stays
// behind, orphaned, and we log it.
func (s *UserStore) ensureUserTable(ctx context.Context, bottom string) (string, error) {
	fk := hierarchy.UserFKColumn(bottom)
	if !hierarchy.ValidIdent(fk) {
		return "", fmt.Errorf("unsafe user column name %q", fk)
	}

	ddl := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS users (
			id serial PRIMARY KEY,
			username varchar(50) UNIQUE NOT NULL,
			email varchar(100) UNIQUE NOT NULL,
			role varchar(50) NOT NULL,
			%s integer REFERENCES %s (id)
		)`, fk, bottom)
	if _, err := s.db.Exec(ctx, ddl); err != nil {
		return "", fmt.Errorf("create users table: %w", err)
	}

	// Pre-existing table from a shallower hierarchy: add the new column.
	alter := fmt.Sprintf("ALTER TABLE users ADD COLUMN IF NOT EXISTS %s integer REFERENCES %s (id)", fk, bottom)
	if _, err := s.db.Exec(ctx, alter); err != nil {
		return "", fmt.Errorf("add user level column %s: %w", fk, err)
	}

	if orphans, err := s.orphanedLevelColumns(ctx, fk); err == nil && len(orphans) > 0 {
		s.logger.Warn("users table carries level columns from a previous hierarchy depth",
			zap.Strings("orphaned_columns", orphans),
			zap.String("active_column", fk))
	}
	return fk, nil
}

// orphanedLevelColumns lists *_id columns on users other than the active
// bottom-level column and the primary key.
func (s *UserStore) orphanedLevelColumns(ctx context.Context, active string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = 'users'
		  AND column_name LIKE '%\_id' AND column_name <> $1`, active)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orphans []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		orphans = append(orphans, col)
	}
	return orphans, rows.Err()
}

// BatchUpsert merges users keyed on username. One bad row is reported and
// skipped, not fatal — the batch is deliberately not atomic.
func (s *UserStore) BatchUpsert(ctx context.Context, users []repository.UserInput) (*repository.BatchResult, error) {
	bottom, err := bottomLevel(ctx, s.db)
	if err != nil {
		return nil, err
	}
	fk, err := s.ensureUserTable(ctx, bottom)
	if err != nil {
		return nil, err
	}

	// xmax = 0 distinguishes a fresh insert from a conflict-update.
	upsert := fmt.Sprintf(`
		INSERT INTO users (username, email, role, %s)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET email = EXCLUDED.email, role = EXCLUDED.role, %s = EXCLUDED.%s
		RETURNING (xmax = 0)`, fk, fk, fk)

	result := &repository.BatchResult{Errors: []repository.RowError{}}
	for i, u := range users {
		var inserted bool
		if err := s.db.QueryRow(ctx, upsert, u.Username, u.Email, u.Role, u.NodeID).Scan(&inserted); err != nil {
			result.Errors = append(result.Errors, repository.RowError{Index: i, Error: err.Error()})
			continue
		}
		if inserted {
			result.Created++
		} else {
			result.Updated++
		}
	}
	return result, nil
}

// GetByUsername is the login lookup. No credentials are involved.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx,
		"SELECT id, username, email, role FROM users WHERE username = $1", username).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", repository.ErrUserNotFound, username)
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return &u, nil
}

// UsersUnderNode resolves a bottom-level display name to its attached user
// ids. An existing node with no users is an empty slice, not an error.
func (s *UserStore) UsersUnderNode(ctx context.Context, nodeName string) ([]int64, error) {
	bottom, err := bottomLevel(ctx, s.db)
	if err != nil {
		return nil, err
	}
	fk := hierarchy.UserFKColumn(bottom)

	var nodeID int64
	err = s.db.QueryRow(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE name = $1", bottom), nodeName).Scan(&nodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q at level %s", repository.ErrNodeNotFound, nodeName, bottom)
		}
		return nil, fmt.Errorf("resolve node %q: %w", nodeName, err)
	}

	rows, err := s.db.Query(ctx,
		fmt.Sprintf("SELECT id FROM users WHERE %s = $1 ORDER BY id", fk), nodeID)
	if err != nil {
		return nil, fmt.Errorf("select users under node: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users under node: %w", err)
	}
	return ids, nil
}

// Inbox lists one user's messages with their broadcast titles, newest
// first.
func (s *UserStore) Inbox(ctx context.Context, userID int64) ([]models.InboxItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, r.message_title, m.sent_time
		FROM exp_message m
		JOIN reference_table r ON m.reference_id = r.id
		WHERE m.user_id = $1
		ORDER BY m.sent_time DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list inbox: %w", err)
	}
	defer rows.Close()

	items := make([]models.InboxItem, 0)
	for rows.Next() {
		var item models.InboxItem
		if err := rows.Scan(&item.ExpMessageID, &item.MessageTitle, &item.SentTime); err != nil {
			return nil, fmt.Errorf("scan inbox item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate inbox: %w", err)
	}
	return items, nil
}

// Search joins the given users with their message rows for one broadcast.
func (s *UserStore) Search(ctx context.Context, userIDs []int64, referenceID int64) ([]models.UserSearchResult, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, u.email, m.read_status, m.msg_title, m.msg_content, m.id
		FROM users u
		JOIN exp_message m ON u.id = m.user_id AND m.reference_id = $1
		WHERE u.id = ANY ($2)
		ORDER BY u.id`, referenceID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	results := make([]models.UserSearchResult, 0)
	for rows.Next() {
		var r models.UserSearchResult
		if err := rows.Scan(&r.ID, &r.Username, &r.Email, &r.ReadStatus, &r.MsgTitle, &r.MsgContent, &r.ExpMessageID); err != nil {
			return nil, fmt.Errorf("scan user search row: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user search: %w", err)
	}
	return results, nil
}
