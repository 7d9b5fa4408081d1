package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/notifyhub/internal/hierarchy"
	"github.com/lalith-99/notifyhub/internal/models"
	"github.com/lalith-99/notifyhub/internal/personalize"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// BroadcastStore is the message fan-out engine plus its read side.
type BroadcastStore struct {
	db     DB
	logger *zap.Logger
}

func NewBroadcastStore(db DB, logger *zap.Logger) *BroadcastStore {
	return &BroadcastStore{db: db, logger: logger}
}

var _ repository.BroadcastRepository = (*BroadcastStore)(nil)

// ensureTables creates the reference and message tables. The reference
// table's target-node column is named after the current bottom level; if
// the table predates a hierarchy change, the new column is added
// additively.
func (s *BroadcastStore) ensureTables(ctx context.Context, tx pgx.Tx, refCol string) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS reference_table (
			id serial PRIMARY KEY,
			template_name text NOT NULL,
			message_title text NOT NULL,
			message_content text NOT NULL,
			%s text,
			user_count integer NOT NULL
		)`, refCol)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create reference table: %w", err)
	}
	alter := fmt.Sprintf("ALTER TABLE reference_table ADD COLUMN IF NOT EXISTS %s text", refCol)
	if _, err := tx.Exec(ctx, alter); err != nil {
		return fmt.Errorf("add reference column %s: %w", refCol, err)
	}

	if _, err := tx.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS exp_message (
			id serial PRIMARY KEY,
			user_id integer NOT NULL,
			channel text NOT NULL,
			msg_title text NOT NULL,
			msg_content text NOT NULL,
			reference_id integer NOT NULL REFERENCES reference_table (id),
			sent_time timestamptz NOT NULL DEFAULT now(),
			msg_read_time timestamptz,
			read_status text NOT NULL DEFAULT 'unread'
		)`); err != nil {
		return fmt.Errorf("create exp_message table: %w", err)
	}
	return nil
}

// Broadcast performs one send: reference row, recipient resolution,
// per-recipient personalization, batch message insert. Everything runs in
// one transaction — an unknown node or an empty audience rolls the
// reference row back too, so a failed broadcast leaves no trace.
func (s *BroadcastStore) Broadcast(ctx context.Context, in repository.BroadcastInput) (*repository.BroadcastResult, error) {
	bottom, err := bottomLevel(ctx, s.db)
	if err != nil {
		return nil, err
	}
	refCol := hierarchy.RefNameColumn(bottom)
	fkCol := hierarchy.UserFKColumn(bottom)
	if !hierarchy.ValidIdent(refCol) || !hierarchy.ValidIdent(fkCol) {
		return nil, fmt.Errorf("unsafe column name for level %q", bottom)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin broadcast: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ensureTables(ctx, tx, refCol); err != nil {
		return nil, err
	}

	var referenceID int64
	err = tx.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO reference_table (template_name, message_title, message_content, %s, user_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`, refCol),
		in.TemplateName, in.MessageTitle, in.MessageContent, in.TargetNode, in.PlannedCount).Scan(&referenceID)
	if err != nil {
		return nil, fmt.Errorf("insert reference row: %w", err)
	}

	var nodeID int64
	err = tx.QueryRow(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE name = $1", bottom), in.TargetNode).Scan(&nodeID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q at level %s", repository.ErrNodeNotFound, in.TargetNode, bottom)
		}
		return nil, fmt.Errorf("resolve target node: %w", err)
	}

	recipients, err := s.recipientsUnder(ctx, tx, fkCol, nodeID)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: %q", repository.ErrNoRecipients, in.TargetNode)
	}

	// Track template usage; a broadcast of an ad-hoc (unsaved) template is
	// fine, the update just matches nothing.
	if _, err := tx.Exec(ctx, `
		UPDATE templates
		SET template_use_count = template_use_count + 1, modified_at = now()
		WHERE template_name = $1`, in.TemplateName); err != nil {
		return nil, fmt.Errorf("bump template use count: %w", err)
	}

	for _, user := range recipients {
		body := personalize.Render(in.MessageContent, user.Attributes())
		if _, err := tx.Exec(ctx, `
			INSERT INTO exp_message (user_id, channel, msg_title, msg_content, reference_id, sent_time, read_status)
			VALUES ($1, $2, $3, $4, $5, now(), $6)`,
			user.ID, models.ChannelWebhooks, in.MessageTitle, body, referenceID, models.ReadStatusUnread); err != nil {
			return nil, fmt.Errorf("insert message for user %d: %w", user.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit broadcast: %w", err)
	}

	s.logger.Info("broadcast sent",
		zap.Int64("reference_id", referenceID),
		zap.String("target_node", in.TargetNode),
		zap.Int("recipients", len(recipients)))

	return &repository.BroadcastResult{
		ReferenceID:  referenceID,
		MessageCount: len(recipients),
	}, nil
}

func (s *BroadcastStore) recipientsUnder(ctx context.Context, tx pgx.Tx, fkCol string, nodeID int64) ([]models.User, error) {
	rows, err := tx.Query(ctx,
		fmt.Sprintf("SELECT id, username, email, role FROM users WHERE %s = $1 ORDER BY id", fkCol), nodeID)
	if err != nil {
		return nil, fmt.Errorf("select recipients: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.Role); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipients: %w", err)
	}
	return users, nil
}

// ListBroadcasts returns sent broadcasts de-duplicated by reference,
// newest first.
func (s *BroadcastStore) ListBroadcasts(ctx context.Context, limit int) ([]models.BroadcastSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT reference_id, template_name, sent_time FROM (
			SELECT DISTINCT ON (r.id) r.id AS reference_id, r.template_name, m.sent_time
			FROM reference_table r
			JOIN exp_message m ON m.reference_id = r.id
			ORDER BY r.id, m.sent_time DESC
		) b
		ORDER BY sent_time DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	defer rows.Close()

	summaries := make([]models.BroadcastSummary, 0)
	for rows.Next() {
		var b models.BroadcastSummary
		if err := rows.Scan(&b.ReferenceID, &b.TemplateName, &b.SentTime); err != nil {
			return nil, fmt.Errorf("scan broadcast summary: %w", err)
		}
		summaries = append(summaries, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate broadcasts: %w", err)
	}
	return summaries, nil
}

// Detail returns one broadcast's reference fields plus its read progress
// and recipient ids.
func (s *BroadcastStore) Detail(ctx context.Context, referenceID int64) (*models.BroadcastDetail, error) {
	bottom, err := bottomLevel(ctx, s.db)
	if err != nil {
		return nil, err
	}
	refCol := hierarchy.RefNameColumn(bottom)
	if !hierarchy.ValidIdent(refCol) {
		return nil, fmt.Errorf("unsafe column name for level %q", bottom)
	}

	var detail models.BroadcastDetail
	err = s.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, template_name, message_title, message_content, COALESCE(%s, ''), user_count
		FROM reference_table
		WHERE id = $1`, refCol), referenceID).Scan(
		&detail.ID,
		&detail.TemplateName,
		&detail.MessageTitle,
		&detail.MessageContent,
		&detail.TargetNode,
		&detail.UserCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", repository.ErrReferenceNotFound, referenceID)
		}
		return nil, fmt.Errorf("get reference row: %w", err)
	}

	rows, err := s.db.Query(ctx,
		"SELECT user_id, read_status FROM exp_message WHERE reference_id = $1 ORDER BY user_id", referenceID)
	if err != nil {
		return nil, fmt.Errorf("select broadcast recipients: %w", err)
	}
	defer rows.Close()

	detail.UserIDs = make([]int64, 0)
	read := 0
	for rows.Next() {
		var userID int64
		var status string
		if err := rows.Scan(&userID, &status); err != nil {
			return nil, fmt.Errorf("scan recipient status: %w", err)
		}
		detail.UserIDs = append(detail.UserIDs, userID)
		if status == models.ReadStatusRead {
			read++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipient statuses: %w", err)
	}

	if total := len(detail.UserIDs); total > 0 {
		detail.ReadPercent = float64(read) / float64(total) * 100
	}
	return &detail, nil
}

// OpenMessage fetches one message for its recipient, flipping it to read
// on first open. The guarded UPDATE makes the transition one-way: a
// re-open matches nothing and the original read time stands.
func (s *BroadcastStore) OpenMessage(ctx context.Context, messageID int64) (*models.ExpMessage, error) {
	if _, err := s.db.Exec(ctx, `
		UPDATE exp_message
		SET msg_read_time = now(), read_status = $1
		WHERE id = $2 AND read_status = $3`,
		models.ReadStatusRead, messageID, models.ReadStatusUnread); err != nil {
		return nil, fmt.Errorf("mark message read: %w", err)
	}

	var m models.ExpMessage
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, channel, msg_title, msg_content, reference_id, sent_time, msg_read_time, read_status
		FROM exp_message
		WHERE id = $1`, messageID).Scan(
		&m.ID,
		&m.UserID,
		&m.Channel,
		&m.MsgTitle,
		&m.MsgContent,
		&m.ReferenceID,
		&m.SentTime,
		&m.MsgReadTime,
		&m.ReadStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", repository.ErrMessageNotFound, messageID)
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return &m, nil
}

// Stats returns the dashboard counters: all users, messages sent in the
// last 24 hours.
func (s *BroadcastStore) Stats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM exp_message WHERE sent_time >= now() - interval '1 day')`).Scan(
		&stats.TotalUsers,
		&stats.TotalMessagesToday,
	)
	if err != nil {
		return nil, fmt.Errorf("collect stats: %w", err)
	}
	return &stats, nil
}
