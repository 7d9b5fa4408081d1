package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/notifyhub/internal/models"
	"github.com/lalith-99/notifyhub/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// twoLevelCatalog primes the extractor query with a region→branch chain.
func twoLevelCatalog(mock pgxmock.PgxPoolIface) {
	rows := pgxmock.NewRows([]string{"table_name", "parent_table", "parent_column"}).
		AddRow("lvl_branch", strPtr("lvl_region"), strPtr("id")).
		AddRow("lvl_region", nil, nil)
	mock.ExpectQuery("information_schema\\.tables").WillReturnRows(rows)
}

func strPtr(s string) *string { return &s }

func newBroadcastStore(t *testing.T) (*BroadcastStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewBroadcastStore(mock, zap.NewNop()), mock
}

func expectBroadcastTables(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS reference_table").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("ALTER TABLE reference_table ADD COLUMN IF NOT EXISTS branch_name").
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS exp_message").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
}

func TestBroadcastFanOut(t *testing.T) {
	store, mock := newBroadcastStore(t)

	twoLevelCatalog(mock)
	mock.ExpectBegin()
	expectBroadcastTables(mock)

	mock.ExpectQuery("INSERT INTO reference_table").
		WithArgs("welcome", "Hello", "Hi {{username}}", "B1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("B1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))

	mock.ExpectQuery("SELECT id, username, email, role FROM users WHERE branch_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role"}).
			AddRow(int64(10), "alice", "alice@corp.example", "manager").
			AddRow(int64(11), "bob", "bob@corp.example", "agent"))

	mock.ExpectExec("UPDATE templates").
		WithArgs("welcome").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	// One personalized row per recipient, same reference, all unread.
	mock.ExpectExec("INSERT INTO exp_message").
		WithArgs(int64(10), models.ChannelWebhooks, "Hello", "Hi alice", int64(7), models.ReadStatusUnread).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO exp_message").
		WithArgs(int64(11), models.ChannelWebhooks, "Hello", "Hi bob", int64(7), models.ReadStatusUnread).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectCommit()

	result, err := store.Broadcast(context.Background(), repository.BroadcastInput{
		TemplateName:   "welcome",
		MessageTitle:   "Hello",
		MessageContent: "Hi {{username}}",
		TargetNode:     "B1",
		PlannedCount:   2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.ReferenceID)
	assert.Equal(t, 2, result.MessageCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastNoRecipientsRollsBack(t *testing.T) {
	store, mock := newBroadcastStore(t)

	twoLevelCatalog(mock)
	mock.ExpectBegin()
	expectBroadcastTables(mock)

	mock.ExpectQuery("INSERT INTO reference_table").
		WithArgs("welcome", "Hello", "body", "B9", 0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("B9").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))
	mock.ExpectQuery("SELECT id, username, email, role FROM users WHERE branch_id").
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role"}))
	mock.ExpectRollback()

	_, err := store.Broadcast(context.Background(), repository.BroadcastInput{
		TemplateName:   "welcome",
		MessageTitle:   "Hello",
		MessageContent: "body",
		TargetNode:     "B9",
	})
	require.ErrorIs(t, err, repository.ErrNoRecipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBroadcastUnknownNode(t *testing.T) {
	store, mock := newBroadcastStore(t)

	twoLevelCatalog(mock)
	mock.ExpectBegin()
	expectBroadcastTables(mock)

	mock.ExpectQuery("INSERT INTO reference_table").
		WithArgs("welcome", "Hello", "body", "nowhere", 0).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("nowhere").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Broadcast(context.Background(), repository.BroadcastInput{
		TemplateName:   "welcome",
		MessageTitle:   "Hello",
		MessageContent: "body",
		TargetNode:     "nowhere",
	})
	require.ErrorIs(t, err, repository.ErrNodeNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenMessageMarksReadOnce(t *testing.T) {
	store, mock := newBroadcastStore(t)

	readAt := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)

	// The guarded UPDATE only matches unread rows; on a re-open it
	// matches nothing and the stored read time is returned untouched.
	mock.ExpectExec("UPDATE exp_message").
		WithArgs(models.ReadStatusRead, int64(5), models.ReadStatusUnread).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT id, user_id, channel, msg_title, msg_content, reference_id, sent_time, msg_read_time, read_status").
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "user_id", "channel", "msg_title", "msg_content",
			"reference_id", "sent_time", "msg_read_time", "read_status",
		}).AddRow(int64(5), int64(10), "webhooks", "Hello", "Hi alice",
			int64(7), readAt.Add(-time.Hour), &readAt, models.ReadStatusRead))

	msg, err := store.OpenMessage(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.ReadStatusRead, msg.ReadStatus)
	require.NotNil(t, msg.MsgReadTime)
	assert.Equal(t, readAt, *msg.MsgReadTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenMessageNotFound(t *testing.T) {
	store, mock := newBroadcastStore(t)

	mock.ExpectExec("UPDATE exp_message").
		WithArgs(models.ReadStatusRead, int64(99), models.ReadStatusUnread).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT id, user_id, channel").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.OpenMessage(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrMessageNotFound)
}

func TestDetailReadPercent(t *testing.T) {
	store, mock := newBroadcastStore(t)

	twoLevelCatalog(mock)
	mock.ExpectQuery("FROM reference_table").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "template_name", "message_title", "message_content", "branch_name", "user_count",
		}).AddRow(int64(7), "welcome", "Hello", "Hi {{username}}", "B1", 4))
	mock.ExpectQuery("SELECT user_id, read_status FROM exp_message").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id", "read_status"}).
			AddRow(int64(10), models.ReadStatusRead).
			AddRow(int64(11), models.ReadStatusUnread).
			AddRow(int64(12), models.ReadStatusRead).
			AddRow(int64(13), models.ReadStatusUnread))

	detail, err := store.Detail(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "B1", detail.TargetNode)
	assert.Equal(t, []int64{10, 11, 12, 13}, detail.UserIDs)
	assert.InDelta(t, 50.0, detail.ReadPercent, 0.001)
	assert.NoError(t, mock.ExpectationsWereMet())
}
