package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/notifyhub/internal/repository"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newUserStore(t *testing.T) (*UserStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewUserStore(mock, zap.NewNop()), mock
}

func expectEnsureUserTable(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("ALTER TABLE users ADD COLUMN IF NOT EXISTS branch_id").
		WillReturnResult(pgxmock.NewResult("ALTER", 0))
	mock.ExpectQuery("information_schema\\.columns").
		WithArgs("branch_id").
		WillReturnRows(pgxmock.NewRows([]string{"column_name"}))
}

func TestBatchUpsertPartialSuccess(t *testing.T) {
	store, mock := newUserStore(t)

	twoLevelCatalog(mock)
	expectEnsureUserTable(mock)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("alice", "alice@corp.example", "manager", int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(true))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("bob", "alice@corp.example", "agent", int64(3)).
		WillReturnError(errors.New(`duplicate key value violates unique constraint "users_email_key"`))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("carol", "carol@corp.example", "agent", int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(false))

	result, err := store.BatchUpsert(context.Background(), []repository.UserInput{
		{Username: "alice", Email: "alice@corp.example", Role: "manager", NodeID: 3},
		{Username: "bob", Email: "alice@corp.example", Role: "agent", NodeID: 3},
		{Username: "carol", Email: "carol@corp.example", Role: "agent", NodeID: 3},
	})
	require.NoError(t, err)

	// One bad row is reported, not fatal.
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Updated)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
	assert.Contains(t, result.Errors[0].Error, "users_email_key")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersUnderNodeEmptyIsNotAnError(t *testing.T) {
	store, mock := newUserStore(t)

	twoLevelCatalog(mock)
	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("B1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT id FROM users WHERE branch_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	ids, err := store.UsersUnderNode(context.Background(), "B1")
	require.NoError(t, err)
	assert.NotNil(t, ids)
	assert.Empty(t, ids)
}

func TestUsersUnderNodeUnknownNode(t *testing.T) {
	store, mock := newUserStore(t)

	twoLevelCatalog(mock)
	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("nowhere").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.UsersUnderNode(context.Background(), "nowhere")
	assert.ErrorIs(t, err, repository.ErrNodeNotFound)
}

func TestUsersUnderNode(t *testing.T) {
	store, mock := newUserStore(t)

	twoLevelCatalog(mock)
	mock.ExpectQuery("SELECT id FROM lvl_branch WHERE name").
		WithArgs("B1").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT id FROM users WHERE branch_id").
		WithArgs(int64(3)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(10)).AddRow(int64(11)))

	ids, err := store.UsersUnderNode(context.Background(), "B1")
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 11}, ids)
}

func TestGetByUsernameNotFound(t *testing.T) {
	store, mock := newUserStore(t)

	mock.ExpectQuery("SELECT id, username, email, role FROM users").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrUserNotFound)
}

func TestGetByUsername(t *testing.T) {
	store, mock := newUserStore(t)

	mock.ExpectQuery("SELECT id, username, email, role FROM users").
		WithArgs("alice").
		WillReturnRows(pgxmock.NewRows([]string{"id", "username", "email", "role"}).
			AddRow(int64(10), "alice", "alice@corp.example", "manager"))

	u, err := store.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), u.ID)
	assert.Equal(t, "alice", u.Username)
}
