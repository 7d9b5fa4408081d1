package hierarchy

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"table_name", "parent_table", "parent_column"}).
		AddRow("lvl_branch", ptr("lvl_region"), ptr("id")).
		AddRow("lvl_region", nil, nil)
	mock.ExpectQuery("information_schema\\.tables").WillReturnRows(rows)

	rels, err := Extract(context.Background(), mock)
	require.NoError(t, err)

	assert.Equal(t, Relationships{
		"lvl_region": {},
		"lvl_branch": {{Table: "lvl_region", Column: "id"}},
	}, rels)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExtractIgnoresNonLevelParents(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// A level table referencing a non-level table keeps its entry but the
	// foreign key is dropped from the graph.
	rows := pgxmock.NewRows([]string{"table_name", "parent_table", "parent_column"}).
		AddRow("lvl_branch", ptr("audit_log"), ptr("id"))
	mock.ExpectQuery("information_schema\\.tables").WillReturnRows(rows)

	rels, err := Extract(context.Background(), mock)
	require.NoError(t, err)
	assert.Equal(t, Relationships{"lvl_branch": {}}, rels)
}

func TestExtractEmptySchema(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("information_schema\\.tables").
		WillReturnRows(pgxmock.NewRows([]string{"table_name", "parent_table", "parent_column"}))

	rels, err := Extract(context.Background(), mock)
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func ptr(s string) *string { return &s }
