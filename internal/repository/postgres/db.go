package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/notifyhub/internal/hierarchy"
)

// DB is the slice of pgxpool the stores use. *pgxpool.Pool satisfies it,
// and so does a pgxmock pool, which is what keeps the dynamic-SQL paths
// testable without a live database.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// bottomLevel introspects the catalog and returns the current bottom-most
// level table. Shared by every store that derives a dynamic column name.
func bottomLevel(ctx context.Context, db hierarchy.Querier) (string, error) {
	rels, err := hierarchy.Extract(ctx, db)
	if err != nil {
		return "", err
	}
	bottom, err := hierarchy.BottomMost(rels)
	if err != nil {
		return "", err
	}
	if !hierarchy.ValidIdent(bottom) {
		return "", fmt.Errorf("unsafe level table name %q", bottom)
	}
	return bottom, nil
}
