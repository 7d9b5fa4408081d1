package hierarchy

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// Querier is the one slice of pgx this package needs. *pgxpool.Pool and
// pgx.Tx both satisfy it, as does a pgxmock pool in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// relationshipsQuery enumerates every level table in the public schema
// together with the level tables it references. The LEFT JOINs keep tables
// without foreign keys (the top-most level) in the result with NULL parent
// columns. For a FOREIGN KEY constraint, constraint_column_usage holds the
// referenced table and column.
const relationshipsQuery = `
	SELECT t.table_name,
	       ccu.table_name  AS parent_table,
	       ccu.column_name AS parent_column
	FROM information_schema.tables t
	LEFT JOIN information_schema.table_constraints tc
	       ON tc.table_schema = t.table_schema
	      AND tc.table_name = t.table_name
	      AND tc.constraint_type = 'FOREIGN KEY'
	LEFT JOIN information_schema.constraint_column_usage ccu
	       ON ccu.constraint_name = tc.constraint_name
	      AND ccu.table_schema = tc.table_schema
	WHERE t.table_schema = 'public'
	  AND t.table_name LIKE 'lvl\_%'
	ORDER BY t.table_name`

// Extract introspects the catalog and builds the parent graph restricted
// to level tables. Read-only; an empty result is not an error here.
func Extract(ctx context.Context, db Querier) (Relationships, error) {
	rows, err := db.Query(ctx, relationshipsQuery)
	if err != nil {
		return nil, fmt.Errorf("query level relationships: %w", err)
	}
	defer rows.Close()

	rels := make(Relationships)
	for rows.Next() {
		var table string
		var parentTable, parentColumn *string
		if err := rows.Scan(&table, &parentTable, &parentColumn); err != nil {
			return nil, fmt.Errorf("scan level relationship: %w", err)
		}

		table = strings.ToLower(table)
		if _, ok := rels[table]; !ok {
			rels[table] = []ParentRef{}
		}

		// Foreign keys out to non-level tables are none of our business.
		if parentTable == nil || parentColumn == nil {
			continue
		}
		parent := strings.ToLower(*parentTable)
		if !strings.HasPrefix(parent, LevelPrefix) {
			continue
		}
		rels[table] = append(rels[table], ParentRef{Table: parent, Column: *parentColumn})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate level relationships: %w", err)
	}

	return rels, nil
}
