package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lalith-99/notifyhub/internal/hierarchy"
	"github.com/lalith-99/notifyhub/internal/repository"
	"go.uber.org/zap"
)

// HierarchyStore materializes level tables and answers hierarchy reads.
type HierarchyStore struct {
	db     DB
	logger *zap.Logger
}

var _ repository.HierarchyRepository = (*HierarchyStore)(nil)

func NewHierarchyStore(db DB, logger *zap.Logger) *HierarchyStore {
	return &HierarchyStore{db: db, logger: logger}
}

// UploadHierarchy ensures the level tables for the ordered name list and
// upserts the data rows. Table creation is idempotent; data rows are
// insert-or-get scoped to each row's parent, so re-uploading identical
// data changes nothing.
func (s *HierarchyStore) UploadHierarchy(ctx context.Context, levels []string, data []map[string]string) ([]string, error) {
	tables := make([]string, 0, len(levels))
	for _, level := range levels {
		table := hierarchy.LevelTableName(level)
		if !hierarchy.ValidIdent(table) {
			return nil, fmt.Errorf("invalid level name %q", level)
		}
		tables = append(tables, table)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin hierarchy upload: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.ensureLevelTables(ctx, tx, tables); err != nil {
		return nil, err
	}

	for _, row := range data {
		if err := s.insertRow(ctx, tx, levels, tables, row); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit hierarchy upload: %w", err)
	}
	return tables, nil
}

// ensureLevelTables creates each level table in chain order. Every table
// after the first carries a foreign key to its predecessor plus a
// uniqueness constraint scoping names to their parent.
func (s *HierarchyStore) ensureLevelTables(ctx context.Context, tx pgx.Tx, tables []string) error {
	parent := ""
	for _, table := range tables {
		var ddl string
		if parent == "" {
			ddl = fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS %s (
					id serial PRIMARY KEY,
					name varchar(50) NOT NULL,
					UNIQUE (name)
				)`, table)
		} else {
			fk := hierarchy.ParentFKColumn(parent)
			ddl = fmt.Sprintf(
				`CREATE TABLE IF NOT EXISTS %s (
					id serial PRIMARY KEY,
					name varchar(50) NOT NULL,
					%s integer REFERENCES %s (id),
					UNIQUE (name, %s)
				)`, table, fk, parent, fk)
		}
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create level table %s: %w", table, err)
		}
		parent = table
	}
	return nil
}

// insertRow walks one data row top→bottom, inserting (or finding) the node
// at each level and threading the resulting id into the child's parent
// column.
func (s *HierarchyStore) insertRow(ctx context.Context, tx pgx.Tx, levels, tables []string, row map[string]string) error {
	parentTable := ""
	var parentID *int64

	for i, level := range levels {
		value, ok := row[level]
		if !ok {
			continue
		}
		table := tables[i]

		var id int64
		var err error
		if parentTable == "" || parentID == nil {
			err = tx.QueryRow(ctx,
				fmt.Sprintf("SELECT id FROM %s WHERE name = $1", table), value).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				err = tx.QueryRow(ctx,
					fmt.Sprintf("INSERT INTO %s (name) VALUES ($1) RETURNING id", table), value).Scan(&id)
			}
		} else {
			fk := hierarchy.ParentFKColumn(parentTable)
			err = tx.QueryRow(ctx,
				fmt.Sprintf("SELECT id FROM %s WHERE name = $1 AND %s = $2", table, fk),
				value, *parentID).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				err = tx.QueryRow(ctx,
					fmt.Sprintf("INSERT INTO %s (name, %s) VALUES ($1, $2) RETURNING id", table, fk),
					value, *parentID).Scan(&id)
			}
		}
		if err != nil {
			return fmt.Errorf("insert %s row %q: %w", table, value, err)
		}

		parentTable = table
		parentID = &id
	}
	return nil
}

// LevelValues returns every row of every level table, keyed by table name,
// discovered in chain order. An empty map when no hierarchy exists.
func (s *HierarchyStore) LevelValues(ctx context.Context) (map[string][]map[string]any, error) {
	rels, err := hierarchy.Extract(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return map[string][]map[string]any{}, nil
	}

	top, err := hierarchy.TopMost(rels)
	if err != nil {
		return nil, err
	}
	if branches := hierarchy.Branches(rels); len(branches) > 0 {
		s.logger.Warn("hierarchy is not a single chain, walking first child per level",
			zap.Any("branches", branches))
	}

	values := make(map[string][]map[string]any)
	for _, table := range hierarchy.OrderedChain(rels, top) {
		if !hierarchy.ValidIdent(table) {
			return nil, fmt.Errorf("unsafe level table name %q", table)
		}
		rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT * FROM %s ORDER BY id", table))
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", table, err)
		}
		tableRows, err := rowsToMaps(rows)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", table, err)
		}
		values[table] = tableRows
	}
	return values, nil
}

// Filter generates and runs the join query for one level name/value pair.
func (s *HierarchyStore) Filter(ctx context.Context, filterType, filterValue string) ([]map[string]string, error) {
	rels, err := hierarchy.Extract(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, hierarchy.ErrNoLevelTables
	}

	q, err := hierarchy.BuildJoinQuery(rels, filterType)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx, q.SQL, filterValue)
	if err != nil {
		return nil, fmt.Errorf("run hierarchy filter: %w", err)
	}
	defer rows.Close()

	results := make([]map[string]string, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read hierarchy filter row: %w", err)
		}
		entry := make(map[string]string, len(q.Columns))
		for i, col := range q.Columns {
			entry[col] = fmt.Sprint(values[i])
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hierarchy filter: %w", err)
	}
	return results, nil
}

// Validate reports whether the users table and any level tables exist.
func (s *HierarchyStore) Validate(ctx context.Context) (bool, bool, error) {
	const query = `
		SELECT
			EXISTS (SELECT 1 FROM information_schema.tables
			        WHERE table_schema = 'public' AND table_name = 'users'),
			EXISTS (SELECT 1 FROM information_schema.tables
			        WHERE table_schema = 'public' AND table_name LIKE 'lvl\_%')`

	var usersTable, levelTables bool
	if err := s.db.QueryRow(ctx, query).Scan(&usersTable, &levelTables); err != nil {
		return false, false, fmt.Errorf("validate schema: %w", err)
	}
	return usersTable, levelTables, nil
}

// rowsToMaps drains a result set into ordered column→value maps.
func rowsToMaps(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		entry := make(map[string]any, len(fields))
		for i, fd := range fields {
			entry[fd.Name] = values[i]
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
