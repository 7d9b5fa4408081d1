package hierarchy

import (
	"fmt"
	"strings"
)

// JoinQuery is a generated hierarchy browse query. SQL selects one aliased
// name column per level in Columns, and binds the filter value as $1.
type JoinQuery struct {
	SQL     string
	Columns []string
}

// BuildJoinQuery generates the inner-join walk for a level filter.
//
// The join spine is always the full chain rooted at the top-most table —
// each child joins its parent via the child's lvl_<parent>_id column. What
// varies with the filter level is the select list:
//
//   - filter == top-most: only the bottom level's name ("what does this
//     top-level name resolve to at the leaf").
//   - filter == bottom-most: every level's name, top to bottom.
//   - otherwise: the filter level and its ancestors, plus the bottom name.
//
// Every identifier spliced into the text comes out of the extracted
// relationship map and is re-checked against the identifier pattern; the
// filter value itself is never interpolated, only bound.
func BuildJoinQuery(rels Relationships, filterType string) (*JoinQuery, error) {
	filterTable := LevelTableName(filterType)
	if _, ok := rels[filterTable]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFilterLevel, filterType)
	}

	top, err := TopMost(rels)
	if err != nil {
		return nil, err
	}
	bottom, err := BottomMost(rels)
	if err != nil {
		return nil, err
	}
	chain := OrderedChain(rels, top)

	for _, table := range chain {
		if !ValidIdent(table) {
			return nil, fmt.Errorf("unsafe level table name %q", table)
		}
	}

	var selected []string
	switch filterTable {
	case top:
		selected = []string{bottom}
	case bottom:
		selected = chain
	default:
		for _, table := range chain {
			selected = append(selected, table)
			if table == filterTable {
				break
			}
		}
		selected = append(selected, bottom)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	columns := make([]string, 0, len(selected))
	for i, table := range selected {
		if i > 0 {
			sb.WriteString(", ")
		}
		alias := table + "_name"
		fmt.Fprintf(&sb, "%s.name AS %s", table, alias)
		columns = append(columns, alias)
	}

	fmt.Fprintf(&sb, " FROM %s", top)
	for i := 1; i < len(chain); i++ {
		child, parent := chain[i], chain[i-1]
		fmt.Fprintf(&sb, " INNER JOIN %s ON %s.%s = %s.id", child, child, ParentFKColumn(parent), parent)
	}
	fmt.Fprintf(&sb, " WHERE %s.name = $1", filterTable)

	return &JoinQuery{SQL: sb.String(), Columns: columns}, nil
}
