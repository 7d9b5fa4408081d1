// Package hierarchy infers the organizational level chain from the live
// database schema. Level tables carry the "lvl_" naming convention and are
// linked parent→child through foreign keys; nothing about their number or
// names is known ahead of time.
package hierarchy

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// LevelPrefix marks a table as one tier of the hierarchy.
const LevelPrefix = "lvl_"

var (
	// ErrNoLevelTables means the schema holds no hierarchy yet. Callers on
	// read paths translate this to "nothing uploaded", not a server fault.
	ErrNoLevelTables = errors.New("no level tables found")

	// ErrAmbiguousHierarchy means the level tables do not form a single
	// chain: zero or multiple top-most (or bottom-most) candidates. We fail
	// closed rather than picking one arbitrarily.
	ErrAmbiguousHierarchy = errors.New("ambiguous hierarchy")

	// ErrUnknownFilterLevel means a filter named a level that does not
	// exist in the schema.
	ErrUnknownFilterLevel = errors.New("unknown filter level")
)

// ParentRef is one foreign key from a level table to its parent level.
type ParentRef struct {
	Table  string // parent table name, including the lvl_ prefix
	Column string // referenced column on the parent, normally "id"
}

// Relationships maps every level table to the level tables it references.
// The top-most level maps to an empty slice.
type Relationships map[string][]ParentRef

// identPattern is the closed set of identifiers we are willing to splice
// into SQL text. Everything else is rejected before query generation, so
// externally influenced strings never reach the wire as identifiers.
var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidIdent reports whether a name is safe to use as a SQL identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// LevelTableName maps a user-facing level name ("Region") to its table.
func LevelTableName(level string) string {
	return LevelPrefix + strings.ToLower(level)
}

// StripPrefix returns the bare tier name for a level table ("lvl_branch"
// → "branch").
func StripPrefix(table string) string {
	return strings.TrimPrefix(table, LevelPrefix)
}

// ParentFKColumn names the column a child level uses to reference its
// parent, e.g. parent "lvl_region" → "lvl_region_id".
func ParentFKColumn(parentTable string) string {
	return parentTable + "_id"
}

// UserFKColumn names the users-table column binding a user to the current
// bottom-most level, e.g. bottom "lvl_branch" → "branch_id".
func UserFKColumn(bottomTable string) string {
	return StripPrefix(bottomTable) + "_id"
}

// RefNameColumn names the reference-table column holding the broadcast
// target's display name, e.g. bottom "lvl_branch" → "branch_name".
func RefNameColumn(bottomTable string) string {
	return StripPrefix(bottomTable) + "_name"
}

// TopMost returns the unique level with no parent.
func TopMost(rels Relationships) (string, error) {
	if len(rels) == 0 {
		return "", ErrNoLevelTables
	}
	var candidates []string
	for table, parents := range rels {
		if len(parents) == 0 {
			candidates = append(candidates, table)
		}
	}
	if len(candidates) != 1 {
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %d top-most candidates %v", ErrAmbiguousHierarchy, len(candidates), candidates)
	}
	return candidates[0], nil
}

// BottomMost returns the unique level that is never referenced as a parent.
func BottomMost(rels Relationships) (string, error) {
	if len(rels) == 0 {
		return "", ErrNoLevelTables
	}
	parents := make(map[string]bool)
	for _, refs := range rels {
		for _, ref := range refs {
			parents[ref.Table] = true
		}
	}
	var candidates []string
	for table := range rels {
		if !parents[table] {
			candidates = append(candidates, table)
		}
	}
	if len(candidates) != 1 {
		sort.Strings(candidates)
		return "", fmt.Errorf("%w: %d bottom-most candidates %v", ErrAmbiguousHierarchy, len(candidates), candidates)
	}
	return candidates[0], nil
}

// OrderedChain walks from the top-most level downward, following child
// links until a level has no children. A level with several children is a
// branching hierarchy the rest of the system does not support; the walk
// takes the lexically first child so the result is at least deterministic.
// Callers that want to surface the anomaly check Branches first.
func OrderedChain(rels Relationships, topMost string) []string {
	chain := []string{topMost}
	current := topMost

	for {
		children := childrenOf(rels, current)
		if len(children) == 0 {
			break
		}
		chain = append(chain, children[0])
		current = children[0]
	}
	return chain
}

// Branches reports levels with more than one child, in sorted child order.
// A non-empty result means the schema is not the single chain the fan-out
// and join logic assume.
func Branches(rels Relationships) map[string][]string {
	branches := make(map[string][]string)
	for table := range rels {
		if children := childrenOf(rels, table); len(children) > 1 {
			branches[table] = children
		}
	}
	return branches
}

func childrenOf(rels Relationships, parent string) []string {
	var children []string
	for table, refs := range rels {
		for _, ref := range refs {
			if ref.Table == parent {
				children = append(children, table)
				break
			}
		}
	}
	sort.Strings(children)
	return children
}
