// Package policy holds the static authorization table consulted before any
// data access. One entry per (resource, action) pair is the single source of
// truth: the minimum role level, whether results are row-scoped, and any
// field set restricted to elevated editors.
package policy

import "fmt"

// Action is one of the five envelope operations.
type Action string

const (
	ActionList   Action = "list"
	ActionGet    Action = "get"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Actions lists every recognized action.
var Actions = []Action{ActionList, ActionGet, ActionCreate, ActionUpdate, ActionDelete}

// KnownAction reports whether the string names a recognized action.
func KnownAction(a string) bool {
	switch Action(a) {
	case ActionList, ActionGet, ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entry is the rule for one (resource, action) pair.
type Entry struct {
	// MinLevel is the lowest role level allowed to attempt the action.
	MinLevel int
	// RowScoped narrows reads to the caller's own rows (below staff).
	RowScoped bool
	// RestrictedFields on update are silently dropped for callers below
	// RestrictUnder (fields outside a tier's reach are no-ops, not errors).
	RestrictedFields []string
	// RestrictUnder is the level at which RestrictedFields stop applying.
	RestrictUnder int
}

// Decision carries the outcome of a permission check together with the
// matched entry, so downstream code never re-derives policy.
type Decision struct {
	Allowed bool
	Entry   Entry
}

// Matrix is the immutable permission table, loaded once at startup.
type Matrix struct {
	entries map[string]map[Action]Entry
}

// NewMatrix builds a matrix from a literal table.
func NewMatrix(entries map[string]map[Action]Entry) *Matrix {
	copied := make(map[string]map[Action]Entry, len(entries))
	for res, byAction := range entries {
		inner := make(map[Action]Entry, len(byAction))
		for a, e := range byAction {
			inner[a] = e
		}
		copied[res] = inner
	}
	return &Matrix{entries: copied}
}

// Lookup returns the entry for a pair, reporting whether the pair exists at
// all. A missing pair is a bad request upstream, never an authorization
// failure.
func (m *Matrix) Lookup(resource string, action Action) (Entry, bool) {
	byAction, ok := m.entries[resource]
	if !ok {
		return Entry{}, false
	}
	e, ok := byAction[action]
	return e, ok
}

// Check evaluates the role threshold for a known pair. Level -1 (invalid
// auth) never satisfies any minimum.
func (m *Matrix) Check(resource string, action Action, level int) (Decision, bool) {
	entry, ok := m.Lookup(resource, action)
	if !ok {
		return Decision{}, false
	}
	return Decision{Allowed: level >= entry.MinLevel && level >= 0, Entry: entry}, true
}

// Resources returns the resource names present in the matrix.
func (m *Matrix) Resources() []string {
	out := make([]string, 0, len(m.entries))
	for res := range m.entries {
		out = append(out, res)
	}
	return out
}

// Validate checks matrix completeness against the registered handlers:
// every supported (resource, action) pair must have an entry, and every
// matrix resource must have a handler. A gap is a startup failure, not a
// runtime surprise.
func (m *Matrix) Validate(supported map[string][]Action) error {
	for res, actions := range supported {
		byAction, ok := m.entries[res]
		if !ok {
			return fmt.Errorf("policy: resource %q has a handler but no matrix entries", res)
		}
		for _, a := range actions {
			if _, ok := byAction[a]; !ok {
				return fmt.Errorf("policy: missing entry for %s.%s", res, a)
			}
		}
	}
	for res := range m.entries {
		if _, ok := supported[res]; !ok {
			return fmt.Errorf("policy: matrix names resource %q with no registered handler", res)
		}
	}
	return nil
}
