package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory implements Store with in-process concurrency safety. It backs the
// gateway in tests and local development; the pg implementation is the
// durable twin.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[string][]Row)}
}

// Seed replaces the contents of a table. Intended for tests.
func (m *Memory) Seed(table string, rows []Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]Row, 0, len(rows))
	for _, r := range rows {
		copied = append(copied, r.Clone())
	}
	m.tables[table] = copied
}

func (m *Memory) Select(ctx context.Context, q Query) ([]Row, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []Row
	for _, row := range m.tables[q.Table] {
		ok, err := matches(row, q.Conds)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row.Clone())
		}
	}
	sortRows(matched, q.Order)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (m *Memory) Count(ctx context.Context, table string, conds []Cond) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, row := range m.tables[table] {
		ok, err := matches(row, conds)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Get(ctx context.Context, table string, conds []Cond) (Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, row := range m.tables[table] {
		ok, err := matches(row, conds)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return row.Clone(), true, nil
		}
	}
	return nil, false, nil
}

func (m *Memory) Insert(ctx context.Context, table string, row Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := row.Clone()
	m.tables[table] = append(m.tables[table], copied)
	return copied.Clone(), nil
}

func (m *Memory) Update(ctx context.Context, table string, conds []Cond, set Row) (Row, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var updated Row
	for _, row := range m.tables[table] {
		ok, err := matches(row, conds)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			continue
		}
		for k, v := range set {
			row[k] = v
		}
		if updated == nil {
			updated = row.Clone()
		}
	}
	if updated == nil {
		return nil, false, nil
	}
	return updated, true, nil
}

func (m *Memory) Delete(ctx context.Context, table string, conds []Cond) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.tables[table][:0]
	var removed int64
	for _, row := range m.tables[table] {
		ok, err := matches(row, conds)
		if err != nil {
			return 0, err
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	m.tables[table] = kept
	return removed, nil
}

func matches(row Row, conds []Cond) (bool, error) {
	for _, c := range conds {
		ok, err := matchCond(row[c.Field], c)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchCond(have any, c Cond) (bool, error) {
	switch c.Op {
	case OpEq:
		return looseEqual(have, c.Value), nil
	case OpNeq:
		return !looseEqual(have, c.Value), nil
	case OpLike:
		s, okS := asString(have)
		pat, okP := asString(c.Value)
		if !okS || !okP {
			return false, nil
		}
		return matchPattern(s, pat), nil
	case OpGte:
		cmp, ok := looseCompare(have, c.Value)
		return ok && cmp >= 0, nil
	case OpLte:
		cmp, ok := looseCompare(have, c.Value)
		return ok && cmp <= 0, nil
	case OpIn:
		for _, v := range toSlice(c.Value) {
			if looseEqual(have, v) {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("store: unsupported operator %q", c.Op)
	}
}

func looseEqual(a, b any) bool {
	cmp, ok := looseCompare(a, b)
	return ok && cmp == 0
}

// looseCompare orders two values of JSON-compatible types. Numbers compare
// numerically across int/int64/float64; times compare as instants whether
// held as time.Time or RFC3339 strings.
func looseCompare(a, b any) (int, bool) {
	if a == nil || b == nil {
		if a == nil && b == nil {
			return 0, true
		}
		return 0, false
	}
	if ta, okA := asTime(a); okA {
		if tb, okB := asTime(b); okB {
			return ta.Compare(tb), true
		}
	}
	if fa, okA := asFloat(a); okA {
		if fb, okB := asFloat(b); okB {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
		return 0, false
	}
	if ba, okA := a.(bool); okA {
		if bb, okB := b.(bool); okB {
			if ba == bb {
				return 0, true
			}
			if !ba {
				return -1, true
			}
			return 1, true
		}
		return 0, false
	}
	sa, okA := asString(a)
	sb, okB := asString(b)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	default:
		return "", false
	}
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	default:
		if v == nil {
			return nil
		}
		return []any{v}
	}
}

// matchPattern implements case-insensitive LIKE with % wildcards only.
func matchPattern(s, pat string) bool {
	s = strings.ToLower(s)
	pat = strings.ToLower(pat)
	segments := strings.Split(pat, "%")
	if len(segments) == 1 {
		return s == pat
	}
	if segments[0] != "" {
		if !strings.HasPrefix(s, segments[0]) {
			return false
		}
		s = s[len(segments[0]):]
	}
	last := segments[len(segments)-1]
	for _, seg := range segments[1 : len(segments)-1] {
		if seg == "" {
			continue
		}
		idx := strings.Index(s, seg)
		if idx < 0 {
			return false
		}
		s = s[idx+len(seg):]
	}
	if last == "" {
		return true
	}
	return strings.HasSuffix(s, last)
}

func sortRows(rows []Row, order []Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			cmp, ok := looseCompare(rows[i][o.Field], rows[j][o.Field])
			if !ok {
				// nulls sort last regardless of direction
				iNil := rows[i][o.Field] == nil
				jNil := rows[j][o.Field] == nil
				if iNil != jNil {
					return jNil
				}
				continue
			}
			if cmp == 0 {
				continue
			}
			if o.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
