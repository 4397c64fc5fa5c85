// Package store defines the table-scoped data-access contract the gateway
// consumes. Implementations return tagged results: "no matching row" is a
// found flag, never an error, so handlers can distinguish absence from
// infrastructure failure at every call site.
package store

import "context"

// Op enumerates the predicate operators supported by every implementation.
type Op string

const (
	OpEq   Op = "eq"
	OpNeq  Op = "neq"
	OpLike Op = "like" // case-insensitive pattern match, % wildcards
	OpGte  Op = "gte"
	OpLte  Op = "lte"
	OpIn   Op = "in"
)

// Cond is one predicate over a column.
type Cond struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, v any) Cond   { return Cond{Field: field, Op: OpEq, Value: v} }
func Neq(field string, v any) Cond  { return Cond{Field: field, Op: OpNeq, Value: v} }
func Like(field string, v any) Cond { return Cond{Field: field, Op: OpLike, Value: v} }
func Gte(field string, v any) Cond  { return Cond{Field: field, Op: OpGte, Value: v} }
func Lte(field string, v any) Cond  { return Cond{Field: field, Op: OpLte, Value: v} }
func In(field string, v any) Cond   { return Cond{Field: field, Op: OpIn, Value: v} }

// Order is one ordering term.
type Order struct {
	Field string
	Desc  bool
}

// Query describes a bounded read over one table.
type Query struct {
	Table  string
	Conds  []Cond
	Order  []Order
	Limit  int
	Offset int
}

// Row is a single record. Values are JSON-compatible scalars plus time.Time.
type Row map[string]any

// Clone returns a shallow copy of the row.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the relational data-access interface.
type Store interface {
	Select(ctx context.Context, q Query) ([]Row, error)
	Count(ctx context.Context, table string, conds []Cond) (int64, error)
	Get(ctx context.Context, table string, conds []Cond) (Row, bool, error)
	Insert(ctx context.Context, table string, row Row) (Row, error)
	Update(ctx context.Context, table string, conds []Cond, set Row) (Row, bool, error)
	Delete(ctx context.Context, table string, conds []Cond) (int64, error)
}
