// Package pg implements the store contract on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"hearthside.org/internal/store"
)

// Store executes generic table-scoped queries against PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for the gateway's
// small-round-trip request profile.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle. Used by tests and the migration CLI.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("pg: invalid identifier %q", name)
	}
	return name, nil
}

func (s *Store) Select(ctx context.Context, q store.Query) ([]store.Row, error) {
	table, err := ident(q.Table)
	if err != nil {
		return nil, err
	}
	where, args, err := buildWhere(q.Conds, 1)
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "select * from %s%s", table, where)
	if len(q.Order) > 0 {
		terms := make([]string, 0, len(q.Order))
		for _, o := range q.Order {
			col, err := ident(o.Field)
			if err != nil {
				return nil, err
			}
			dir := "asc"
			if o.Desc {
				dir = "desc"
			}
			terms = append(terms, col+" "+dir)
		}
		fmt.Fprintf(&b, " order by %s", strings.Join(terms, ", "))
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	if q.Offset > 0 {
		fmt.Fprintf(&b, " offset %d", q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRows(rows)
}

func (s *Store) Count(ctx context.Context, table string, conds []store.Cond) (int64, error) {
	t, err := ident(table)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(conds, 1)
	if err != nil {
		return 0, err
	}
	var n int64
	err = s.db.QueryRowContext(ctx, fmt.Sprintf("select count(*) from %s%s", t, where), args...).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (s *Store) Get(ctx context.Context, table string, conds []store.Cond) (store.Row, bool, error) {
	t, err := ident(table)
	if err != nil {
		return nil, false, err
	}
	where, args, err := buildWhere(conds, 1)
	if err != nil {
		return nil, false, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("select * from %s%s limit 1", t, where), args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}

func (s *Store) Insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	t, err := ident(table)
	if err != nil {
		return nil, err
	}
	if len(row) == 0 {
		return nil, fmt.Errorf("pg: insert into %s with no columns", table)
	}
	cols := sortedKeys(row)
	placeholders := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		if _, err := ident(c); err != nil {
			return nil, err
		}
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, row[c])
	}
	query := fmt.Sprintf(
		"insert into %s (%s) values (%s) returning *",
		t, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pg: insert into %s returned no row", table)
	}
	return out[0], nil
}

func (s *Store) Update(ctx context.Context, table string, conds []store.Cond, set store.Row) (store.Row, bool, error) {
	t, err := ident(table)
	if err != nil {
		return nil, false, err
	}
	if len(set) == 0 {
		return nil, false, fmt.Errorf("pg: update %s with no columns", table)
	}
	cols := sortedKeys(set)
	assignments := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(conds))
	for i, c := range cols {
		if _, err := ident(c); err != nil {
			return nil, false, err
		}
		assignments = append(assignments, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, set[c])
	}
	where, whereArgs, err := buildWhere(conds, len(cols)+1)
	if err != nil {
		return nil, false, err
	}
	args = append(args, whereArgs...)

	query := fmt.Sprintf("update %s set %s%s returning *", t, strings.Join(assignments, ", "), where)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, false, err
	}
	if len(out) == 0 {
		return nil, false, nil
	}
	return out[0], true, nil
}

func (s *Store) Delete(ctx context.Context, table string, conds []store.Cond) (int64, error) {
	t, err := ident(table)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(conds, 1)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("delete from %s%s", t, where), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func buildWhere(conds []store.Cond, firstArg int) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}
	terms := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	n := firstArg
	for _, c := range conds {
		col, err := ident(c.Field)
		if err != nil {
			return "", nil, err
		}
		switch c.Op {
		case store.OpEq:
			if c.Value == nil {
				terms = append(terms, col+" is null")
				continue
			}
			terms = append(terms, fmt.Sprintf("%s = $%d", col, n))
		case store.OpNeq:
			if c.Value == nil {
				terms = append(terms, col+" is not null")
				continue
			}
			terms = append(terms, fmt.Sprintf("%s <> $%d", col, n))
		case store.OpLike:
			terms = append(terms, fmt.Sprintf("%s ilike $%d", col, n))
		case store.OpGte:
			terms = append(terms, fmt.Sprintf("%s >= $%d", col, n))
		case store.OpLte:
			terms = append(terms, fmt.Sprintf("%s <= $%d", col, n))
		case store.OpIn:
			terms = append(terms, fmt.Sprintf("%s = any($%d)", col, n))
		default:
			return "", nil, fmt.Errorf("pg: unsupported operator %q", c.Op)
		}
		args = append(args, c.Value)
		n++
	}
	return " where " + strings.Join(terms, " and "), args, nil
}

func scanRows(rows *sql.Rows) ([]store.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func sortedKeys(row store.Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
