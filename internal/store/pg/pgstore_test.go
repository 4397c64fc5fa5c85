package pg

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"hearthside.org/internal/store"
)

// passthrough lets slice arguments (used by "= any") reach the mock; the
// real driver handles them natively.
type passthrough struct{}

func (passthrough) ConvertValue(v any) (driver.Value, error) { return v, nil }

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.ValueConverterOption(passthrough{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestSelectBuildsWhereOrderLimit(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"select * from tasks where status = $1 and priority >= $2 order by created_at desc limit 10 offset 5",
	)).
		WithArgs("open", 2).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("t1", "open"))

	rows, err := st.Select(context.Background(), store.Query{
		Table: "tasks",
		Conds: []store.Cond{
			store.Eq("status", "open"),
			store.Gte("priority", 2),
		},
		Order:  []store.Order{{Field: "created_at", Desc: true}},
		Limit:  10,
		Offset: 5,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "t1", rows[0]["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectNilValueBecomesIsNull(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"select * from tasks where completed_at is null",
	)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("t1"))

	_, err := st.Select(context.Background(), store.Query{
		Table: "tasks",
		Conds: []store.Cond{store.Eq("completed_at", nil)},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSelectInUsesAny(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"select * from feature_requests where status = any($1)",
	)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("fr1"))

	_, err := st.Select(context.Background(), store.Query{
		Table: "feature_requests",
		Conds: []store.Cond{store.In("status", []string{"open", "planned"})},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCount(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"select count(*) from feature_requests where created_at >= $1",
	)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(4)))

	n, err := st.Count(context.Background(), "feature_requests", []store.Cond{
		store.Gte("created_at", "2026-03-01T00:00:00Z"),
	})
	require.NoError(t, err)
	require.Equal(t, int64(4), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLimitsToOneRow(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"select * from spaces where id = $1 limit 1",
	)).
		WithArgs("spc_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("spc_1", "Common Room"))

	row, found, err := st.Get(context.Background(), "spaces", []store.Cond{store.Eq("id", "spc_1")})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Common Room", row["name"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertReturnsRow(t *testing.T) {
	st, mock := newMock(t)
	// Columns are written in sorted order for a stable statement shape.
	mock.ExpectQuery(regexp.QuoteMeta(
		"insert into tasks (id, status, title) values ($1, $2, $3) returning *",
	)).
		WithArgs("t9", "open", "New task").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "title"}).AddRow("t9", "open", "New task"))

	row, err := st.Insert(context.Background(), "tasks", store.Row{
		"title":  "New task",
		"id":     "t9",
		"status": "open",
	})
	require.NoError(t, err)
	require.Equal(t, "t9", row["id"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReturnsTaggedResult(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(
		"update tasks set status = $1 where id = $2 returning *",
	)).
		WithArgs("done", "t1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("t1", "done"))

	row, found, err := st.Update(context.Background(), "tasks",
		[]store.Cond{store.Eq("id", "t1")}, store.Row{"status": "done"})
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "done", row["status"])

	mock.ExpectQuery(regexp.QuoteMeta(
		"update tasks set status = $1 where id = $2 returning *",
	)).
		WithArgs("done", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	_, found, err = st.Update(context.Background(), "tasks",
		[]store.Cond{store.Eq("id", "missing")}, store.Row{"status": "done"})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportsAffected(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta(
		"delete from assignments where space_id = $1",
	)).
		WithArgs("spc_1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := st.Delete(context.Background(), "assignments", []store.Cond{store.Eq("space_id", "spc_1")})
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectsInvalidIdentifiers(t *testing.T) {
	st, _ := newMock(t)

	_, err := st.Select(context.Background(), store.Query{Table: "tasks; drop table users"})
	require.Error(t, err)

	_, err = st.Insert(context.Background(), "tasks", store.Row{"bad column": 1})
	require.Error(t, err)

	_, err = st.Select(context.Background(), store.Query{
		Table: "tasks",
		Conds: []store.Cond{store.Eq("1bad", "x")},
	})
	require.Error(t, err)
}

func TestScanConvertsBytes(t *testing.T) {
	st, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("select * from faq limit 1")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "question"}).
			AddRow([]byte("faq_1"), []byte("Where is the mail room?")))

	rows, err := st.Select(context.Background(), store.Query{Table: "faq", Limit: 1})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "faq_1", rows[0]["id"])
	require.Equal(t, "Where is the mail room?", rows[0]["question"])
}
