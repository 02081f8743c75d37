package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSession struct {
	rows     [][]any
	queryErr error
	execErr  error
	affected int64

	committed  bool
	rolledBack bool
	closes     int
}

func (f *fakeSession) Query(ctx context.Context, query string) ([]string, [][]any, error) {
	if f.queryErr != nil {
		return nil, nil, f.queryErr
	}
	return []string{"n"}, f.rows, nil
}

func (f *fakeSession) Exec(ctx context.Context, query string) (int64, error) {
	if f.execErr != nil {
		return 0, f.execErr
	}
	return f.affected, nil
}

func (f *fakeSession) Commit() error   { f.committed = true; return nil }
func (f *fakeSession) Rollback() error { f.rolledBack = true; return nil }
func (f *fakeSession) Close() error    { f.closes++; return nil }

func openerFor(s *fakeSession) Opener {
	return OpenerFunc(func(ctx context.Context) (Session, error) { return s, nil })
}

func numberedRows(n int) [][]any {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{int64(i)}
	}
	return rows
}

func TestExecute_RowLimit(t *testing.T) {
	cases := []struct {
		name          string
		total, limit  int
		wantRows      int
		wantTruncated bool
	}{
		{name: "over limit", total: 10, limit: 3, wantRows: 3, wantTruncated: true},
		{name: "at limit", total: 3, limit: 3, wantRows: 3},
		{name: "under limit", total: 2, limit: 5, wantRows: 2},
		{name: "unlimited", total: 1000, limit: 0, wantRows: 1000},
		{name: "negative is unlimited", total: 7, limit: -1, wantRows: 7},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &fakeSession{rows: numberedRows(tc.total)}
			res := New(openerFor(sess)).Execute(context.Background(), "SELECT n FROM t", tc.limit)

			require.Equal(t, KindRows, res.Kind)
			assert.Len(t, res.Rows, tc.wantRows)
			assert.Equal(t, tc.wantTruncated, res.Truncated)
			assert.Equal(t, tc.total, res.TotalRows)
			assert.True(t, sess.committed)
			assert.Equal(t, 1, sess.closes)
		})
	}
}

func TestExecute_TruncationIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sess := &fakeSession{rows: numberedRows(5)}

	New(openerFor(sess), WithLogger(zap.New(core))).Execute(context.Background(), "SELECT n FROM t", 2)

	entries := logs.FilterMessageSnippet("truncating").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].ContextMap()["rows"])
}

func TestExecute_ErrorRollsBackAndCloses(t *testing.T) {
	sess := &fakeSession{queryErr: errors.New("no such table: nope")}
	res := New(openerFor(sess)).Execute(context.Background(), "SELECT * FROM nope", 10)

	require.Equal(t, KindFailure, res.Kind)
	assert.EqualError(t, res.Err, "no such table: nope")
	assert.Equal(t, "SELECT * FROM nope", res.Query)
	assert.True(t, sess.rolledBack)
	assert.False(t, sess.committed)
	assert.Equal(t, 1, sess.closes)

	sess = &fakeSession{execErr: errors.New("constraint failed")}
	res = New(openerFor(sess)).Execute(context.Background(), "DELETE FROM t", 0)
	require.Equal(t, KindFailure, res.Kind)
	assert.True(t, sess.rolledBack)
	assert.Equal(t, 1, sess.closes)
}

func TestExecute_OpenFailure(t *testing.T) {
	opener := OpenerFunc(func(ctx context.Context) (Session, error) {
		return nil, errors.New("connection refused")
	})
	res := New(opener).Execute(context.Background(), "SELECT 1", 0)
	assert.Equal(t, KindFailure, res.Kind)
	assert.ErrorContains(t, res.Err, "connection refused")
}

func TestExecute_ObserverSeesEveryResult(t *testing.T) {
	var seen []Kind
	exec := New(openerFor(&fakeSession{affected: 4}), WithObserver(func(ctx context.Context, r Result) {
		seen = append(seen, r.Kind)
	}))
	res := exec.Execute(context.Background(), "UPDATE t SET n = 1", 0)
	assert.Equal(t, KindRowsAffected, res.Kind)
	assert.Equal(t, int64(4), res.RowsAffected)
	assert.Equal(t, []Kind{KindRowsAffected}, seen)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, EmptyResultText, Format(Result{Kind: KindRows}))
	assert.Equal(t, "(1, 'a'),\n(2, NULL)", Format(Result{
		Kind: KindRows,
		Rows: [][]any{{int64(1), "a"}, {int64(2), nil}},
	}))
	assert.Equal(t, "Non-SELECT query executed successfully. Rows affected: 3",
		Format(Result{Kind: KindRowsAffected, RowsAffected: 3}))
}

func TestReturnsRows(t *testing.T) {
	assert.True(t, returnsRows("  select 1"))
	assert.True(t, returnsRows("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.True(t, returnsRows("(SELECT 1) UNION (SELECT 2)"))
	assert.True(t, returnsRows("INSERT INTO t(n) VALUES (1) RETURNING id"))
	assert.False(t, returnsRows("INSERT INTO t(n) VALUES (1)"))
	assert.False(t, returnsRows("UPDATE t SET n = 2"))

	// 前导注释不影响判断
	assert.True(t, returnsRows("-- list orders\nSELECT id FROM orders"))
	assert.True(t, returnsRows("/* top */ SELECT id FROM orders"))
	assert.True(t, returnsRows("/* a */ -- b\n  ( select 1 )"))
	assert.False(t, returnsRows("-- SELECT\nDELETE FROM t"))
	assert.False(t, returnsRows("/* SELECT */ UPDATE t SET n = 1"))

	// 引号和注释里的 RETURNING 不算
	assert.False(t, returnsRows("UPDATE t SET note = ' RETURNING x' WHERE id = 1"))
	assert.False(t, returnsRows("UPDATE t SET n = 1 -- RETURNING id"))
	assert.True(t, returnsRows("DELETE FROM t WHERE note = 'it''s' RETURNING id"))
	assert.True(t, returnsRows("INSERT INTO t(n) VALUES (1)\nRETURNING\tid"))
}

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "target.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, item TEXT NOT NULL)`)
	require.NoError(t, err)
	for i := 1; i <= 5; i++ {
		_, err = db.Exec(`INSERT INTO orders (id, item) VALUES (?, ?)`, i, fmt.Sprintf("item-%d", i))
		require.NoError(t, err)
	}
	return db
}

func TestExecute_SQLite(t *testing.T) {
	db := openTestDB(t)
	exec := New(DBOpener{DB: db})
	ctx := context.Background()

	res := exec.Execute(ctx, "SELECT id, item FROM orders ORDER BY id", 2)
	require.Equal(t, KindRows, res.Kind, "err: %v", res.Err)
	assert.Equal(t, []string{"id", "item"}, res.Columns)
	assert.True(t, res.Truncated)
	assert.Equal(t, "(1, 'item-1'),\n(2, 'item-2')", Format(res))

	res = exec.Execute(ctx, "UPDATE orders SET item = 'x' WHERE id > 3", 0)
	require.Equal(t, KindRowsAffected, res.Kind, "err: %v", res.Err)
	assert.Equal(t, int64(2), res.RowsAffected)

	res = exec.Execute(ctx, "SELECT id FROM orders WHERE id > 100", 0)
	require.Equal(t, KindRows, res.Kind)
	assert.Equal(t, EmptyResultText, Format(res))

	for _, q := range []string{
		"-- list orders\nSELECT id FROM orders",
		"/* top */ SELECT id FROM orders",
	} {
		res = exec.Execute(ctx, q, 0)
		require.Equal(t, KindRows, res.Kind, "query %q err: %v", q, res.Err)
		assert.Equal(t, 5, res.TotalRows, q)
		assert.Len(t, res.Rows, 5, q)
	}

	res = exec.Execute(ctx, "SELECT * FROM missing_table", 0)
	require.Equal(t, KindFailure, res.Kind)
	assert.Error(t, res.Err)

	// 失败的语句不会影响后续执行，也不会留下未结束的事务
	var n int
	require.NoError(t, db.Get(&n, "SELECT count(*) FROM orders WHERE item = 'x'"))
	assert.Equal(t, 2, n)
}

func TestExecute_SQLiteFailedWriteIsRolledBack(t *testing.T) {
	db := openTestDB(t)
	exec := New(DBOpener{DB: db})

	res := exec.Execute(context.Background(), "INSERT INTO orders (id, item) VALUES (1, 'dup')", 0)
	require.Equal(t, KindFailure, res.Kind)

	var n int
	require.NoError(t, db.Get(&n, "SELECT count(*) FROM orders"))
	assert.Equal(t, 5, n)
}
