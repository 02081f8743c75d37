package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/glebarez/go-sqlite"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), amount REAL)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

func TestReflect_SQLite(t *testing.T) {
	db := openTestDB(t)

	m, err := Reflect(context.Background(), db, DialectSQLite, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"orders", "users"}, m.TableNames())
	orders, ok := m.Lookup("orders")
	require.True(t, ok)
	assert.Equal(t, "INTEGER", orders.Columns["user_id"])
	assert.Equal(t, "REAL", orders.Columns["amount"])
	assert.Equal(t, "orders.user_id references users.id", orders.Relationships["users"])

	users, _ := m.Lookup("users")
	assert.Empty(t, users.Relationships)
}

func TestReflect_SQLiteMultiSchema(t *testing.T) {
	db := openTestDB(t)

	m, err := Reflect(context.Background(), db, DialectSQLite, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.orders", "main.users"}, m.TableNames())
	assert.Contains(t, m["main.orders"].Relationships, "main.users")
}

func TestReflect_UnsupportedDialect(t *testing.T) {
	db := openTestDB(t)
	_, err := Reflect(context.Background(), db, "oracle", false)
	assert.Error(t, err)
}

func TestDialectFromDriver(t *testing.T) {
	for driver, want := range map[string]string{
		"sqlite":   DialectSQLite,
		"postgres": DialectPostgreSQL,
		"mysql":    DialectMySQL,
	} {
		got, err := DialectFromDriver(driver)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := DialectFromDriver("mssql")
	assert.Error(t, err)
}

func TestLoadFile_YAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "ctx.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
orders:
  description: Customer orders
  columns:
    id: order id
    amount: total in USD
  relationships:
    users: each order belongs to one user
`), 0o644))
	jsonPath := filepath.Join(dir, "ctx.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"users": {"description": "People"}}`), 0o644))

	m, err := LoadFile(yamlPath)
	require.NoError(t, err)
	desc, ok := m.ColumnDescription("orders", "amount")
	assert.True(t, ok)
	assert.Equal(t, "total in USD", desc)
	_, ok = m.ColumnDescription("orders", "nope")
	assert.False(t, ok)

	m, err = LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "People", m["users"].Description)
	assert.NotNil(t, m["users"].Columns)
}

func TestResolve(t *testing.T) {
	reflected := Metadata{"a": {Description: "reflected"}}
	supplied := Metadata{"b": {Description: "supplied"}}

	assert.Equal(t, supplied, Resolve(reflected, supplied))
	assert.Equal(t, reflected, Resolve(reflected, nil))
	assert.NotNil(t, Resolve(nil, nil))
}

func TestMetadataJSON(t *testing.T) {
	m := Metadata{"orders": {Description: "Orders", Columns: map[string]string{"id": "pk"}}}
	assert.JSONEq(t, `{"orders": {"description": "Orders", "columns": {"id": "pk"}}}`, m.JSON())
	assert.Equal(t, "{}", Metadata{}.JSON())
	assert.Equal(t, `{"description":"Orders","columns":{"id":"pk"}}`, m["orders"].JSON())
}
