package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// 方言名称，与提示词中展示的名称一致
const (
	DialectSQLite     = "sqlite"
	DialectPostgreSQL = "postgresql"
	DialectMySQL      = "mysql"
)

// DialectFromDriver 把 database/sql 驱动名映射为方言名
func DialectFromDriver(driver string) (string, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

type tableRow struct {
	Schema  string `db:"table_schema"`
	Name    string `db:"table_name"`
	Comment string `db:"table_comment"`
}

type columnRow struct {
	Schema  string `db:"table_schema"`
	Table   string `db:"table_name"`
	Name    string `db:"column_name"`
	Type    string `db:"data_type"`
	Comment string `db:"column_comment"`
}

type foreignKeyRow struct {
	Schema    string `db:"table_schema"`
	Table     string `db:"table_name"`
	Column    string `db:"column_name"`
	RefSchema string `db:"ref_schema"`
	RefTable  string `db:"ref_table"`
	RefColumn string `db:"ref_column"`
}

type dialectQueries struct {
	tables      string
	columns     string
	foreignKeys string
}

// multiSchema=false 时只反射当前 schema / database
func queriesFor(dialect string, multiSchema bool) (dialectQueries, error) {
	switch dialect {
	case DialectSQLite:
		return dialectQueries{
			tables: `SELECT 'main' AS table_schema, name AS table_name, '' AS table_comment
				FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
			columns: `SELECT 'main' AS table_schema, m.name AS table_name, p.name AS column_name,
				p.type AS data_type, '' AS column_comment
				FROM sqlite_master m JOIN pragma_table_info(m.name) p
				WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%' ORDER BY m.name, p.cid`,
			foreignKeys: `SELECT 'main' AS table_schema, m.name AS table_name, f."from" AS column_name,
				'main' AS ref_schema, f."table" AS ref_table, COALESCE(f."to", '') AS ref_column
				FROM sqlite_master m JOIN pragma_foreign_key_list(m.name) f
				WHERE m.type = 'table' ORDER BY m.name, f.id, f.seq`,
		}, nil
	case DialectPostgreSQL:
		scope := "t.table_schema = current_schema()"
		if multiSchema {
			scope = "t.table_schema NOT IN ('pg_catalog', 'information_schema') AND t.table_schema NOT LIKE 'pg_toast%'"
		}
		return dialectQueries{
			tables: `SELECT t.table_schema, t.table_name,
				COALESCE(obj_description(format('%I.%I', t.table_schema, t.table_name)::regclass, 'pg_class'), '') AS table_comment
				FROM information_schema.tables t
				WHERE t.table_type = 'BASE TABLE' AND ` + scope + ` ORDER BY 1, 2`,
			columns: `SELECT c.table_schema, c.table_name, c.column_name, c.data_type,
				COALESCE(col_description(format('%I.%I', c.table_schema, c.table_name)::regclass, c.ordinal_position), '') AS column_comment
				FROM information_schema.columns c
				JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
				WHERE t.table_type = 'BASE TABLE' AND ` + scope + ` ORDER BY 1, 2, c.ordinal_position`,
			foreignKeys: `SELECT t.table_schema, t.table_name, k.column_name,
				u.table_schema AS ref_schema, u.table_name AS ref_table, u.column_name AS ref_column
				FROM information_schema.table_constraints t
				JOIN information_schema.key_column_usage k
					ON k.constraint_name = t.constraint_name AND k.table_schema = t.table_schema
				JOIN information_schema.constraint_column_usage u
					ON u.constraint_name = t.constraint_name AND u.constraint_schema = t.table_schema
				WHERE t.constraint_type = 'FOREIGN KEY' AND ` + scope + ` ORDER BY 1, 2, 3`,
		}, nil
	case DialectMySQL:
		scope := "t.table_schema = DATABASE()"
		if multiSchema {
			scope = "t.table_schema NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')"
		}
		return dialectQueries{
			tables: `SELECT t.table_schema AS table_schema, t.table_name AS table_name, t.table_comment AS table_comment
				FROM information_schema.tables t
				WHERE t.table_type = 'BASE TABLE' AND ` + scope + ` ORDER BY 1, 2`,
			columns: `SELECT c.table_schema AS table_schema, c.table_name AS table_name, c.column_name AS column_name,
				c.column_type AS data_type, c.column_comment AS column_comment
				FROM information_schema.columns c
				JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
				WHERE t.table_type = 'BASE TABLE' AND ` + scope + ` ORDER BY 1, 2, c.ordinal_position`,
			foreignKeys: `SELECT t.table_schema AS table_schema, t.table_name AS table_name, t.column_name AS column_name,
				t.referenced_table_schema AS ref_schema, t.referenced_table_name AS ref_table,
				t.referenced_column_name AS ref_column
				FROM information_schema.key_column_usage t
				WHERE t.referenced_table_name IS NOT NULL AND ` + scope + ` ORDER BY 1, 2, 3`,
		}, nil
	default:
		return dialectQueries{}, fmt.Errorf("unsupported dialect: %s", dialect)
	}
}

// Reflect 从数据库读取表、列和外键，生成默认描述。
// multiSchema 为 true 时表名带 schema 前缀（schema.table）。
func Reflect(ctx context.Context, db *sqlx.DB, dialect string, multiSchema bool) (Metadata, error) {
	if db == nil {
		return nil, errors.New("database not initialized")
	}
	q, err := queriesFor(dialect, multiSchema)
	if err != nil {
		return nil, err
	}

	var tables []tableRow
	if err := db.SelectContext(ctx, &tables, q.tables); err != nil {
		return nil, fmt.Errorf("reflect tables: %w", err)
	}
	var columns []columnRow
	if err := db.SelectContext(ctx, &columns, q.columns); err != nil {
		return nil, fmt.Errorf("reflect columns: %w", err)
	}
	var fks []foreignKeyRow
	if err := db.SelectContext(ctx, &fks, q.foreignKeys); err != nil {
		return nil, fmt.Errorf("reflect foreign keys: %w", err)
	}

	key := func(schemaName, table string) string {
		if multiSchema && schemaName != "" {
			return schemaName + "." + table
		}
		return table
	}

	m := make(Metadata, len(tables))
	for _, t := range tables {
		desc := strings.TrimSpace(t.Comment)
		if desc == "" {
			desc = fmt.Sprintf("Table %s", key(t.Schema, t.Name))
		}
		m[key(t.Schema, t.Name)] = TableDescription{
			Description: desc,
			Columns:     map[string]string{},
		}
	}
	for _, c := range columns {
		d, ok := m[key(c.Schema, c.Table)]
		if !ok {
			continue
		}
		desc := strings.TrimSpace(c.Type)
		if comment := strings.TrimSpace(c.Comment); comment != "" {
			if desc != "" {
				desc += ", "
			}
			desc += comment
		}
		d.Columns[c.Name] = desc
	}
	for _, f := range fks {
		k := key(f.Schema, f.Table)
		d, ok := m[k]
		if !ok {
			continue
		}
		if d.Relationships == nil {
			d.Relationships = map[string]string{}
		}
		ref := key(f.RefSchema, f.RefTable)
		rel := fmt.Sprintf("%s.%s references %s", k, f.Column, ref)
		if f.RefColumn != "" {
			rel += "." + f.RefColumn
		}
		if prev, ok := d.Relationships[ref]; ok {
			rel = prev + "; " + rel
		}
		d.Relationships[ref] = rel
		m[k] = d
	}
	return m, nil
}
