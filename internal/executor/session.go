package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Session 是一次 Execute 独占的数据库会话（连接 + 事务）。
// Close 必须可重复调用。
type Session interface {
	Query(ctx context.Context, query string) (columns []string, rows [][]any, err error)
	Exec(ctx context.Context, query string) (rowsAffected int64, err error)
	Commit() error
	Rollback() error
	Close() error
}

// Opener 为每次 Execute 打开一个新的 Session
type Opener interface {
	Open(ctx context.Context) (Session, error)
}

// OpenerFunc 让普通函数满足 Opener
type OpenerFunc func(ctx context.Context) (Session, error)

func (f OpenerFunc) Open(ctx context.Context) (Session, error) { return f(ctx) }

// DBOpener 基于 sqlx.DB 的 Opener：每个 Session 占用连接池中的一条连接并开启事务
type DBOpener struct {
	DB *sqlx.DB
}

func (o DBOpener) Open(ctx context.Context) (Session, error) {
	if o.DB == nil {
		return nil, errors.New("database not initialized")
	}
	conn, err := o.DB.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlxSession{conn: conn, tx: tx}, nil
}

type sqlxSession struct {
	conn   *sqlx.Conn
	tx     *sqlx.Tx
	done   bool
	closed bool
}

func (s *sqlxSession) Query(ctx context.Context, query string) ([]string, [][]any, error) {
	rows, err := s.tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		for i, v := range vals {
			// 文本列在部分驱动下以 []byte 返回
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return columns, out, nil
}

func (s *sqlxSession) Exec(ctx context.Context, query string) (int64, error) {
	res, err := s.tx.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// 部分驱动不支持 RowsAffected，按 0 处理
		return 0, nil
	}
	return n, nil
}

func (s *sqlxSession) Commit() error {
	if s.done {
		return sql.ErrTxDone
	}
	s.done = true
	return s.tx.Commit()
}

func (s *sqlxSession) Rollback() error {
	if s.done {
		return nil
	}
	s.done = true
	return s.tx.Rollback()
}

func (s *sqlxSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.Rollback()
	return s.conn.Close()
}

// Ping 用于启动时快速检查数据库可达
func Ping(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.New("database not initialized")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}
