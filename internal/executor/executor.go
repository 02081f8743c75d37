// Package executor 负责在目标数据库上执行单条 SQL，并把结果归类为
// 行集 / 影响行数 / 失败三种情况。
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Kind 表示一次执行结果的类别
type Kind int

const (
	KindRows Kind = iota
	KindRowsAffected
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindRows:
		return "rows"
	case KindRowsAffected:
		return "rows_affected"
	case KindFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result 是一次 Execute 的结果，只在格式化为消息前存在
type Result struct {
	Kind  Kind
	Query string

	// KindRows
	Columns   []string
	Rows      [][]any
	TotalRows int
	Truncated bool

	// KindRowsAffected
	RowsAffected int64

	// KindFailure
	Err error

	Duration time.Duration
}

// Executor 在每次调用时打开独立会话执行查询，调用结束即释放
type Executor struct {
	opener   Opener
	logger   *zap.Logger
	observer func(ctx context.Context, r Result)
}

type Option func(*Executor)

func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithObserver 注册一个在每次执行结束后调用的回调（例如写入查询日志）
func WithObserver(fn func(ctx context.Context, r Result)) Option {
	return func(e *Executor) { e.observer = fn }
}

func New(opener Opener, opts ...Option) *Executor {
	e := &Executor{
		opener: opener,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute 执行 query。rowLimit <= 0 表示不限制返回行数。
// 出错时回滚事务；无论成功与否会话都会被关闭。
func (e *Executor) Execute(ctx context.Context, query string, rowLimit int) (res Result) {
	start := time.Now()
	res = Result{Query: query}
	defer func() {
		res.Duration = time.Since(start)
		if e.observer != nil {
			e.observer(ctx, res)
		}
	}()

	if e.opener == nil {
		res.Kind = KindFailure
		res.Err = fmt.Errorf("executor not initialized")
		return res
	}

	e.logger.Info("executing sql query", zap.String("query", truncateQuery(query, 500)))

	sess, err := e.opener.Open(ctx)
	if err != nil {
		return e.fail(res, err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			e.logger.Warn("close session failed", zap.Error(cerr))
		}
	}()

	if returnsRows(query) {
		cols, rows, err := sess.Query(ctx, query)
		if err != nil {
			return e.rollback(sess, res, err)
		}
		res.Kind = KindRows
		res.Columns = cols
		res.TotalRows = len(rows)
		if rowLimit > 0 && len(rows) > rowLimit {
			e.logger.Warn("sql query produced too many rows, truncating",
				zap.Int("rows", len(rows)),
				zap.Int("limit", rowLimit),
			)
			rows = rows[:rowLimit]
			res.Truncated = true
		}
		res.Rows = rows
	} else {
		n, err := sess.Exec(ctx, query)
		if err != nil {
			return e.rollback(sess, res, err)
		}
		res.Kind = KindRowsAffected
		res.RowsAffected = n
	}

	if err := sess.Commit(); err != nil {
		return e.rollback(sess, Result{Query: query}, fmt.Errorf("commit: %w", err))
	}
	return res
}

func (e *Executor) rollback(sess Session, res Result, cause error) Result {
	if err := sess.Rollback(); err != nil {
		e.logger.Warn("rollback failed", zap.Error(err))
	}
	return e.fail(res, cause)
}

func (e *Executor) fail(res Result, cause error) Result {
	e.logger.Error("sql query failed", zap.String("query", truncateQuery(res.Query, 500)), zap.Error(cause))
	return Result{
		Kind:  KindFailure,
		Query: res.Query,
		Err:   cause,
	}
}

// 以这些关键字开头的语句按读语句处理
var readPrefixes = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "DESC ", "EXPLAIN", "PRAGMA", "VALUES", "TABLE "}

// returnsRows 判断语句是否会返回结果集
func returnsRows(query string) bool {
	sk := skeleton(query)
	upper := strings.TrimLeft(sk, " (")
	for _, p := range readPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	// INSERT/UPDATE/DELETE ... RETURNING
	return strings.Contains(sk, " RETURNING ")
}

// skeleton 返回去掉注释和引号内容后的大写语句，空白压缩为单个空格，首尾各补一个空格
func skeleton(query string) string {
	var b strings.Builder
	b.WriteByte(' ')
	space := func() {
		if s := b.String(); s[len(s)-1] != ' ' {
			b.WriteByte(' ')
		}
	}
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
			space()
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				i = len(query)
			} else {
				i += end + 3
			}
			space()
		case c == '\'' || c == '"' || c == '`':
			// 引号内容整体丢弃，'' 转义按两段相邻字面量处理
			j := strings.IndexByte(query[i+1:], c)
			if j < 0 {
				i = len(query)
			} else {
				i += j + 1
			}
			b.WriteByte(c)
			b.WriteByte(c)
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			space()
		default:
			b.WriteByte(c)
		}
	}
	space()
	return strings.ToUpper(b.String())
}

func truncateQuery(query string, maxLen int) string {
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen] + "..."
}
