package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/executor"
	dbschema "github.com/wwwzy/SQLChatAgent/internal/schema"
	"github.com/wwwzy/SQLChatAgent/internal/storage"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// ErrNoDatabase 表示既没有可用的数据库连接，也没有连接串
var ErrNoDatabase = errors.New("agent: a database handle or connection URI is required")

// Options 为构造 Controller 所需的依赖
type Options struct {
	Config Config
	Model  model.ToolCallingChatModel

	// DB / URI / Opener 至少提供一个。URI 打开的连接由 Controller 负责关闭。
	DB     *sqlx.DB
	Driver string
	URI    string
	Opener executor.Opener

	// Metadata 非空时不再做反射
	Metadata dbschema.Metadata

	// Store 可选，用于审计与查询日志
	Store  *storage.Storage
	Logger *zap.Logger
	Tokens TokenCounter
}

// Controller 是主 Agent：持有对话历史、分发工具调用并处理无法识别的输出。
// 同一时间只运行一个 Run。
type Controller struct {
	cfg      Config
	model    model.ToolCallingChatModel
	set      *tools.Set
	metadata dbschema.Metadata
	exec     *executor.Executor
	helper   *Helper
	store    *storage.Storage
	logger   *zap.Logger
	tokens   TokenCounter
	template prompt.ChatTemplate
	runnable compose.Runnable[turnState, turnState]

	conv *Conversation
	// subject 为主 Agent 最近一次非空回复内容，Pass / DonePass / Forward 以它为结果
	subject string
	// pendingCalls 为最近一条 assistant 消息中尚未回复的工具调用
	pendingCalls []schema.ToolCall
	// turns 为本次 Run 中主 Agent 的模型调用次数（含 strict 重新生成，不含 helper）
	turns int

	ownedDB *sqlx.DB
	runMu   sync.Mutex
}

// New 构造主 Agent。只有配置错误（缺少数据库、缺少模型）会在这里失败。
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.Model == nil {
		return nil, errors.New("agent: chat model is required")
	}
	if opts.DB == nil && opts.URI == "" && opts.Opener == nil {
		return nil, ErrNoDatabase
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Controller{
		store:    opts.Store,
		logger:   logger,
		tokens:   opts.Tokens,
		template: NewChatTemplate(),
		conv:     NewConversation(),
	}
	if c.tokens == nil && opts.Config.MaxRetainedTokens > 0 {
		c.tokens = DefaultTokenCounter()
	}

	db := opts.DB
	if db == nil && opts.URI != "" {
		driver := opts.Driver
		if driver == "" {
			driver = "sqlite"
		}
		opened, err := sqlx.Open(driver, opts.URI)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		db = opened
		c.ownedDB = opened
	}

	if err := c.init(ctx, opts, db); err != nil {
		if c.ownedDB != nil {
			_ = c.ownedDB.Close()
		}
		return nil, err
	}
	return c, nil
}

func (c *Controller) init(ctx context.Context, opts Options, db *sqlx.DB) error {
	cfg := opts.Config
	if cfg.Dialect == "" && db != nil {
		dialect, err := dbschema.DialectFromDriver(db.DriverName())
		if err != nil {
			return err
		}
		cfg.Dialect = dialect
	}

	md := opts.Metadata
	if len(md) == 0 && db != nil {
		reflected, err := dbschema.Reflect(ctx, db, cfg.Dialect, cfg.MultiSchema)
		if err != nil {
			return fmt.Errorf("reflect schema: %w", err)
		}
		md = dbschema.Resolve(reflected, opts.Metadata)
	}
	if md == nil {
		md = dbschema.Metadata{}
	}
	c.metadata = md

	// 系统提示在构造前一次性渲染完成，之后 cfg 不再修改
	if cfg.Instructions == "" {
		cfg = ResolveConfig(cfg, md)
	}
	c.cfg = cfg

	set, err := tools.Enabled(cfg.ToolMode())
	if err != nil {
		return err
	}
	c.set = set

	bound, err := opts.Model.WithTools(set.Infos())
	if err != nil {
		return fmt.Errorf("bind tools to chat model failed: %w", err)
	}
	c.model = bound

	opener := opts.Opener
	if opener == nil {
		opener = executor.DBOpener{DB: db}
	}
	execOpts := []executor.Option{executor.WithLogger(c.logger)}
	if c.store != nil {
		execOpts = append(execOpts, executor.WithObserver(c.recordQuery))
	}
	c.exec = executor.New(opener, execOpts...)

	if cfg.UseHelper && !cfg.IsHelper {
		h, err := NewHelper(DeriveHelperConfig(cfg), opts.Model, c.logger)
		if err != nil {
			return fmt.Errorf("init helper agent failed: %w", err)
		}
		c.helper = h
	}

	runnable, err := buildGraph(ctx, c)
	if err != nil {
		return fmt.Errorf("build agent graph failed: %w", err)
	}
	c.runnable = runnable
	return nil
}

// Close 释放由 Controller 自己打开的数据库连接
func (c *Controller) Close() error {
	if c.ownedDB == nil {
		return nil
	}
	db := c.ownedDB
	c.ownedDB = nil
	return db.Close()
}

func (c *Controller) Config() Config { return c.cfg }

// Tools 返回当前启用的工具集合
func (c *Controller) Tools() *tools.Set { return c.set }

func (c *Controller) Metadata() dbschema.Metadata { return c.metadata }

// Helper 返回 helper Agent，未启用时为 nil
func (c *Controller) Helper() *Helper { return c.helper }

// History 返回对话历史（不含系统提示）
func (c *Controller) History() []*schema.Message { return c.conv.Messages() }

// Run 从一条输入开始驱动 Agent 循环，直到结束、交还给调用方或超过 MaxTurns。
// 返回的 error 只来自模型调用失败或存储以外的内部错误。
func (c *Controller) Run(ctx context.Context, input string) (Outcome, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	ctx = EnsureTraceID(ctx)
	c.logger.Debug("agent run started", zap.String("trace_id", GetTraceID(ctx)))

	c.turns = 0
	out, err := c.runnable.Invoke(ctx, turnState{Input: input})
	if err != nil {
		return Outcome{}, err
	}
	c.logger.Debug("agent run finished",
		zap.String("trace_id", GetTraceID(ctx)),
		zap.Stringer("status", out.Outcome.Status),
		zap.Int("turns", out.Turns),
	)
	return out.Outcome, nil
}

// ProduceResponse 追加输入（非空时）并调用一次模型，回复会被追加到历史中
func (c *Controller) ProduceResponse(ctx context.Context, input string, opts ...model.Option) (*schema.Message, error) {
	if input != "" {
		c.conv.Append(schema.UserMessage(input))
	}

	view := c.conv.View(c.tokens, c.cfg.MaxRetainedTokens)
	messages, err := c.template.Format(ctx, templateVars(c.cfg.Instructions, view))
	if err != nil {
		return nil, fmt.Errorf("format chat template failed: %w", err)
	}

	c.turns++
	reply, err := c.model.Generate(ctx, messages, opts...)
	if err != nil {
		return nil, fmt.Errorf("chat model generate failed: %w", err)
	}
	if reply == nil {
		return nil, errors.New("chat model returned no message")
	}
	if reply.Role == "" {
		reply.Role = schema.Assistant
	}

	c.appendAssistant(reply)
	if content := c.stripAddress(reply.Content); content != "" {
		c.subject = content
	}
	return reply, nil
}

// appendAssistant 追加一条 assistant 消息，并记录其中待回复的工具调用
func (c *Controller) appendAssistant(msg *schema.Message) {
	c.conv.Append(msg)
	c.pendingCalls = append([]schema.ToolCall(nil), msg.ToolCalls...)
}

// stripAddress 去掉 chat 模式下的称呼前缀，例如 ">>User 42" -> "42"
func (c *Controller) stripAddress(content string) string {
	content = strings.TrimSpace(content)
	if !c.cfg.ChatMode {
		return content
	}
	if _, rest, ok := splitAddress(content, c.cfg.prefix()); ok {
		return rest
	}
	return content
}

// splitAddress 解析 "<prefix><recipient> <rest>" 形式的称呼
func splitAddress(content, prefix string) (string, string, bool) {
	if prefix == "" {
		return "", content, false
	}
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, prefix) {
		return "", content, false
	}
	s = strings.TrimPrefix(s, prefix)
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\n' || r == '\t' || r == ':' || r == ','
	})
	if end < 0 {
		end = len(s)
	}
	recipient := s[:end]
	if recipient == "" {
		return "", content, false
	}
	rest := strings.TrimLeft(s[end:], " \t\n:,")
	return recipient, strings.TrimSpace(rest), true
}

func (c *Controller) recordQuery(ctx context.Context, r executor.Result) {
	entry := &storage.QueryLog{
		TraceID:      GetTraceID(ctx),
		Query:        r.Query,
		Kind:         r.Kind.String(),
		RowCount:     len(r.Rows),
		Truncated:    r.Truncated,
		RowsAffected: r.RowsAffected,
		DurationMS:   r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		entry.ErrorMessage = truncate(r.Err.Error(), auditTruncateLimit)
	}
	if err := c.store.InsertQueryLog(ctx, entry); err != nil {
		c.logger.Warn("failed to insert query log", zap.Error(err))
	}
}
