package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/agent"
	"github.com/wwwzy/SQLChatAgent/internal/config"
	"github.com/wwwzy/SQLChatAgent/internal/executor"
	"github.com/wwwzy/SQLChatAgent/internal/storage"
)

// session 聚合一次命令运行所需的资源
type session struct {
	ctrl  *agent.Controller
	db    *sqlx.DB
	store *storage.Storage
}

// openSession 打开目标数据库与审计库，构造模型和主 Agent
func openSession(ctx context.Context, c *config.Config, chatMode bool, log *zap.Logger) (*session, error) {
	if err := c.ValidateArk(); err != nil {
		return nil, err
	}

	descriptions, err := c.ContextDescriptions()
	if err != nil {
		return nil, fmt.Errorf("加载表描述失败: %w", err)
	}

	db, err := openTargetDB(ctx, c.Database)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, c.Storage)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("打开审计库失败: %w", err)
	}

	chatModel, err := agent.NewChatModel(ctx, c.Ark)
	if err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, err
	}

	acfg := agentConfig(c.Agent)
	acfg.ChatMode = acfg.ChatMode || chatMode

	ctrl, err := agent.New(ctx, agent.Options{
		Config:   acfg,
		Model:    chatModel,
		DB:       db,
		Metadata: descriptions,
		Store:    store,
		Logger:   log,
	})
	if err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, fmt.Errorf("初始化 Agent 失败: %w", err)
	}
	return &session{ctrl: ctrl, db: db, store: store}, nil
}

func (s *session) Close() {
	_ = s.ctrl.Close()
	_ = s.store.Close()
	_ = s.db.Close()
}

func openTargetDB(ctx context.Context, dc config.DatabaseConfig) (*sqlx.DB, error) {
	if dc.URI == "" {
		return nil, fmt.Errorf("database.uri 未配置: %w", agent.ErrNoDatabase)
	}
	db, err := sqlx.Open(dc.Driver, dc.URI)
	if err != nil {
		return nil, fmt.Errorf("打开目标数据库失败: %w", err)
	}
	if dc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(dc.MaxOpenConns)
	}
	if err := executor.Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接目标数据库失败: %w", err)
	}
	return db, nil
}

func agentConfig(ac config.AgentConfig) agent.Config {
	return agent.Config{
		ChatMode:          ac.ChatMode,
		UseSchemaTools:    ac.UseSchemaTools,
		MultiSchema:       ac.MultiSchema,
		UseHelper:         ac.UseHelper,
		StrictRecovery:    ac.StrictRecovery,
		MaxResultRows:     ac.MaxResultRows,
		MaxRetainedTokens: ac.MaxRetainedTokens,
		MaxTurns:          ac.MaxTurns,
		AddressingPrefix:  ac.AddressingPrefix,
	}
}

// signalContext 在收到 SIGINT / SIGTERM 时取消
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}

func newTraceID() string { return uuid.New().String() }
