package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/prompts"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// Helper 解读主 Agent 一条意图不明的回复。
// 不保存任何历史：每次 Interpret 只发送 [系统提示, 包装后的消息] 两条消息。
type Helper struct {
	cfg    Config
	model  model.ToolCallingChatModel
	set    *tools.Set
	logger *zap.Logger
}

// NewHelper 用 DeriveHelperConfig 得到的配置构造 helper，base 为未绑定工具的模型
func NewHelper(cfg Config, base model.ToolCallingChatModel, logger *zap.Logger) (*Helper, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	set, err := tools.Enabled(cfg.ToolMode())
	if err != nil {
		return nil, err
	}
	bound, err := base.WithTools(set.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind tools to helper model failed: %w", err)
	}
	return &Helper{
		cfg:    cfg,
		model:  bound,
		set:    set,
		logger: logger.Named("helper"),
	}, nil
}

func (h *Helper) Config() Config { return h.cfg }

// Tools 返回 helper 启用的工具（比主 Agent 多 pass_tool）
func (h *Helper) Tools() *tools.Set { return h.set }

// Interpret 返回 helper 对 message 的判断以及 helper 的回复。
// 没有识别出任何工具时返回空 Call 和 nil 消息。
func (h *Helper) Interpret(ctx context.Context, message string) (tools.Call, *schema.Message, error) {
	messages := []*schema.Message{
		schema.SystemMessage(h.cfg.Instructions),
		schema.UserMessage(prompts.HelperWrap(prompts.HelperFinalInstructions(), message)),
	}

	reply, err := h.model.Generate(ctx, messages)
	if err != nil {
		return tools.Call{}, nil, fmt.Errorf("helper generate failed: %w", err)
	}
	if reply == nil {
		return tools.Call{}, nil, nil
	}
	if reply.Role == "" {
		reply.Role = schema.Assistant
	}

	call, err := h.set.FromMessage(reply)
	if err != nil {
		h.logger.Debug("helper produced an invalid tool call", zap.Error(err))
		return tools.Call{}, nil, nil
	}
	if call.IsZero() {
		h.logger.Debug("helper produced no tool call")
		return tools.Call{}, nil, nil
	}

	// 只有工具名、没有参数的消息不能被当作答案
	if call.IsTerminal() && tools.IsBareToolName(message) {
		h.logger.Debug("bare tool name is not an answer, passing", zap.String("message", message))
		return passCall(call.ID)
	}
	return call, reply, nil
}

func passCall(id string) (tools.Call, *schema.Message, error) {
	call := tools.Call{ID: id, Action: tools.Pass{}}
	if id == "" {
		return call, schema.AssistantMessage(`{"request": "`+tools.PassName+`"}`, nil), nil
	}
	msg := schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: tools.PassName, Arguments: "{}"},
	}})
	return call, msg, nil
}
