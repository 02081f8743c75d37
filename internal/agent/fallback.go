package agent

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/prompts"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// Path 表示无法识别的回复走了哪条恢复路径
type Path string

const (
	PathForward Path = "forward"
	PathStrict  Path = "strict"
	PathHelper  Path = "helper"
	PathClarify Path = "clarify"
)

// Resolution 是 HandleUnrecognized 的结果。
// Call 为空表示已追加澄清消息，循环继续即可。
type Resolution struct {
	Call tools.Call
	// Message 为被采纳的回复（strict 重新生成的回复或 helper 的回复）
	Message *schema.Message
	Path    Path
	// Err 为 strict 回复中的工具参数错误，需要以文本回复给模型
	Err error
}

// HandleUnrecognized 处理没有解析出工具调用的 assistant 回复。优先级固定为：
//
//	chat 模式 > strict 重新生成 > helper 解读 > 澄清消息
//
// strict 或 helper 没有得到可用的工具调用时，继续尝试下一条路径。
func (c *Controller) HandleUnrecognized(ctx context.Context, msg *schema.Message) (Resolution, error) {
	content := ""
	if msg != nil {
		content = msg.Content
	}

	if c.cfg.ChatMode {
		recipient, _, ok := splitAddress(content, c.cfg.prefix())
		if !ok {
			recipient = tools.UserRecipient
		}
		c.logger.Debug("unrecognized reply forwarded", zap.String("recipient", recipient))
		return Resolution{
			Call: tools.Call{Action: tools.Forward{Agent: recipient}},
			Path: PathForward,
		}, nil
	}

	// strict 重新生成计入 MaxTurns，额度用完时直接走后面的路径
	if c.cfg.StrictRecovery && c.turns < c.cfg.maxTurns() {
		res, ok, err := c.strictRecover(ctx)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			return res, nil
		}
	}

	if c.helper != nil {
		call, reply, err := c.helper.Interpret(ctx, content)
		if err != nil {
			return Resolution{}, err
		}
		if !call.IsZero() {
			if reply != nil {
				c.appendAssistant(reply)
			}
			c.logger.Debug("helper interpreted reply", zap.String("tool", call.Name()))
			return Resolution{Call: call, Message: reply, Path: PathHelper}, nil
		}
	}

	c.conv.Append(schema.UserMessage(
		prompts.Clarification(c.cfg.ChatMode, c.cfg.UseSchemaTools, c.set.NamesString()),
	))
	c.logger.Debug("unrecognized reply, clarification appended")
	return Resolution{Path: PathClarify}, nil
}

// strictRecover 以强制工具调用的方式重新生成一次回复，随后从历史中删掉恢复提示
func (c *Controller) strictRecover(ctx context.Context) (Resolution, bool, error) {
	reply, err := c.ProduceResponse(ctx,
		prompts.StrictRecovery(c.set.NamesString()),
		model.WithToolChoice(schema.ToolChoiceForced),
	)
	c.conv.DeleteLast(schema.User)
	if err != nil {
		return Resolution{}, false, err
	}

	call, err := c.set.FromMessage(reply)
	if err != nil {
		return Resolution{Call: call, Message: reply, Path: PathStrict, Err: err}, true, nil
	}
	if call.IsZero() {
		c.logger.Debug("strict recovery produced no tool call")
		return Resolution{}, false, nil
	}
	return Resolution{Call: call, Message: reply, Path: PathStrict}, true, nil
}
