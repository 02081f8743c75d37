package ui

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/SQLChatAgent/internal/agent"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// ChatBackend 是对话界面依赖的 Agent 能力，*agent.Controller 实现了它
type ChatBackend interface {
	Run(ctx context.Context, input string) (agent.Outcome, error)
	History() []*schema.Message
}

type ChatUI interface {
	Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error
}

type ChatOptions struct {
	// ShowSQL 在回答前显示本轮执行过的 SQL
	ShowSQL bool
}

// FormatOutcome 把一次 Run 的结果转成展示给用户的文本
func FormatOutcome(out agent.Outcome) string {
	content := strings.TrimSpace(out.Content)
	switch out.Status {
	case agent.StatusMaxTurns:
		if content == "" {
			return "(已达到最大轮数，未得到答案)"
		}
		return "(已达到最大轮数) " + content
	default:
		if content == "" {
			return "(无文本输出)"
		}
		return content
	}
}

// QueriesSince 返回 history[from:] 中模型通过 run_query 提交的 SQL
func QueriesSince(history []*schema.Message, from int) []string {
	if from < 0 {
		from = 0
	}
	var out []string
	for i := from; i < len(history); i++ {
		msg := history[i]
		if msg == nil || msg.Role != schema.Assistant {
			continue
		}
		for _, tc := range msg.ToolCalls {
			if tc.Function.Name != tools.RunQueryName {
				continue
			}
			var args tools.RunQuery
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				continue
			}
			if q := strings.TrimSpace(args.Query); q != "" {
				out = append(out, q)
			}
		}
	}
	return out
}
