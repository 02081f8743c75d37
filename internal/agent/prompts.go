package agent

import (
	"encoding/json"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

const (
	instructionsKey = "instructions"
	historyKey      = "history"
)

// NewChatTemplate 组装 "系统提示 + 历史"。
// 两部分都以消息占位符注入，系统提示中的 JSON 不会被 FString 当作变量。
func NewChatTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(schema.FString,
		schema.MessagesPlaceholder(instructionsKey, false),
		schema.MessagesPlaceholder(historyKey, true),
	)
}

func templateVars(instructions string, history []*schema.Message) map[string]any {
	return map[string]any{
		instructionsKey: []*schema.Message{schema.SystemMessage(instructions)},
		historyKey:      sanitizeToolCalls(history),
	}
}

// sanitizeToolCalls 把历史中无法解析的工具参数替换为 "{}"，
// 否则部分模型服务会拒绝整个请求。原消息不被修改。
func sanitizeToolCalls(input []*schema.Message) []*schema.Message {
	sanitized := input
	changed := false
	for i, m := range input {
		if m == nil || m.Role != schema.Assistant || len(m.ToolCalls) == 0 {
			continue
		}
		var newToolCalls []schema.ToolCall
		for j := range m.ToolCalls {
			args := strings.TrimSpace(m.ToolCalls[j].Function.Arguments)
			if args != "" && args != "null" && json.Valid([]byte(args)) {
				continue
			}
			if newToolCalls == nil {
				newToolCalls = append([]schema.ToolCall(nil), m.ToolCalls...)
			}
			newToolCalls[j].Function.Arguments = "{}"
		}
		if newToolCalls == nil {
			continue
		}
		if !changed {
			sanitized = append([]*schema.Message(nil), input...)
			changed = true
		}
		nm := *m
		nm.ToolCalls = newToolCalls
		sanitized[i] = &nm
	}
	return sanitized
}
