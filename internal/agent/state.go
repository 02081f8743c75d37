package agent

import (
	"github.com/cloudwego/eino/schema"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// turnState 是在 Graph 中流转的状态。
// 对话历史由 Controller 持有，这里只放本次 Run 的信号字段。
type turnState struct {
	// Input 为本次 Run 的用户输入，第一次调用模型后清空
	Input string

	// Reply 为本轮模型的回复
	Reply *schema.Message
	// Call 为本轮最终被采纳的工具调用（可能来自 strict / helper / 合成）
	Call tools.Call

	Outcome Outcome
	// Turns 为已调用模型的次数
	Turns int
}
