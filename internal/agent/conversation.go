package agent

import (
	"github.com/cloudwego/eino/schema"
)

const truncatedSuffix = "\n... (earlier query result truncated)"

type turn struct {
	msg *schema.Message
	// queryResult 标记 run_query 的结果，MaxRetainedTokens 只作用于这类轮次
	queryResult bool
}

// Conversation 是 Controller 独占的对话历史（不含系统提示）。
// 只允许追加，唯一的删除操作是 DeleteLast。
type Conversation struct {
	turns []turn
}

func NewConversation() *Conversation {
	return &Conversation{}
}

func (c *Conversation) Append(msg *schema.Message) {
	if msg == nil {
		return
	}
	c.turns = append(c.turns, turn{msg: msg})
}

// AppendQueryResult 追加一条 run_query 结果
func (c *Conversation) AppendQueryResult(msg *schema.Message) {
	if msg == nil {
		return
	}
	c.turns = append(c.turns, turn{msg: msg, queryResult: true})
}

func (c *Conversation) Len() int {
	return len(c.turns)
}

// Messages 返回历史的浅拷贝
func (c *Conversation) Messages() []*schema.Message {
	out := make([]*schema.Message, 0, len(c.turns))
	for _, t := range c.turns {
		out = append(out, t.msg)
	}
	return out
}

// Last 返回最后一条消息，历史为空时返回 nil
func (c *Conversation) Last() *schema.Message {
	if len(c.turns) == 0 {
		return nil
	}
	return c.turns[len(c.turns)-1].msg
}

// DeleteLast 删除最近一条指定角色的消息，返回是否删除
func (c *Conversation) DeleteLast(role schema.RoleType) bool {
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].msg.Role == role {
			c.turns = append(c.turns[:i], c.turns[i+1:]...)
			return true
		}
	}
	return false
}

// View 返回交给模型的历史。maxTokens > 0 时，除最近一条外的查询结果
// 都被截断到 maxTokens 个 token；存储的消息本身不被修改。
func (c *Conversation) View(counter TokenCounter, maxTokens int) []*schema.Message {
	out := c.Messages()
	if maxTokens <= 0 || counter == nil {
		return out
	}

	latest := -1
	for i := len(c.turns) - 1; i >= 0; i-- {
		if c.turns[i].queryResult {
			latest = i
			break
		}
	}
	for i, t := range c.turns {
		if !t.queryResult || i == latest {
			continue
		}
		if counter.CountTokens(t.msg.Content) <= maxTokens {
			continue
		}
		cp := *t.msg
		cp.Content = counter.TruncateTokens(t.msg.Content, maxTokens) + truncatedSuffix
		out[i] = &cp
	}
	return out
}
