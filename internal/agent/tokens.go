package agent

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter 用于按 token 数截断历史中的查询结果
type TokenCounter interface {
	CountTokens(text string) int
	TruncateTokens(text string, maxTokens int) string
}

type tiktokenCounter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	defaultCounter     *tiktokenCounter
	defaultCounterOnce sync.Once
)

// DefaultTokenCounter 返回基于 cl100k_base 的计数器；
// 编码表不可用时退化为按字符估算（约 4 字符 / token）。
func DefaultTokenCounter() TokenCounter {
	defaultCounterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultCounter = &tiktokenCounter{}
			return
		}
		defaultCounter = &tiktokenCounter{encoder: enc}
	})
	return defaultCounter
}

func (c *tiktokenCounter) CountTokens(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoder.Encode(text, nil, nil))
}

func (c *tiktokenCounter) TruncateTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	if c.encoder == nil {
		limit := maxTokens * 4
		if len(text) <= limit {
			return text
		}
		return text[:limit]
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	tokens := c.encoder.Encode(text, nil, nil)
	if len(tokens) <= maxTokens {
		return text
	}
	return c.encoder.Decode(tokens[:maxTokens])
}
