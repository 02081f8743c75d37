package agent

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// modelCall 记录一次 Generate 调用
type modelCall struct {
	tools    []string
	messages []*schema.Message
	options  *model.Options
}

func (c modelCall) isHelper() bool {
	for _, name := range c.tools {
		if name == tools.PassName {
			return true
		}
	}
	return false
}

func (c modelCall) lastContent() string {
	if len(c.messages) == 0 {
		return ""
	}
	return c.messages[len(c.messages)-1].Content
}

type callLog struct {
	mu    sync.Mutex
	calls []modelCall
}

func (l *callLog) all() []modelCall {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]modelCall(nil), l.calls...)
}

func (l *callLog) primary() []modelCall {
	var out []modelCall
	for _, c := range l.all() {
		if !c.isHelper() {
			out = append(out, c)
		}
	}
	return out
}

func (l *callLog) helper() []modelCall {
	var out []modelCall
	for _, c := range l.all() {
		if c.isHelper() {
			out = append(out, c)
		}
	}
	return out
}

// fakeModel 按脚本回复：主 Agent 依次取 primary 中的回复（用完后重复最后一条），
// helper（绑定了 pass_tool）由 helper 函数根据包装后的消息决定。
type fakeModel struct {
	log   *callLog
	state *fakeScript
	tools []*schema.ToolInfo
}

type fakeScript struct {
	mu      sync.Mutex
	primary []*schema.Message
	next    int
	helper  func(wrapped string) *schema.Message
}

func newFakeModel(primary []*schema.Message, helper func(string) *schema.Message) (*fakeModel, *callLog) {
	log := &callLog{}
	return &fakeModel{log: log, state: &fakeScript{primary: primary, helper: helper}}, log
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	names := make([]string, 0, len(m.tools))
	for _, ti := range m.tools {
		names = append(names, ti.Name)
	}
	call := modelCall{
		tools:    names,
		messages: append([]*schema.Message(nil), input...),
		options:  model.GetCommonOptions(nil, opts...),
	}
	m.log.mu.Lock()
	m.log.calls = append(m.log.calls, call)
	m.log.mu.Unlock()

	s := m.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.isHelper() {
		if s.helper == nil {
			return schema.AssistantMessage("no idea", nil), nil
		}
		return s.helper(call.lastContent()), nil
	}
	if len(s.primary) == 0 {
		return nil, errors.New("no scripted reply")
	}
	idx := s.next
	if idx >= len(s.primary) {
		idx = len(s.primary) - 1
	}
	s.next++
	// 复制一份，避免同一指针在历史中出现多次
	reply := *s.primary[idx]
	return &reply, nil
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported")
}

func (m *fakeModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	cp := *m
	cp.tools = infos
	return &cp, nil
}

func toolCallMsg(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       id,
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})
}

func textMsg(content string) *schema.Message {
	return schema.AssistantMessage(content, nil)
}

// wordCounter 以空白分词计数，避免测试下载编码表
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int { return len(strings.Fields(text)) }

func (wordCounter) TruncateTokens(text string, maxTokens int) string {
	words := strings.Fields(text)
	if len(words) <= maxTokens {
		return text
	}
	return strings.Join(words[:maxTokens], " ")
}

func openShopDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite", filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range []string{
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, amount REAL)`,
		`INSERT INTO orders (id, amount) VALUES (1, 10.5), (2, 20.25)`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}
