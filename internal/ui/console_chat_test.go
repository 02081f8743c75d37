package ui

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wwwzy/SQLChatAgent/internal/agent"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

type fakeBackend struct {
	history  []*schema.Message
	inputs   []string
	traceIDs []string
	reply    func(input string) (agent.Outcome, []*schema.Message, error)
}

func (b *fakeBackend) Run(ctx context.Context, input string) (agent.Outcome, error) {
	b.inputs = append(b.inputs, input)
	b.traceIDs = append(b.traceIDs, agent.GetTraceID(ctx))
	out, msgs, err := b.reply(input)
	b.history = append(b.history, msgs...)
	return out, err
}

func (b *fakeBackend) History() []*schema.Message { return b.history }

func runQueryMsg(query string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{{
		ID:       "call-1",
		Function: schema.FunctionCall{Name: tools.RunQueryName, Arguments: `{"query":"` + query + `"}`},
	}})
}

func TestConsoleChatUI_AnswersUntilExit(t *testing.T) {
	backend := &fakeBackend{reply: func(input string) (agent.Outcome, []*schema.Message, error) {
		return agent.Outcome{Status: agent.StatusForwarded, Content: "共 2 条订单", Recipient: tools.UserRecipient},
			[]*schema.Message{schema.UserMessage(input), runQueryMsg("SELECT COUNT(*) FROM orders")}, nil
	}}

	var out bytes.Buffer
	u := &ConsoleChatUI{In: strings.NewReader("\n有多少订单？\nquit\n"), Out: &out}
	require.NoError(t, u.Run(context.Background(), backend, ChatOptions{ShowSQL: true}))

	assert.Equal(t, []string{"有多少订单？"}, backend.inputs)
	require.Len(t, backend.traceIDs, 1)
	assert.NotEmpty(t, backend.traceIDs[0])
	assert.Contains(t, out.String(), "SQL: SELECT COUNT(*) FROM orders")
	assert.Contains(t, out.String(), "助手: 共 2 条订单")
	assert.Contains(t, out.String(), "已退出。")
}

func TestConsoleChatUI_ErrorDoesNotStopLoop(t *testing.T) {
	calls := 0
	backend := &fakeBackend{reply: func(input string) (agent.Outcome, []*schema.Message, error) {
		calls++
		if calls == 1 {
			return agent.Outcome{}, nil, errors.New("model unavailable")
		}
		return agent.Outcome{Status: agent.StatusDone, Content: "ok"}, nil, nil
	}}

	var out bytes.Buffer
	u := &ConsoleChatUI{In: strings.NewReader("a\nb"), Out: &out}
	require.NoError(t, u.Run(context.Background(), backend, ChatOptions{}))

	assert.Equal(t, []string{"a", "b"}, backend.inputs)
	assert.Contains(t, out.String(), "发生错误：model unavailable")
	assert.Contains(t, out.String(), "助手: ok")
	assert.NotContains(t, out.String(), "SQL:")
	assert.NotEqual(t, backend.traceIDs[0], backend.traceIDs[1])
}

func TestConsoleChatUI_RequiresIO(t *testing.T) {
	u := &ConsoleChatUI{Out: &bytes.Buffer{}}
	assert.Error(t, u.Run(context.Background(), &fakeBackend{}, ChatOptions{}))
}

func TestFormatOutcome(t *testing.T) {
	assert.Equal(t, "42", FormatOutcome(agent.Outcome{Status: agent.StatusDone, Content: " 42 "}))
	assert.Equal(t, "(无文本输出)", FormatOutcome(agent.Outcome{Status: agent.StatusPassed}))
	assert.Equal(t, "(已达到最大轮数) partial", FormatOutcome(agent.Outcome{Status: agent.StatusMaxTurns, Content: "partial"}))
	assert.Equal(t, "(已达到最大轮数，未得到答案)", FormatOutcome(agent.Outcome{Status: agent.StatusMaxTurns}))
}

func TestQueriesSince(t *testing.T) {
	history := []*schema.Message{
		runQueryMsg("SELECT 1"),
		schema.ToolMessage("1", "call-1"),
		schema.AssistantMessage("", []schema.ToolCall{{ID: "x", Function: schema.FunctionCall{Name: tools.RunQueryName, Arguments: "not json"}}}),
		runQueryMsg("SELECT 2"),
		schema.AssistantMessage("", []schema.ToolCall{{ID: "y", Function: schema.FunctionCall{Name: tools.GetTableNamesName, Arguments: "{}"}}}),
	}
	assert.Equal(t, []string{"SELECT 1", "SELECT 2"}, QueriesSince(history, 0))
	assert.Equal(t, []string{"SELECT 2"}, QueriesSince(history, 1))
	assert.Nil(t, QueriesSince(history, 5))
}
