package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbschema "github.com/wwwzy/SQLChatAgent/internal/schema"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

func newTestHelper(t *testing.T, reply func(string) *schema.Message) (*Helper, *callLog) {
	t.Helper()
	m, log := newFakeModel(nil, reply)
	md := dbschema.Metadata{"orders": {Description: "customer orders", Columns: map[string]string{"id": "INTEGER"}}}
	primary := ResolveConfig(Config{Dialect: dbschema.DialectSQLite, UseHelper: true}, md)
	h, err := NewHelper(DeriveHelperConfig(primary), m, nil)
	require.NoError(t, err)
	return h, log
}

func TestHelper_ToolSet(t *testing.T) {
	h, _ := newTestHelper(t, nil)
	assert.Equal(t, []string{
		tools.RunQueryName, tools.ForwardName, tools.DoneName, tools.DonePassName, tools.PassName,
	}, h.Tools().Names())
	assert.True(t, h.Config().IsHelper)
	assert.False(t, h.Config().ChatMode)
}

func TestHelper_CallsAreIndependent(t *testing.T) {
	h, log := newTestHelper(t, func(wrapped string) *schema.Message {
		switch {
		case strings.Contains(wrapped, "The answer is 42"):
			return toolCallMsg("h", tools.DonePassName, `{}`)
		case strings.Contains(wrapped, "orders table"):
			return toolCallMsg("h", tools.RunQueryName, `{"query": "SELECT COUNT(*) FROM orders"}`)
		default:
			return textMsg("?")
		}
	})
	ctx := context.Background()

	first, _, err := h.Interpret(ctx, "The answer is 42")
	require.NoError(t, err)
	second, _, err := h.Interpret(ctx, "I should count rows in the orders table")
	require.NoError(t, err)
	third, _, err := h.Interpret(ctx, "The answer is 42")
	require.NoError(t, err)

	assert.Equal(t, tools.DonePass{}, first.Action)
	assert.Equal(t, tools.RunQuery{Query: "SELECT COUNT(*) FROM orders"}, second.Action)
	assert.Equal(t, first, third)

	calls := log.all()
	require.Len(t, calls, 3)
	for _, c := range calls {
		require.Len(t, c.messages, 2)
		assert.Equal(t, schema.System, c.messages[0].Role)
		assert.Equal(t, h.Config().Instructions, c.messages[0].Content)
		assert.Equal(t, schema.User, c.messages[1].Role)
	}
	assert.NotContains(t, calls[1].messages[1].Content, "The answer is 42")
	assert.NotContains(t, calls[2].messages[1].Content, "orders table")
}

func TestHelper_AnswerIsNotPassed(t *testing.T) {
	h, _ := newTestHelper(t, func(string) *schema.Message {
		return toolCallMsg("h", tools.DonePassName, `{}`)
	})
	call, msg, err := h.Interpret(context.Background(), "The answer is 42")
	require.NoError(t, err)
	assert.Equal(t, tools.DonePass{}, call.Action)
	assert.NotNil(t, msg)
}

func TestHelper_BareToolNameIsNeverAnAnswer(t *testing.T) {
	h, _ := newTestHelper(t, func(string) *schema.Message {
		return toolCallMsg("h", tools.DoneName, `{"content": "run_query"}`)
	})
	for _, msg := range []string{"run_query", "`done_tool`", " RUN_QUERY. "} {
		call, reply, err := h.Interpret(context.Background(), msg)
		require.NoError(t, err)
		assert.Equal(t, tools.Pass{}, call.Action, msg)
		require.NotNil(t, reply)
		require.Len(t, reply.ToolCalls, 1)
		assert.Equal(t, tools.PassName, reply.ToolCalls[0].Function.Name)
		assert.Equal(t, "h", reply.ToolCalls[0].ID)
	}
}

func TestHelper_BareToolNameBestGuessQuery(t *testing.T) {
	h, _ := newTestHelper(t, func(string) *schema.Message {
		return toolCallMsg("h", tools.RunQueryName, `{"query": "SELECT * FROM orders"}`)
	})
	call, _, err := h.Interpret(context.Background(), "run_query")
	require.NoError(t, err)
	assert.Equal(t, tools.RunQuery{Query: "SELECT * FROM orders"}, call.Action)
}

func TestHelper_NothingRecognized(t *testing.T) {
	h, _ := newTestHelper(t, func(string) *schema.Message {
		return textMsg("I cannot tell")
	})
	call, msg, err := h.Interpret(context.Background(), "blah")
	require.NoError(t, err)
	assert.True(t, call.IsZero())
	assert.Nil(t, msg)
}

func TestDeriveHelperConfig(t *testing.T) {
	primary := ResolveConfig(Config{
		ChatMode:       true,
		UseSchemaTools: true,
		UseHelper:      true,
		MaxResultRows:  10,
		Dialect:        dbschema.DialectPostgreSQL,
	}, dbschema.Metadata{})

	helper := DeriveHelperConfig(primary)
	assert.True(t, helper.IsHelper)
	assert.False(t, helper.UseHelper)
	assert.False(t, helper.ChatMode)
	assert.True(t, helper.UseSchemaTools)
	assert.Equal(t, 10, helper.MaxResultRows)
	assert.Contains(t, helper.Instructions, primary.Instructions)
	assert.Contains(t, helper.Instructions, "`pass_tool`")

	// primary 本身不受影响
	assert.True(t, primary.ChatMode)
	assert.False(t, primary.IsHelper)
	assert.Equal(t, tools.Mode{UseSchemaTools: true, IsHelper: true}, helper.ToolMode())
}
