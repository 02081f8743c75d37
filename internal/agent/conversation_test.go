package agent

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_DeleteLastRemovesMostRecentOfRole(t *testing.T) {
	c := NewConversation()
	c.Append(schema.UserMessage("q1"))
	c.Append(schema.AssistantMessage("a1", nil))
	c.Append(schema.UserMessage("q2"))
	c.Append(schema.AssistantMessage("a2", nil))

	require.True(t, c.DeleteLast(schema.User))
	msgs := c.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "q1", msgs[0].Content)
	assert.Equal(t, "a2", c.Last().Content)

	assert.False(t, NewConversation().DeleteLast(schema.User))
	assert.Nil(t, NewConversation().Last())
}

func TestConversation_ViewTruncatesOlderQueryResults(t *testing.T) {
	c := NewConversation()
	c.Append(schema.UserMessage("one two three four five six"))
	c.AppendQueryResult(schema.ToolMessage("r1 r2 r3 r4 r5 r6", "a"))
	c.AppendQueryResult(schema.ToolMessage("s1 s2 s3 s4 s5 s6", "b"))

	view := c.View(wordCounter{}, 2)
	require.Len(t, view, 3)
	assert.Equal(t, "one two three four five six", view[0].Content)
	assert.Equal(t, "r1 r2"+truncatedSuffix, view[1].Content)
	assert.Equal(t, "a", view[1].ToolCallID)
	assert.Equal(t, "s1 s2 s3 s4 s5 s6", view[2].Content)

	// 存储的消息不被修改
	assert.Equal(t, "r1 r2 r3 r4 r5 r6", c.Messages()[1].Content)

	unlimited := c.View(wordCounter{}, 0)
	assert.Equal(t, "r1 r2 r3 r4 r5 r6", unlimited[1].Content)
}

func TestSanitizeToolCalls(t *testing.T) {
	bad := toolCallMsg("x", "run_query", "{")
	good := toolCallMsg("y", "run_query", `{"query": "SELECT 1"}`)
	in := []*schema.Message{schema.UserMessage("q"), bad, good}

	out := sanitizeToolCalls(in)
	assert.Equal(t, "{}", out[1].ToolCalls[0].Function.Arguments)
	assert.Same(t, good, out[2])
	assert.Equal(t, "{", bad.ToolCalls[0].Function.Arguments)
	assert.Same(t, in[0], out[0])
}

func TestSplitAddress(t *testing.T) {
	cases := []struct {
		in        string
		recipient string
		rest      string
		ok        bool
	}{
		{">>User 42", "User", "42", true},
		{"  >>User: there are 2 orders\nthanks", "User", "there are 2 orders\nthanks", true},
		{">>User", "User", "", true},
		{"no prefix here", "", "no prefix here", false},
		{">> User hi", "", ">> User hi", false},
	}
	for _, tc := range cases {
		recipient, rest, ok := splitAddress(tc.in, ">>")
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.recipient, recipient, tc.in)
		assert.Equal(t, tc.rest, rest, tc.in)
	}
}
