package prompts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuild_InlineSchemaTaskMode(t *testing.T) {
	out := Build(Options{
		Dialect:    "sqlite",
		SchemaJSON: `{"orders": {"description": "Orders"}}`,
	})

	assert.Contains(t, out, "querying a sqlite database")
	assert.Contains(t, out, `{"orders": {"description": "Orders"}}`)
	assert.Contains(t, out, "use the `done_tool` with `content` set to the answer")
	assert.NotContains(t, out, "get_table_names")
	assert.NotContains(t, out, "{mode}")
	assert.NotContains(t, out, "User (NO SPACE")
}

func TestBuild_SchemaToolsChatMode(t *testing.T) {
	out := Build(Options{
		Dialect:     "postgresql",
		SchemaJSON:  `{"secret": {}}`,
		SchemaTools: true,
		MultiSchema: true,
		ChatMode:    true,
	})

	assert.Contains(t, out, "interacting with a postgresql database")
	assert.Contains(t, out, "`get_table_names`")
	assert.Contains(t, out, "schema_name.table_name")
	assert.NotContains(t, out, "secret", "schema is discovered with tools, not inlined")
	assert.Contains(t, out, "using >>User (NO SPACE between >> and User)")
	assert.NotContains(t, out, "done_tool")
}

func TestBuild_CustomPrefix(t *testing.T) {
	out := Build(Options{Dialect: "mysql", ChatMode: true, AddressingPrefix: "@@"})
	assert.Contains(t, out, "EXACT syntax @@User")
}

func TestHelperInstructions(t *testing.T) {
	primary := Build(Options{Dialect: "sqlite"})
	out := HelperInstructions(primary)
	assert.Contains(t, out, "===== AGENT INSTRUCTIONS =====\n"+primary)

	final := HelperFinalInstructions()
	assert.Contains(t, final, "you must use the TOOL `done_pass_tool`")
	assert.Contains(t, final, "`pass_tool`")

	wrapped := HelperWrap(final, "The answer is 42")
	assert.Contains(t, wrapped, "=== AGENT MESSAGE =========\nThe answer is 42\n=== END OF AGENT MESSAGE ===")
}

func TestClarification_ListsEnabledTools(t *testing.T) {
	out := Clarification(false, true, "run_query, forward_tool, get_table_names")
	assert.Contains(t, out, "Your available TOOLs are: run_query, forward_tool, get_table_names")
	assert.Contains(t, out, "`done_pass_tool`")
	assert.Contains(t, out, "schema tools")

	out = Clarification(true, false, "run_query, forward_tool")
	assert.Contains(t, out, "`forward_tool`")
	assert.NotContains(t, out, "schema tools")
}

func TestToolResult(t *testing.T) {
	out := ToolResult("(1, 'a')", false, "", "run_query, done_tool")
	assert.Contains(t, out, "==== result ====\n(1, 'a')\n================")
	assert.Contains(t, out, "`done_tool` with the `content`")
	assert.Contains(t, out, "run_query, done_tool")

	out = ToolResult("x", true, "", "run_query")
	assert.Contains(t, out, "addressing prefix >>")
}

func TestRetryQuery(t *testing.T) {
	out := RetryQuery("SELEC 1", errors.New("syntax error").Error(), `{"t": {}}`)
	assert.Contains(t, out, "There was an error in your SQL Query: 'SELEC 1'\nsyntax error")
	assert.Contains(t, out, `{"t": {}}`)

	out = RetryQuery("SELEC 1", "syntax error", "")
	assert.NotContains(t, out, "```json")
}

func TestInvalidArguments(t *testing.T) {
	out := InvalidArguments("run_query", []string{"query is required", "x"})
	assert.Contains(t, out, "- query is required\n- x")
}
