package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/executor"
	"github.com/wwwzy/SQLChatAgent/internal/prompts"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// Status 表示一次工具分发之后循环该如何继续
type Status int

const (
	// StatusContinue 结果已追加到历史，继续调用模型
	StatusContinue Status = iota
	// StatusDone 由 done_tool / done_pass_tool 结束
	StatusDone
	// StatusForwarded 转交给指定接收方（chat 模式下为 User）
	StatusForwarded
	// StatusPassed 原样传出上一条回复
	StatusPassed
	// StatusMaxTurns 超过允许的模型调用次数
	StatusMaxTurns
)

func (s Status) String() string {
	switch s {
	case StatusContinue:
		return "continue"
	case StatusDone:
		return "done"
	case StatusForwarded:
		return "forwarded"
	case StatusPassed:
		return "passed"
	case StatusMaxTurns:
		return "max_turns"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome 是一次分发（或一次 Run）的结果
type Outcome struct {
	Status Status
	// Content 为返回给调用方的文本；Continue 时为追加到历史中的工具结果
	Content string
	// Recipient 仅在 StatusForwarded 时有值
	Recipient string
	// Result 为 run_query 的执行结果
	Result *executor.Result
}

// Terminal 报告循环是否应当停止
func (o Outcome) Terminal() bool {
	return o.Status != StatusContinue
}

// 审计记录中的调用来源
const (
	SourceModel       = "model"
	SourceHelper      = "helper"
	SourceStrict      = "strict"
	SourceSynthesized = "synthesized"
)

const ignoredToolCallText = "ignored: only one tool call is handled per turn"

// Handle 分发一个工具调用。工具不可用、表名或列名无效等情况以文本形式
// 追加到历史中，不作为 error 返回。
func (c *Controller) Handle(ctx context.Context, call tools.Call) (Outcome, error) {
	return c.handle(ctx, call, SourceModel)
}

func (c *Controller) handle(ctx context.Context, call tools.Call, source string) (Outcome, error) {
	if call.IsZero() {
		return Outcome{}, errors.New("agent: empty tool call")
	}
	// pass_tool 只由 helper 产生，主 Agent 总是接受
	if _, isPass := call.Action.(tools.Pass); !isPass && !c.set.Has(call.Name()) {
		text := prompts.UnavailableTool(call.Name(), c.set.NamesString())
		c.respond(call, text, false)
		return Outcome{Status: StatusContinue, Content: text}, nil
	}

	var out Outcome
	c.audited(ctx, call, source, func() (string, error) {
		out = c.dispatch(ctx, call)
		if out.Result != nil && out.Result.Kind == executor.KindFailure {
			return out.Content, out.Result.Err
		}
		return out.Content, nil
	})
	return out, nil
}

func (c *Controller) dispatch(ctx context.Context, call tools.Call) Outcome {
	switch a := call.Action.(type) {
	case tools.RunQuery:
		return c.runQuery(ctx, call, a)
	case tools.GetTableNames:
		text := strings.Join(c.metadata.TableNames(), ", ")
		c.respond(call, text, false)
		return Outcome{Status: StatusContinue, Content: text}
	case tools.GetTableSchema:
		text := c.tableSchema(a.Tables)
		c.respond(call, text, false)
		return Outcome{Status: StatusContinue, Content: text}
	case tools.GetColumnDescriptions:
		text := c.columnDescriptions(a.Table, a.Columns)
		c.respond(call, text, false)
		return Outcome{Status: StatusContinue, Content: text}
	case tools.Forward:
		recipient := a.Agent
		if recipient == "" {
			recipient = tools.UserRecipient
		}
		c.ack(call, "forwarded to "+recipient)
		return Outcome{Status: StatusForwarded, Content: c.subject, Recipient: recipient}
	case tools.Pass:
		c.ack(call, "passed")
		return Outcome{Status: StatusPassed, Content: c.subject}
	case tools.Done:
		c.ack(call, "done")
		return Outcome{Status: StatusDone, Content: a.Content}
	case tools.DonePass:
		c.ack(call, "done")
		return Outcome{Status: StatusDone, Content: c.subject}
	default:
		text := prompts.UnavailableTool(call.Name(), c.set.NamesString())
		c.respond(call, text, false)
		return Outcome{Status: StatusContinue, Content: text}
	}
}

func (c *Controller) runQuery(ctx context.Context, call tools.Call, a tools.RunQuery) Outcome {
	res := c.exec.Execute(ctx, a.Query, c.cfg.MaxResultRows)

	var result string
	if res.Kind == executor.KindFailure {
		schemaJSON := ""
		if !c.cfg.UseSchemaTools {
			schemaJSON = c.metadata.JSON()
		}
		result = prompts.RetryQuery(a.Query, executor.Format(res), schemaJSON)
	} else {
		result = executor.Format(res)
		if res.Truncated {
			result += fmt.Sprintf("\n(showing the first %d of %d rows)", len(res.Rows), res.TotalRows)
		}
	}
	// 失败时同样附上回答方式和可用工具
	text := prompts.ToolResult(result, c.cfg.ChatMode, c.cfg.prefix(), c.set.NamesString())
	c.respond(call, text, true)
	return Outcome{Status: StatusContinue, Content: text, Result: &res}
}

func (c *Controller) tableSchema(tables []string) string {
	lines := make([]string, 0, len(tables))
	for _, name := range tables {
		name = strings.TrimSpace(name)
		desc, ok := c.metadata.Lookup(name)
		if !ok {
			lines = append(lines, fmt.Sprintf("%s is not a valid table name.", name))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", name, desc.JSON()))
	}
	return strings.Join(lines, "\n")
}

func (c *Controller) columnDescriptions(table, columns string) string {
	table = strings.TrimSpace(table)
	if _, ok := c.metadata.Lookup(table); !ok {
		return fmt.Sprintf("%s is not a valid table name.", table)
	}
	var b strings.Builder
	b.WriteString("\nTABLE: ")
	b.WriteString(table)
	for _, col := range strings.Split(columns, ",") {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		desc, ok := c.metadata.ColumnDescription(table, col)
		if !ok {
			fmt.Fprintf(&b, "\n%s is not a valid column name in table %s.", col, table)
			continue
		}
		fmt.Fprintf(&b, "\n%s => %s", col, desc)
	}
	return b.String()
}

// rejectCall 处理参数校验失败或未启用的工具
func (c *Controller) rejectCall(call tools.Call, err error) Outcome {
	var (
		argErr     *tools.ArgumentError
		unknownErr *tools.UnknownToolError
		text       string
	)
	switch {
	case errors.As(err, &argErr):
		text = prompts.InvalidArguments(argErr.Tool, argErr.Problems)
	case errors.As(err, &unknownErr):
		text = prompts.UnavailableTool(unknownErr.Tool, c.set.NamesString())
	default:
		text = err.Error()
	}
	c.logger.Debug("tool call rejected", zap.String("tool_call_id", call.ID), zap.Error(err))
	c.respond(call, text, false)
	return Outcome{Status: StatusContinue, Content: text}
}

// ack 只在调用带 tool_call_id 时回复，控制类动作不向历史追加 user 消息
func (c *Controller) ack(call tools.Call, text string) {
	if call.ID != "" {
		c.respond(call, text, false)
	}
}

// respond 把结果写回历史：有 tool_call_id 时以 tool 消息回复，
// 并为同一条消息中其余未处理的调用补上 "ignored"；否则作为 user 消息追加。
func (c *Controller) respond(call tools.Call, text string, queryResult bool) {
	appendMsg := c.conv.Append
	if queryResult {
		appendMsg = c.conv.AppendQueryResult
	}

	if call.ID == "" {
		if text != "" {
			appendMsg(schema.UserMessage(text))
		}
		return
	}

	pending := c.pendingCalls
	c.pendingCalls = nil
	answered := false
	for _, tc := range pending {
		if tc.ID == call.ID && !answered {
			appendMsg(schema.ToolMessage(text, tc.ID))
			answered = true
			continue
		}
		c.conv.Append(schema.ToolMessage(ignoredToolCallText, tc.ID))
	}
	if !answered {
		appendMsg(schema.ToolMessage(text, call.ID))
	}
}
