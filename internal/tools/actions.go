package tools

// 工具名称，与模型看到的 function name 保持一致
const (
	RunQueryName              = "run_query"
	GetTableNamesName         = "get_table_names"
	GetTableSchemaName        = "get_table_schema"
	GetColumnDescriptionsName = "get_column_descriptions"
	ForwardName               = "forward_tool"
	PassName                  = "pass_tool"
	DoneName                  = "done_tool"
	DonePassName              = "done_pass_tool"
)

// UserRecipient 是 Forward 的默认接收方（终端用户）
const UserRecipient = "User"

// Action 是 Agent 可以发出的结构化动作。
// 具体类型是封闭的：只有本包内定义的类型实现了 isAction。
type Action interface {
	ToolName() string
	isAction()
}

// RunQuery 执行一条 SQL（读或写）
type RunQuery struct {
	Query string `json:"query"`
}

// GetTableNames 列出所有表名
type GetTableNames struct{}

// GetTableSchema 查询若干表的描述
type GetTableSchema struct {
	Tables []string `json:"tables"`
}

// GetColumnDescriptions 查询某张表若干列的描述，Columns 为逗号分隔
type GetColumnDescriptions struct {
	Table   string `json:"table"`
	Columns string `json:"columns"`
}

// Forward 把当前轮次交给指定的接收方
type Forward struct {
	Agent string `json:"agent"`
}

// Pass 表示上一条消息原样传递
type Pass struct{}

// Done 结束循环，Content 为最终答案
type Done struct {
	Content string `json:"content"`
}

// DonePass 结束循环，并把上一条消息的内容作为最终答案
type DonePass struct{}

func (RunQuery) ToolName() string              { return RunQueryName }
func (GetTableNames) ToolName() string         { return GetTableNamesName }
func (GetTableSchema) ToolName() string        { return GetTableSchemaName }
func (GetColumnDescriptions) ToolName() string { return GetColumnDescriptionsName }
func (Forward) ToolName() string               { return ForwardName }
func (Pass) ToolName() string                  { return PassName }
func (Done) ToolName() string                  { return DoneName }
func (DonePass) ToolName() string              { return DonePassName }

func (RunQuery) isAction()              {}
func (GetTableNames) isAction()         {}
func (GetTableSchema) isAction()        {}
func (GetColumnDescriptions) isAction() {}
func (Forward) isAction()               {}
func (Pass) isAction()                  {}
func (Done) isAction()                  {}
func (DonePass) isAction()              {}

// Call 是某一轮被采纳的工具调用。
// ID 为模型返回的 tool_call_id；从文本中解析出来的调用没有 ID。
type Call struct {
	ID     string
	Action Action
}

func (c Call) IsZero() bool {
	return c.Action == nil
}

// Name 返回工具名，空调用返回 ""
func (c Call) Name() string {
	if c.Action == nil {
		return ""
	}
	return c.Action.ToolName()
}

// IsTerminal 报告该调用是否结束 Agent 循环
func (c Call) IsTerminal() bool {
	switch c.Action.(type) {
	case Done, DonePass:
		return true
	default:
		return false
	}
}

// IsAnswer 报告该调用是否为“答案”类动作（Done/DonePass/Forward 给用户）
func (c Call) IsAnswer() bool {
	switch a := c.Action.(type) {
	case Done, DonePass:
		return true
	case Forward:
		return a.Agent == "" || a.Agent == UserRecipient
	default:
		return false
	}
}
