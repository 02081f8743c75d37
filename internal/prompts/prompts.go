// Package prompts 根据模式开关拼装系统提示与各类固定回复文本。
// 这里只有字符串选择与替换，不包含任何决策逻辑。
package prompts

import (
	"strings"
)

// DefaultAddressingPrefix 是 chat 模式下称呼接收方的前缀
const DefaultAddressingPrefix = ">>"

// Options 决定系统提示的内容
type Options struct {
	// Dialect 为数据库方言名，例如 sqlite / postgresql / mysql
	Dialect string
	// SchemaJSON 为内联的表结构描述，仅在 SchemaTools=false 时使用
	SchemaJSON string

	SchemaTools bool
	MultiSchema bool
	ChatMode    bool

	AddressingPrefix string
}

func render(tmpl string, kv ...string) string {
	return strings.NewReplacer(kv...).Replace(tmpl)
}

// Build 生成主 Agent 的完整系统提示：角色 + schema 块 + 模式块 + 重试指引
func Build(o Options) string {
	multi := ""
	if o.MultiSchema {
		multi = multiSchemaNote
	}

	var role string
	if o.SchemaTools {
		role = render(schemaToolsTemplate,
			"{dialect}", o.Dialect,
			"{multi_schema}", multi,
		)
	} else {
		schemaJSON := o.SchemaJSON
		if strings.TrimSpace(schemaJSON) == "" {
			schemaJSON = "{}"
		}
		role = render(inlineSchemaTemplate,
			"{dialect}", o.Dialect,
			"{multi_schema}", multi,
			"{schema_json}", schemaJSON,
		)
	}

	out := render(chatSystemTemplate, "{mode}", role)
	if o.ChatMode {
		out += render(addressingTemplate, "{prefix}", prefixOrDefault(o.AddressingPrefix))
	} else {
		out += doneTemplate
	}
	return out
}

func prefixOrDefault(p string) string {
	if p == "" {
		return DefaultAddressingPrefix
	}
	return p
}

// ClarifyAnswer 告诉模型“如果这是最终答案应该怎么做”
func ClarifyAnswer(chatMode bool) string {
	if chatMode {
		return clarifyForwardTemplate
	}
	return clarifyDonePassTemplate
}

// HelperInstructions 把主 Agent 的系统提示包进 helper 的角色说明里
func HelperInstructions(primary string) string {
	return render(helperSystemTemplate, "{instructions}", primary)
}

// HelperFinalInstructions 是 helper 的决策规则；helper 总是运行在非 chat 模式
func HelperFinalInstructions() string {
	return render(helperFinalTemplate, "{clarify_answer}", ClarifyAnswer(false))
}

// HelperWrap 包装一条需要 helper 解读的主 Agent 消息
func HelperWrap(finalInstructions, message string) string {
	return render(helperWrapTemplate,
		"{final_instructions}", finalInstructions,
		"{message}", message,
	)
}

// Clarification 在无法识别模型意图时追加给模型，tools 为当前启用的工具名
func Clarification(chatMode, schemaTools bool, tools string) string {
	hint := ""
	if schemaTools {
		hint = schemaToolsHint
	}
	return render(clarificationTemplate,
		"{clarify_answer}", ClarifyAnswer(chatMode),
		"{schema_tools_hint}", hint,
		"{tools}", tools,
	)
}

// ToolResult 为 run_query 的结果加上下一步指引
func ToolResult(result string, chatMode bool, prefix, tools string) string {
	answer := answerByDoneTemplate
	if chatMode {
		answer = render(answerByAddressingTemplate, "{prefix}", prefixOrDefault(prefix))
	}
	return render(toolResultTemplate,
		"{result}", result,
		"{answer_instruction}", answer,
		"{tools}", tools,
	)
}

// RetryQuery 生成 SQL 执行失败后的重试指引。
// schemaJSON 为空时不附带表结构（schema 工具模式下模型可以自行查询）。
func RetryQuery(query, errText, schemaJSON string) string {
	desc := ""
	if schemaJSON != "" {
		desc = render(retrySchemaTemplate, "{schema_json}", schemaJSON)
	}
	return render(retryTemplate,
		"{query}", query,
		"{error}", errText,
		"{schema_description}", desc,
	)
}

func StrictRecovery(tools string) string {
	return render(strictRecoveryTemplate, "{tools}", tools)
}

func UnavailableTool(tool, tools string) string {
	return render(unavailableToolTemplate, "{tool}", tool, "{tools}", tools)
}

func InvalidArguments(tool string, problems []string) string {
	return render(invalidArgumentsTemplate,
		"{tool}", tool,
		"{problems}", "- "+strings.Join(problems, "\n- "),
	)
}
