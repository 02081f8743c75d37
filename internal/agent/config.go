package agent

import (
	"github.com/wwwzy/SQLChatAgent/internal/prompts"
	"github.com/wwwzy/SQLChatAgent/internal/schema"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

// DefaultMaxTurns 为 MaxTurns 未设置时一次 Run 允许的模型调用次数
const DefaultMaxTurns = 20

// Config 是构造完成后不再修改的 Agent 配置
type Config struct {
	ChatMode       bool
	UseSchemaTools bool
	MultiSchema    bool
	UseHelper      bool
	IsHelper       bool
	// StrictRecovery 开启后，无法识别的输出优先以强制工具调用的方式重新生成
	StrictRecovery bool

	// MaxResultRows <= 0 表示不限制
	MaxResultRows int
	// MaxRetainedTokens <= 0 表示历史中的查询结果不截断
	MaxRetainedTokens int
	MaxTurns          int

	AddressingPrefix string
	Dialect          string

	// Instructions 为完整渲染后的系统提示
	Instructions string
}

// ToolMode 返回决定工具集合的开关
func (c Config) ToolMode() tools.Mode {
	return tools.Mode{
		ChatMode:       c.ChatMode,
		UseSchemaTools: c.UseSchemaTools,
		IsHelper:       c.IsHelper,
	}
}

func (c Config) maxTurns() int {
	if c.MaxTurns <= 0 {
		return DefaultMaxTurns
	}
	return c.MaxTurns
}

func (c Config) prefix() string {
	if c.AddressingPrefix == "" {
		return prompts.DefaultAddressingPrefix
	}
	return c.AddressingPrefix
}

// ResolveConfig 根据开关和表描述渲染系统提示，返回新的 Config
func ResolveConfig(base Config, md schema.Metadata) Config {
	out := base
	out.AddressingPrefix = base.prefix()
	out.Instructions = prompts.Build(prompts.Options{
		Dialect:          base.Dialect,
		SchemaJSON:       md.JSON(),
		SchemaTools:      base.UseSchemaTools,
		MultiSchema:      base.MultiSchema,
		ChatMode:         base.ChatMode,
		AddressingPrefix: out.AddressingPrefix,
	})
	return out
}

// DeriveHelperConfig 由主 Agent 的配置派生 helper 配置：
// 复用主 Agent 渲染好的系统提示，并固定为非 chat、不再嵌套 helper。
func DeriveHelperConfig(primary Config) Config {
	return Config{
		ChatMode:          false,
		UseSchemaTools:    primary.UseSchemaTools,
		MultiSchema:       primary.MultiSchema,
		UseHelper:         false,
		IsHelper:          true,
		StrictRecovery:    false,
		MaxResultRows:     primary.MaxResultRows,
		MaxRetainedTokens: primary.MaxRetainedTokens,
		MaxTurns:          1,
		AddressingPrefix:  primary.prefix(),
		Dialect:           primary.Dialect,
		Instructions:      prompts.HelperInstructions(primary.Instructions) + prompts.HelperFinalInstructions(),
	}
}
