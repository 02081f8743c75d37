package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wwwzy/SQLChatAgent/internal/retention"
	"github.com/wwwzy/SQLChatAgent/internal/schema"
	"github.com/wwwzy/SQLChatAgent/internal/storage"
)

type ArkConfig struct {
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
	BaseURL string `mapstructure:"base_url"`
}

// AgentConfig 对应 agent.* 配置项
type AgentConfig struct {
	ChatMode       bool `mapstructure:"chat_mode"`
	UseSchemaTools bool `mapstructure:"use_schema_tools"`
	MultiSchema    bool `mapstructure:"multi_schema"`
	UseHelper      bool `mapstructure:"use_helper"`
	StrictRecovery bool `mapstructure:"strict_recovery"`

	// MaxResultRows 为单次查询返回给模型的最大行数，0 表示不限制
	MaxResultRows int `mapstructure:"max_result_rows"`
	// MaxRetainedTokens 限制历史中较早的查询结果保留的 token 数，0 表示不限制
	MaxRetainedTokens int `mapstructure:"max_retained_tokens"`
	MaxTurns          int `mapstructure:"max_turns"`

	AddressingPrefix string `mapstructure:"addressing_prefix"`

	// ContextDescriptions 为内联的表描述；注意 viper 会把键转成小写
	ContextDescriptions     schema.Metadata `mapstructure:"context_descriptions"`
	ContextDescriptionsFile string          `mapstructure:"context_descriptions_file"`
}

// DatabaseConfig 描述被查询的目标数据库
type DatabaseConfig struct {
	// Driver 为 database/sql 驱动名：sqlite / postgres / mysql
	Driver string `mapstructure:"driver"`
	URI    string `mapstructure:"uri"`

	MaxOpenConns int `mapstructure:"max_open_conns"`
}

type Config struct {
	Agent     AgentConfig      `mapstructure:"agent"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Storage   storage.Config   `mapstructure:"storage"`
	Retention retention.Config `mapstructure:"retention"`
	Ark       ArkConfig        `mapstructure:"ark"`
	LogLevel  string           `mapstructure:"log_level"`
	// LogFile 非空时日志写入文件
	LogFile string `mapstructure:"log_file"`
}

func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.sqlchat")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SQLCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal 只会处理 viper “知道”的 key，
	// 所以每个允许通过环境变量覆盖的 key 都需要有默认值。
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 检查与模型无关的配置
func (c *Config) Validate() error {
	if c.Database.URI != "" {
		if _, err := schema.DialectFromDriver(c.Database.Driver); err != nil {
			return fmt.Errorf("database.driver: %w", err)
		}
	}
	if c.Agent.MaxResultRows < 0 {
		return fmt.Errorf("agent.max_result_rows must be >= 0")
	}
	if c.Agent.MaxRetainedTokens < 0 {
		return fmt.Errorf("agent.max_retained_tokens must be >= 0")
	}
	if c.Agent.MaxTurns < 0 {
		return fmt.Errorf("agent.max_turns must be >= 0")
	}
	return nil
}

// ValidateArk 在需要调用模型的命令中检查 Ark 配置
func (c *Config) ValidateArk() error {
	if c.Ark.APIKey == "" {
		return fmt.Errorf("ark.api_key is required (or set ARK_API_KEY env var)")
	}
	if c.Ark.ModelID == "" {
		return fmt.Errorf("ark.model_id is required (or set ARK_MODEL_ID env var)")
	}
	return nil
}

// ContextDescriptions 返回最终的表描述：文件优先，其次为内联配置
func (c *Config) ContextDescriptions() (schema.Metadata, error) {
	if c.Agent.ContextDescriptionsFile != "" {
		return schema.LoadFile(c.Agent.ContextDescriptionsFile)
	}
	return c.Agent.ContextDescriptions, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", "")

	// -------------------------------------------------------------------------
	// Agent
	// -------------------------------------------------------------------------
	v.SetDefault("agent.chat_mode", d.Agent.ChatMode)
	v.SetDefault("agent.use_schema_tools", d.Agent.UseSchemaTools)
	v.SetDefault("agent.multi_schema", d.Agent.MultiSchema)
	v.SetDefault("agent.use_helper", d.Agent.UseHelper)
	v.SetDefault("agent.strict_recovery", d.Agent.StrictRecovery)
	v.SetDefault("agent.max_result_rows", d.Agent.MaxResultRows)
	v.SetDefault("agent.max_retained_tokens", d.Agent.MaxRetainedTokens)
	v.SetDefault("agent.max_turns", d.Agent.MaxTurns)
	v.SetDefault("agent.addressing_prefix", d.Agent.AddressingPrefix)
	v.SetDefault("agent.context_descriptions_file", "")

	// -------------------------------------------------------------------------
	// Database (目标数据库)
	// -------------------------------------------------------------------------
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.uri", "")
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)

	// -------------------------------------------------------------------------
	// Storage (审计库)
	// -------------------------------------------------------------------------
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.busy_timeout", d.Storage.BusyTimeout)

	// -------------------------------------------------------------------------
	// Retention
	// -------------------------------------------------------------------------
	v.SetDefault("retention.enabled", d.Retention.Enabled)
	v.SetDefault("retention.interval", d.Retention.Interval)
	v.SetDefault("retention.workers", d.Retention.Workers)
	v.SetDefault("retention.batch_rows", d.Retention.BatchRows)
	v.SetDefault("retention.idle_sleep", d.Retention.IdleSleep)
	v.SetDefault("retention.audit.keep_for", d.Retention.Audit.KeepFor)
	v.SetDefault("retention.audit.keep_latest", d.Retention.Audit.KeepLatest)
	v.SetDefault("retention.query_logs.keep_for", d.Retention.QueryLogs.KeepFor)
	v.SetDefault("retention.query_logs.keep_latest", d.Retention.QueryLogs.KeepLatest)

	// -------------------------------------------------------------------------
	// Ark AI
	// -------------------------------------------------------------------------
	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.model_id", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")

	v.BindEnv("ark.api_key", "ARK_API_KEY")
	v.BindEnv("ark.model_id", "ARK_MODEL_ID")
	v.BindEnv("ark.base_url", "ARK_BASE_URL")
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Agent: AgentConfig{
			UseHelper:        true,
			MaxTurns:         20,
			AddressingPrefix: ">>",
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			MaxOpenConns: 4,
		},
		Storage: storage.Config{
			Path:        "sqlchat.db",
			BusyTimeout: 5 * time.Second,
		},
		Retention: retention.DefaultConfig(),
	}
}
