package storage

import "time"

// 审计记录状态
const (
	AuditStatusRunning = "running"
	AuditStatusSuccess = "success"
	AuditStatusFailed  = "failed"
)

// AuditRecord 记录 Agent 的一次工具分发及其结果，用于审计与追溯。
//
// 一条记录对应一次被采纳的工具调用（run_query / get_table_schema / done_tool 等）。
// 入参与输出统一以 JSON 或文本存放。
type AuditRecord struct {
	// ID 为自增主键（内部使用）。
	ID uint64 `gorm:"primaryKey"`
	// TraceID 串联同一个问题内的全部轮次。
	TraceID string `gorm:"size:64;index"`
	// Action 为工具名，例如 run_query。
	Action string `gorm:"size:128;not null;index"`
	// Source 表示调用来源：model（模型直接给出）/ helper / strict / synthesized。
	Source string `gorm:"size:32;index"`
	// ParamsJSON 存放工具参数（JSON 字符串）。
	ParamsJSON string `gorm:"type:text"`
	// ResultJSON 存放工具结果文本（截断后）。
	ResultJSON string `gorm:"type:text"`
	// Status 为 running/success/failed。
	Status string `gorm:"size:32;not null;index"`
	// ErrorMessage 存放失败时的错误信息。
	ErrorMessage string    `gorm:"type:text"`
	StartedAt    time.Time `gorm:"index"`
	FinishedAt   time.Time `gorm:"index"`
	// CreatedAt 为记录写入时间，保留策略按此字段清理。
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"`
}

// QueryLog 记录对目标数据库执行的每一条 SQL
type QueryLog struct {
	ID      uint64 `gorm:"primaryKey"`
	TraceID string `gorm:"size:64;index"`
	// Query 为原始 SQL 文本
	Query string `gorm:"type:text;not null"`
	// Kind 为 rows / rows_affected / failure
	Kind         string    `gorm:"size:32;not null;index"`
	RowCount     int       `gorm:"not null;default:0"`
	Truncated    bool      `gorm:"not null;default:false"`
	RowsAffected int64     `gorm:"not null;default:0"`
	ErrorMessage string    `gorm:"type:text"`
	DurationMS   int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime;index"`
}
