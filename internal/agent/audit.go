package agent

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/wwwzy/SQLChatAgent/internal/storage"
	"github.com/wwwzy/SQLChatAgent/internal/tools"
)

const (
	auditTruncateLimit = 2048
)

// audited 在工具分发前后写审计记录。store 为空时直接执行。
// 审计失败只记日志，不影响工具本身。
func (c *Controller) audited(ctx context.Context, call tools.Call, source string, run func() (string, error)) {
	if c.store == nil {
		_, _ = run()
		return
	}

	params, err := json.Marshal(call.Action)
	if err != nil {
		params = []byte("{}")
	}

	now := time.Now().UTC()
	record := &storage.AuditRecord{
		TraceID:    GetTraceID(ctx),
		Action:     call.Name(),
		Source:     source,
		ParamsJSON: truncate(string(params), auditTruncateLimit),
		Status:     storage.AuditStatusRunning,
		StartedAt:  now,
	}
	if err := c.store.InsertAuditRecord(ctx, record); err != nil {
		c.logger.Warn("failed to insert audit record", zap.String("action", record.Action), zap.Error(err))
	}

	result, runErr := run()

	// 只有在 Insert 成功且有了 ID 后，才能 Update
	if record.ID == 0 {
		return
	}
	finishedAt := time.Now().UTC()
	status := storage.AuditStatusSuccess
	update := storage.AuditUpdate{FinishedAt: &finishedAt}
	if runErr != nil {
		status = storage.AuditStatusFailed
		e := truncate(runErr.Error(), auditTruncateLimit)
		update.ErrorMessage = &e
	}
	r := truncate(result, auditTruncateLimit)
	update.ResultJSON = &r
	update.Status = &status

	if err := c.store.UpdateAuditRecord(ctx, record.ID, update); err != nil {
		c.logger.Warn("failed to update audit record", zap.Uint64("id", record.ID), zap.Error(err))
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "...(truncated)"
}
