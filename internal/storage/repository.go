package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	defaultLimit = 200
	maxLimit     = 5000

	defaultDeleteLimit = 500
	maxDeleteLimit     = 900
)

var errNotInitialized = errors.New("storage not initialized")

// AuditQuery 用于查询审计记录的过滤条件，零值字段不参与过滤。
// 时间范围使用 CreatedAt（写入时间）。
type AuditQuery struct {
	TraceID string
	Action  string
	Status  string
	// From/To 过滤 CreatedAt 区间：[From, To]（两端包含）。
	From *time.Time
	To   *time.Time
	// Limit 限制返回条数；<=0 使用默认值。
	Limit int
	Desc  bool
}

func (s *Storage) InsertAuditRecord(ctx context.Context, rec *AuditRecord) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	if rec == nil {
		return errors.New("audit record is nil")
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (s *Storage) QueryAuditRecords(ctx context.Context, q AuditQuery) ([]AuditRecord, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	db := s.db.WithContext(ctx).Model(&AuditRecord{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Action != "" {
		db = db.Where("action = ?", q.Action)
	}
	if q.Status != "" {
		db = db.Where("status = ?", q.Status)
	}
	db = withTimeRange(db, q.From, q.To)
	db = ordered(db, q.Desc).Limit(normalizeLimit(q.Limit))

	var out []AuditRecord
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	return out, nil
}

type AuditUpdate struct {
	Status       *string
	ResultJSON   *string
	ErrorMessage *string
	FinishedAt   *time.Time
}

func (s *Storage) UpdateAuditRecord(ctx context.Context, id uint64, up AuditUpdate) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}

	updates := make(map[string]interface{})
	if up.Status != nil {
		updates["status"] = *up.Status
	}
	if up.ResultJSON != nil {
		updates["result_json"] = *up.ResultJSON
	}
	if up.ErrorMessage != nil {
		updates["error_message"] = *up.ErrorMessage
	}
	if up.FinishedAt != nil {
		updates["finished_at"] = *up.FinishedAt
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&AuditRecord{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update audit record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError{Entity: "audit record", ID: id}
	}
	return nil
}

func (s *Storage) CountAuditRecords(ctx context.Context) (int64, error) {
	return s.count(ctx, &AuditRecord{})
}

func (s *Storage) DeleteAuditRecordsBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteBefore(ctx, &AuditRecord{}, before)
}

func (s *Storage) DeleteAuditRecordsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	return s.deleteBeforeLimited(ctx, &AuditRecord{}, before, limit)
}

// DeleteAuditRecordsKeepLatest 只保留最新的 keep 条审计记录
func (s *Storage) DeleteAuditRecordsKeepLatest(ctx context.Context, keep int) (int64, error) {
	return s.deleteKeepLatest(ctx, &AuditRecord{}, keep)
}

// QueryLogQuery 为查询日志的过滤条件
type QueryLogQuery struct {
	TraceID string
	Kind    string
	From    *time.Time
	To      *time.Time
	Limit   int
	Desc    bool
}

func (s *Storage) InsertQueryLog(ctx context.Context, entry *QueryLog) error {
	if s == nil || s.db == nil {
		return errNotInitialized
	}
	if entry == nil {
		return errors.New("query log is nil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}

func (s *Storage) QueryQueryLogs(ctx context.Context, q QueryLogQuery) ([]QueryLog, error) {
	if s == nil || s.db == nil {
		return nil, errNotInitialized
	}

	db := s.db.WithContext(ctx).Model(&QueryLog{})
	if q.TraceID != "" {
		db = db.Where("trace_id = ?", q.TraceID)
	}
	if q.Kind != "" {
		db = db.Where("kind = ?", q.Kind)
	}
	db = withTimeRange(db, q.From, q.To)
	db = ordered(db, q.Desc).Limit(normalizeLimit(q.Limit))

	var out []QueryLog
	if err := db.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("query query logs: %w", err)
	}
	return out, nil
}

func (s *Storage) CountQueryLogs(ctx context.Context) (int64, error) {
	return s.count(ctx, &QueryLog{})
}

func (s *Storage) DeleteQueryLogsBefore(ctx context.Context, before time.Time) (int64, error) {
	return s.deleteBefore(ctx, &QueryLog{}, before)
}

func (s *Storage) DeleteQueryLogsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error) {
	return s.deleteBeforeLimited(ctx, &QueryLog{}, before, limit)
}

func (s *Storage) DeleteQueryLogsKeepLatest(ctx context.Context, keep int) (int64, error) {
	return s.deleteKeepLatest(ctx, &QueryLog{}, keep)
}

func (s *Storage) count(ctx context.Context, model any) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (s *Storage) deleteBefore(ctx context.Context, model any, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete before: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// deleteBeforeLimited 每次最多删除 limit 条，避免长时间持有 sqlite 写锁
func (s *Storage) deleteBeforeLimited(ctx context.Context, model any, before time.Time, limit int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}

	var ids []uint64
	db := s.db.WithContext(ctx).Model(model).
		Select("id").
		Where("created_at < ?", before).
		Order("id ASC").
		Limit(normalizeDeleteLimit(limit))
	if err := db.Find(&ids).Error; err != nil {
		return 0, fmt.Errorf("select ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete by ids: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Storage) deleteKeepLatest(ctx context.Context, model any, keep int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errNotInitialized
	}
	if keep < 0 {
		keep = 0
	}

	// 第 keep 新的记录的 id 作为分界
	var ids []uint64
	if err := s.db.WithContext(ctx).Model(model).
		Select("id").
		Order("id DESC").
		Offset(keep).
		Limit(1).
		Find(&ids).Error; err != nil {
		return 0, fmt.Errorf("select boundary id: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	res := s.db.WithContext(ctx).Where("id <= ?", ids[0]).Delete(model)
	if res.Error != nil {
		return 0, fmt.Errorf("delete keep latest: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func withTimeRange(db *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		db = db.Where("created_at >= ?", *from)
	}
	if to != nil {
		db = db.Where("created_at <= ?", *to)
	}
	return db
}

func ordered(db *gorm.DB, desc bool) *gorm.DB {
	if desc {
		return db.Order("created_at DESC, id DESC")
	}
	return db.Order("created_at ASC, id ASC")
}

func normalizeLimit(v int) int {
	if v <= 0 {
		return defaultLimit
	}
	if v > maxLimit {
		return maxLimit
	}
	return v
}

func normalizeDeleteLimit(v int) int {
	if v <= 0 {
		return defaultDeleteLimit
	}
	if v > maxDeleteLimit {
		return maxDeleteLimit
	}
	return v
}

type notFoundError struct {
	Entity string
	ID     uint64
}

func (e notFoundError) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Entity, e.ID)
}
