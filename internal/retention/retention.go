// Package retention 按保留策略分批清理审计记录与查询日志。
package retention

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wwwzy/SQLChatAgent/internal/storage"
)

// Store 为清理所需的存储操作，*storage.Storage 实现了该接口
type Store interface {
	DeleteAuditRecordsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error)
	DeleteAuditRecordsKeepLatest(ctx context.Context, keep int) (int64, error)
	DeleteQueryLogsBeforeLimited(ctx context.Context, before time.Time, limit int) (int64, error)
	DeleteQueryLogsKeepLatest(ctx context.Context, keep int) (int64, error)
}

var _ Store = (*storage.Storage)(nil)

// Report 为一次清理的删除行数
type Report struct {
	AuditDeleted    int64
	QueryLogDeleted int64
}

type Pruner struct {
	cfg   Config
	store Store

	mu     sync.Mutex
	report Report

	cancel context.CancelFunc
	wg     sync.WaitGroup
	runErr error
}

func NewPruner(store Store, cfg Config) (*Pruner, error) {
	if store == nil {
		return nil, errors.New("storage is required")
	}
	return &Pruner{store: store, cfg: cfg.withDefaults()}, nil
}

// Start 在后台周期性执行清理，直到 Stop 或 ctx 结束
func (p *Pruner) Start(ctx context.Context) error {
	if p == nil || p.store == nil {
		return errors.New("pruner not initialized")
	}
	if p.cancel != nil {
		return errors.New("pruner already started")
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			p.mu.Lock()
			p.runErr = err
			p.mu.Unlock()
		}
	}()
	return nil
}

// Stop 停止后台清理并等待退出，返回运行期间的第一个错误
func (p *Pruner) Stop() error {
	if p == nil || p.cancel == nil {
		return nil
	}
	p.cancel()
	p.wg.Wait()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runErr
}

func (p *Pruner) Run(ctx context.Context) error {
	if p == nil || p.store == nil {
		return errors.New("pruner not initialized")
	}

	if _, err := p.RunOnce(ctx, time.Now().UTC()); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := p.RunOnce(ctx, time.Now().UTC()); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		}
	}
}

// RunOnce 立即按策略清理一次
func (p *Pruner) RunOnce(ctx context.Context, now time.Time) (Report, error) {
	if p == nil || p.store == nil {
		return Report{}, errors.New("pruner not initialized")
	}
	p.mu.Lock()
	p.report = Report{}
	p.mu.Unlock()

	var tasks []func(context.Context) error

	if p.cfg.Audit.KeepFor > 0 {
		cut := now.Add(-p.cfg.Audit.KeepFor)
		tasks = append(tasks, func(ctx context.Context) error {
			return p.drain(ctx, func(ctx context.Context) (int64, error) {
				return p.store.DeleteAuditRecordsBeforeLimited(ctx, cut, p.cfg.BatchRows)
			}, func(n int64) { p.report.AuditDeleted += n })
		})
	}
	if p.cfg.Audit.KeepLatest > 0 {
		tasks = append(tasks, func(ctx context.Context) error {
			n, err := p.store.DeleteAuditRecordsKeepLatest(ctx, p.cfg.Audit.KeepLatest)
			p.add(func() { p.report.AuditDeleted += n })
			return err
		})
	}
	if p.cfg.QueryLogs.KeepFor > 0 {
		cut := now.Add(-p.cfg.QueryLogs.KeepFor)
		tasks = append(tasks, func(ctx context.Context) error {
			return p.drain(ctx, func(ctx context.Context) (int64, error) {
				return p.store.DeleteQueryLogsBeforeLimited(ctx, cut, p.cfg.BatchRows)
			}, func(n int64) { p.report.QueryLogDeleted += n })
		})
	}
	if p.cfg.QueryLogs.KeepLatest > 0 {
		tasks = append(tasks, func(ctx context.Context) error {
			n, err := p.store.DeleteQueryLogsKeepLatest(ctx, p.cfg.QueryLogs.KeepLatest)
			p.add(func() { p.report.QueryLogDeleted += n })
			return err
		})
	}

	err := p.runTasks(ctx, tasks)

	p.mu.Lock()
	report := p.report
	p.mu.Unlock()
	return report, err
}

func (p *Pruner) add(fn func()) {
	p.mu.Lock()
	fn()
	p.mu.Unlock()
}

func (p *Pruner) runTasks(ctx context.Context, tasks []func(context.Context) error) error {
	if len(tasks) == 0 {
		return nil
	}
	workers := p.cfg.Workers
	if workers > len(tasks) {
		workers = len(tasks)
	}
	if workers <= 0 {
		workers = 1
	}

	jobs := make(chan func(context.Context) error)
	errs := make(chan error, len(tasks))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				if err := job(ctx); err != nil && !errors.Is(err, context.Canceled) {
					errs <- err
				}
			}
		}()
	}

	for _, t := range tasks {
		select {
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			close(errs)
			return ctx.Err()
		case jobs <- t:
		}
	}
	close(jobs)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			p.cfg.OnError(err)
			return err
		}
	}
	return nil
}

// drain 反复执行一批删除直到没有可删除的行
func (p *Pruner) drain(ctx context.Context, batch func(context.Context) (int64, error), record func(int64)) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		affected, err := batch(ctx)
		if err != nil {
			return err
		}
		p.add(func() { record(affected) })
		if affected == 0 {
			return nil
		}
		if err := p.sleepIdle(ctx); err != nil {
			return err
		}
	}
}

func (p *Pruner) sleepIdle(ctx context.Context) error {
	if p.cfg.IdleSleep <= 0 {
		return nil
	}
	timer := time.NewTimer(p.cfg.IdleSleep)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
