package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage/memory"
)

// Reaper 周期扫描并清理过期邮箱。
type Reaper struct {
	store    *memory.Store
	notifier Notifier
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	interval time.Duration
}

// NewReaper 创建过期清理器。
func NewReaper(store *memory.Store, interval time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Reaper {
	return &Reaper{
		store:    store,
		notifier: noopNotifier{},
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

// SetNotifier 注入实时推送实现，清理邮箱时同时关闭其推送通道。
func (r *Reaper) SetNotifier(n Notifier) {
	if n != nil {
		r.notifier = n
	}
}

// Run 启动清理循环，直到 ctx 取消。
func (r *Reaper) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", zap.Duration("interval", r.interval))

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			r.SweepOnce(time.Now().UTC())
		}
	}
}

// SweepOnce 执行一轮过期扫描。过期时间早于 now 的邮箱
// 连同其全部邮件一起删除，并关闭对应的推送通道。
func (r *Reaper) SweepOnce(now time.Time) int {
	expired := r.store.ExpiredMailboxIDs(now)
	if len(expired) == 0 {
		return 0
	}

	removed := 0
	for _, id := range expired {
		if err := r.store.DeleteMailbox(id); err != nil {
			// 扫描和删除之间邮箱可能已被手动删除
			continue
		}
		r.notifier.CloseMailbox(id)
		r.metrics.RecordMailboxExpired()
		removed++
		r.logger.Info("mailbox expired", zap.String("mailbox_id", id))
	}

	r.metrics.UpdateMailboxesActive(r.store.MailboxCount())
	r.metrics.UpdateMessagesTotal(r.store.MessageCount())
	return removed
}
