package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage/memory"
)

// Generator 模拟上游投递，周期性向随机活跃邮箱写入一封合成邮件。
type Generator struct {
	store   *memory.Store
	mailbox *MailboxService
	logger  *zap.Logger
	metrics *monitoring.Metrics

	minInterval time.Duration
	maxInterval time.Duration

	mu     sync.Mutex
	random *rand.Rand
}

// NewGenerator 创建邮件生成器。
func NewGenerator(store *memory.Store, mailbox *MailboxService, minInterval, maxInterval time.Duration, logger *zap.Logger, metrics *monitoring.Metrics) *Generator {
	return &Generator{
		store:       store,
		mailbox:     mailbox,
		logger:      logger,
		metrics:     metrics,
		minInterval: minInterval,
		maxInterval: maxInterval,
		random:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run 启动生成循环，直到 ctx 取消。每轮之间的等待时间
// 在 [minInterval, maxInterval] 内随机取值。
func (g *Generator) Run(ctx context.Context) error {
	g.logger.Info("generator started",
		zap.Duration("min_interval", g.minInterval),
		zap.Duration("max_interval", g.maxInterval))

	timer := time.NewTimer(g.nextInterval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			g.logger.Info("generator stopped")
			return ctx.Err()
		case <-timer.C:
			g.Tick()
			timer.Reset(g.nextInterval())
		}
	}
}

// Tick 执行一轮生成：随机挑选一个活跃邮箱并写入合成邮件。
// 没有活跃邮箱时跳过本轮。
func (g *Generator) Tick() {
	ids := g.store.ListMailboxIDs()
	if len(ids) == 0 {
		return
	}

	targetID := ids[g.intn(len(ids))]
	target, err := g.store.GetMailbox(targetID)
	if err != nil {
		// 选中和取出之间邮箱可能已被删除
		return
	}

	msg := g.synthesize(target)
	if err := g.mailbox.Append(target.ID, msg); err != nil {
		// 选中后邮箱被并发删除或过期，属正常竞争
		g.logger.Debug("generated message dropped",
			zap.String("mailbox_id", target.ID),
			zap.Error(err))
		return
	}

	g.metrics.RecordMessageGenerated()
	g.logger.Info("message generated",
		zap.String("mailbox_id", target.ID),
		zap.String("address", target.Address),
		zap.String("subject", msg.Subject))
}

// synthesize 合成一封发往指定邮箱的假邮件。
func (g *Generator) synthesize(target *domain.Mailbox) *domain.Message {
	return &domain.Message{
		From:    fmt.Sprintf("service-%d@example.com", 100+g.intn(900)),
		To:      target.Address,
		Subject: fmt.Sprintf("Important Notification #%d", 1000+g.intn(9000)),
		Body: fmt.Sprintf("This is a simulated email body for %s. \n\nTimestamp: %s.\n\n"+
			"Lorem ipsum dolor sit amet, consectetur adipiscing elit. Sed non risus.",
			target.Address, time.Now().UTC().Format(time.RFC3339Nano)),
	}
}

// nextInterval 返回下一轮等待时长。
func (g *Generator) nextInterval() time.Duration {
	spread := g.maxInterval - g.minInterval
	if spread <= 0 {
		return g.minInterval
	}
	return g.minInterval + time.Duration(g.intn(int(spread)+1))
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.random.Intn(n)
}
