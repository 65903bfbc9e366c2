package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tempinbox/backend/internal/config"
	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage/memory"
)

// Notifier 定义实时推送通道的能力。由 websocket Hub 实现，
// 在 main 中注入，避免 service 与 websocket 包互相依赖。
type Notifier interface {
	// Push 向邮箱当前的推送通道投递一封邮件。
	// 邮箱没有订阅者时为空操作。
	Push(mailboxID string, msg *domain.Message)
	// CloseMailbox 关闭邮箱的推送通道（邮箱被删除或过期时调用）。
	CloseMailbox(mailboxID string)
}

// noopNotifier 在未注入 Notifier 时使用，便于单独测试 service。
type noopNotifier struct{}

func (noopNotifier) Push(string, *domain.Message) {}
func (noopNotifier) CloseMailbox(string)          {}

// MailboxService 封装邮箱相关业务操作。
type MailboxService struct {
	store    *memory.Store
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	notifier Notifier
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(store *memory.Store, cfg *config.Config, logger *zap.Logger, metrics *monitoring.Metrics) *MailboxService {
	return &MailboxService{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		notifier: noopNotifier{},
	}
}

// SetNotifier 注入实时推送实现（避免循环依赖）。
func (s *MailboxService) SetNotifier(n Notifier) {
	if n != nil {
		s.notifier = n
	}
}

// Create 创建新的临时邮箱，地址随机生成。
// 地址冲突时重新生成地址再试，邮箱 ID 保持全局唯一不复用。
func (s *MailboxService) Create() (*domain.Mailbox, error) {
	now := time.Now().UTC()

	for {
		localPart := s.generateRandomLocalPart()
		mailbox := &domain.Mailbox{
			ID:        uuid.NewString(),
			Address:   fmt.Sprintf("%s@%s", localPart, s.cfg.Mailbox.Domain),
			LocalPart: localPart,
			Domain:    s.cfg.Mailbox.Domain,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.Mailbox.DefaultTTL),
		}

		err := s.store.SaveMailbox(mailbox)
		if err == nil {
			s.metrics.RecordMailboxCreated()
			s.metrics.UpdateMailboxesActive(s.store.MailboxCount())
			s.logger.Info("mailbox created",
				zap.String("mailbox_id", mailbox.ID),
				zap.String("address", mailbox.Address),
				zap.Time("expires_at", mailbox.ExpiresAt))
			return mailbox, nil
		}
		if err != memory.ErrAddressTaken {
			return nil, err
		}
		// 地址撞车，换一个地址重试
	}
}

// Get 根据 ID 获取邮箱。
func (s *MailboxService) Get(id string) (*domain.Mailbox, error) {
	return s.store.GetMailbox(id)
}

// GetByAddress 根据邮箱地址获取邮箱。
func (s *MailboxService) GetByAddress(address string) (*domain.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if address == "" {
		return nil, memory.ErrMailboxNotFound
	}
	return s.store.GetMailboxByAddress(address)
}

// Messages 返回邮箱内全部邮件，按到达顺序排列。
func (s *MailboxService) Messages(id string) ([]domain.Message, error) {
	return s.store.ListMessages(id)
}

// Refresh 重置邮箱的过期时间为当前时间加默认 TTL。
func (s *MailboxService) Refresh(id string) (*domain.Mailbox, error) {
	expiresAt := time.Now().UTC().Add(s.cfg.Mailbox.DefaultTTL)
	if err := s.store.RefreshMailbox(id, expiresAt); err != nil {
		return nil, err
	}
	s.logger.Info("mailbox refreshed",
		zap.String("mailbox_id", id),
		zap.Time("expires_at", expiresAt))
	return s.store.GetMailbox(id)
}

// Delete 删除指定邮箱并关闭其推送通道。
func (s *MailboxService) Delete(id string) error {
	if err := s.store.DeleteMailbox(id); err != nil {
		return err
	}
	s.notifier.CloseMailbox(id)
	s.metrics.RecordMailboxDeleted()
	s.metrics.UpdateMailboxesActive(s.store.MailboxCount())
	s.metrics.UpdateMessagesTotal(s.store.MessageCount())
	s.logger.Info("mailbox deleted", zap.String("mailbox_id", id))
	return nil
}

// Append 向邮箱追加一封邮件。先落存储，成功后再尝试实时推送，
// 保证有订阅者时邮件不会只推不存。推送失败不影响返回值。
func (s *MailboxService) Append(mailboxID string, msg *domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.MailboxID = mailboxID
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now().UTC()
	}

	if err := s.store.AppendMessage(msg); err != nil {
		return err
	}

	s.metrics.UpdateMessagesTotal(s.store.MessageCount())
	s.notifier.Push(mailboxID, msg)
	return nil
}

// generateRandomLocalPart 生成随机前缀。
func (s *MailboxService) generateRandomLocalPart() string {
	base := strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return base[:12]
}
