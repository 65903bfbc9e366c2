package memory

import (
	"errors"
	"sync"
	"time"

	"tempinbox/backend/internal/domain"
)

var (
	ErrMailboxNotFound = errors.New("mailbox not found")
	ErrAddressTaken    = errors.New("address already taken")
)

// Store 使用内存保存邮箱与邮件数据，是注册表的唯一事实来源。
// 所有对外操作在同一把锁下完成，互相之间表现为原子；
// 进程重启后数据全部丢失（按设计如此）。
type Store struct {
	mu        sync.RWMutex
	mailboxes map[string]*domain.Mailbox
	byAddress map[string]string
	messages  map[string][]*domain.Message // mailboxID -> 按到达顺序排列的邮件
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		mailboxes: make(map[string]*domain.Mailbox),
		byAddress: make(map[string]string),
		messages:  make(map[string][]*domain.Message),
	}
}

// SaveMailbox 保存新邮箱。
// 地址已被占用时返回 ErrAddressTaken，由调用方重新生成地址后重试；
// 冲突检查与插入在同一临界区内完成，不存在先查后插的竞态窗口。
func (s *Store) SaveMailbox(mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byAddress[mailbox.Address]; taken {
		return ErrAddressTaken
	}

	mb := *mailbox
	s.mailboxes[mb.ID] = &mb
	s.byAddress[mb.Address] = mb.ID
	return nil
}

// GetMailbox 根据 ID 返回邮箱快照。
func (s *Store) GetMailbox(id string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mb, ok := s.mailboxes[id]
	if !ok {
		return nil, ErrMailboxNotFound
	}
	snapshot := *mb
	return &snapshot, nil
}

// GetMailboxByAddress 根据完整地址返回邮箱快照。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, ErrMailboxNotFound
	}
	snapshot := *s.mailboxes[id]
	return &snapshot, nil
}

// AppendMessage 将邮件追加到所属邮箱的尾部。
// 邮箱已不存在时返回 ErrMailboxNotFound；生成器与删除操作的竞争
// 正是通过这个返回值消解的，调用方应静默容忍。
func (s *Store) AppendMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.mailboxes[message.MailboxID]; !ok {
		return ErrMailboxNotFound
	}

	msg := *message
	s.messages[message.MailboxID] = append(s.messages[message.MailboxID], &msg)
	return nil
}

// ListMessages 返回邮箱内全部邮件的有序快照（到达顺序）。
func (s *Store) ListMessages(mailboxID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.mailboxes[mailboxID]; !ok {
		return nil, ErrMailboxNotFound
	}

	msgs := s.messages[mailboxID]
	result := make([]domain.Message, 0, len(msgs))
	for _, msg := range msgs {
		result = append(result, *msg)
	}
	return result, nil
}

// RefreshMailbox 将邮箱过期时间更新为指定时刻。
func (s *Store) RefreshMailbox(id string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[id]
	if !ok {
		return ErrMailboxNotFound
	}
	mb.ExpiresAt = expiresAt
	return nil
}

// DeleteMailbox 删除邮箱及其全部邮件。
func (s *Store) DeleteMailbox(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	mb, ok := s.mailboxes[id]
	if !ok {
		return ErrMailboxNotFound
	}
	delete(s.byAddress, mb.Address)
	delete(s.mailboxes, id)
	delete(s.messages, id)
	return nil
}

// ListMailboxIDs 返回当前全部邮箱 ID 的一致性快照。
// 快照取出后邮箱仍可能被并发删除，后续 AppendMessage 会以
// ErrMailboxNotFound 报告这种竞争。
func (s *Store) ListMailboxIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.mailboxes))
	for id := range s.mailboxes {
		ids = append(ids, id)
	}
	return ids
}

// ExpiredMailboxIDs 返回在指定时刻已过期的邮箱 ID。
func (s *Store) ExpiredMailboxIDs(now time.Time) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, mb := range s.mailboxes {
		if mb.Expired(now) {
			ids = append(ids, id)
		}
	}
	return ids
}

// MailboxCount 返回当前邮箱数量。
func (s *Store) MailboxCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.mailboxes)
}

// MessageCount 返回当前全部邮件数量。
func (s *Store) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, msgs := range s.messages {
		total += len(msgs)
	}
	return total
}

// Health 健康检查。
func (s *Store) Health() error {
	// 内存存储总是健康的
	return nil
}

// Close 关闭存储连接。
func (s *Store) Close() error {
	// 内存存储不需要关闭连接
	return nil
}
