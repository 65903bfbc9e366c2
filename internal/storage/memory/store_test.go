package memory

import (
	"testing"
	"time"

	"tempinbox/backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMailbox(id, address string, expiresAt time.Time) *domain.Mailbox {
	return &domain.Mailbox{
		ID:        id,
		Address:   address,
		LocalPart: "test",
		Domain:    "temp-inbox.com",
		CreatedAt: time.Now().UTC(),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_MailboxOperations(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().UTC().Add(time.Hour)

	// Test SaveMailbox
	mailbox := newTestMailbox("test-mailbox-1", "test@temp-inbox.com", expiresAt)
	err := store.SaveMailbox(mailbox)
	require.NoError(t, err)

	// Test GetMailbox
	retrieved, err := store.GetMailbox("test-mailbox-1")
	require.NoError(t, err)
	assert.Equal(t, mailbox.Address, retrieved.Address)
	assert.Equal(t, mailbox.Domain, retrieved.Domain)

	// Test GetMailboxByAddress
	retrieved, err = store.GetMailboxByAddress("test@temp-inbox.com")
	require.NoError(t, err)
	assert.Equal(t, mailbox.ID, retrieved.ID)

	// Test DeleteMailbox
	err = store.DeleteMailbox("test-mailbox-1")
	require.NoError(t, err)

	_, err = store.GetMailbox("test-mailbox-1")
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	_, err = store.GetMailboxByAddress("test@temp-inbox.com")
	assert.ErrorIs(t, err, ErrMailboxNotFound)
}

func TestMemoryStore_AddressConflict(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().UTC().Add(time.Hour)

	require.NoError(t, store.SaveMailbox(newTestMailbox("id-1", "dup@temp-inbox.com", expiresAt)))

	// 相同地址不同 ID，应该被拒绝
	err := store.SaveMailbox(newTestMailbox("id-2", "dup@temp-inbox.com", expiresAt))
	assert.ErrorIs(t, err, ErrAddressTaken)

	// 被拒绝的邮箱不应该存在
	_, err = store.GetMailbox("id-2")
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 删除后地址可以复用
	require.NoError(t, store.DeleteMailbox("id-1"))
	assert.NoError(t, store.SaveMailbox(newTestMailbox("id-3", "dup@temp-inbox.com", expiresAt)))
}

func TestMemoryStore_MessageOperations(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().UTC().Add(time.Hour)

	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-1", "a@temp-inbox.com", expiresAt)))

	// 追加三封邮件，检查顺序保持到达顺序
	for i, subject := range []string{"first", "second", "third"} {
		err := store.AppendMessage(&domain.Message{
			ID:         subject,
			MailboxID:  "mb-1",
			From:       "sender@example.com",
			To:         "a@temp-inbox.com",
			Subject:    subject,
			Body:       "body",
			ReceivedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	messages, err := store.ListMessages("mb-1")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "first", messages[0].Subject)
	assert.Equal(t, "second", messages[1].Subject)
	assert.Equal(t, "third", messages[2].Subject)

	// 不存在的邮箱
	err = store.AppendMessage(&domain.Message{ID: "x", MailboxID: "missing"})
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	_, err = store.ListMessages("missing")
	assert.ErrorIs(t, err, ErrMailboxNotFound)

	// 删除邮箱后邮件一并消失
	require.NoError(t, store.DeleteMailbox("mb-1"))
	assert.Equal(t, 0, store.MessageCount())
}

func TestMemoryStore_SnapshotIsolation(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().UTC().Add(time.Hour)

	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-1", "a@temp-inbox.com", expiresAt)))

	// 修改返回的快照不应该影响存储内的数据
	snapshot, err := store.GetMailbox("mb-1")
	require.NoError(t, err)
	snapshot.Address = "tampered@temp-inbox.com"

	fresh, err := store.GetMailbox("mb-1")
	require.NoError(t, err)
	assert.Equal(t, "a@temp-inbox.com", fresh.Address)
}

func TestMemoryStore_RefreshMailbox(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-1", "a@temp-inbox.com", now.Add(time.Minute))))

	newExpiry := now.Add(time.Hour)
	require.NoError(t, store.RefreshMailbox("mb-1", newExpiry))

	mb, err := store.GetMailbox("mb-1")
	require.NoError(t, err)
	assert.True(t, mb.ExpiresAt.Equal(newExpiry))

	assert.ErrorIs(t, store.RefreshMailbox("missing", newExpiry), ErrMailboxNotFound)
}

func TestMemoryStore_ExpiredMailboxIDs(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	require.NoError(t, store.SaveMailbox(newTestMailbox("expired-1", "a@temp-inbox.com", now.Add(-time.Minute))))
	require.NoError(t, store.SaveMailbox(newTestMailbox("expired-2", "b@temp-inbox.com", now.Add(-time.Second))))
	require.NoError(t, store.SaveMailbox(newTestMailbox("alive-1", "c@temp-inbox.com", now.Add(time.Hour))))

	expired := store.ExpiredMailboxIDs(now)
	assert.ElementsMatch(t, []string{"expired-1", "expired-2"}, expired)

	// 过期扫描本身不删除任何东西
	assert.Equal(t, 3, store.MailboxCount())
}

func TestMemoryStore_Counters(t *testing.T) {
	store := NewStore()
	expiresAt := time.Now().UTC().Add(time.Hour)

	assert.Equal(t, 0, store.MailboxCount())
	assert.Equal(t, 0, store.MessageCount())

	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-1", "a@temp-inbox.com", expiresAt)))
	require.NoError(t, store.SaveMailbox(newTestMailbox("mb-2", "b@temp-inbox.com", expiresAt)))
	require.NoError(t, store.AppendMessage(&domain.Message{ID: "m1", MailboxID: "mb-1"}))

	assert.Equal(t, 2, store.MailboxCount())
	assert.Equal(t, 1, store.MessageCount())
	assert.ElementsMatch(t, []string{"mb-1", "mb-2"}, store.ListMailboxIDs())

	assert.NoError(t, store.Health())
	assert.NoError(t, store.Close())
}
