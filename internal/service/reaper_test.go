package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage/memory"
)

func TestReaper_SweepOnce(t *testing.T) {
	store := memory.NewStore()
	notifier := &fakeNotifier{}

	reaper := NewReaper(store, 60*time.Second, zap.NewNop(), monitoring.NewTestMetrics())
	reaper.SetNotifier(notifier)

	now := time.Now().UTC()

	saveMailbox := func(id string, expiresAt time.Time) {
		t.Helper()
		require.NoError(t, store.SaveMailbox(&domain.Mailbox{
			ID:        id,
			Address:   id + "@temp-inbox.com",
			LocalPart: id,
			Domain:    "temp-inbox.com",
			CreatedAt: now.Add(-time.Hour),
			ExpiresAt: expiresAt,
		}))
	}

	saveMailbox("expired-1", now.Add(-time.Minute))
	saveMailbox("expired-2", now.Add(-time.Second))
	saveMailbox("alive-1", now.Add(time.Hour))

	require.NoError(t, store.AppendMessage(&domain.Message{ID: "m1", MailboxID: "expired-1"}))
	require.NoError(t, store.AppendMessage(&domain.Message{ID: "m2", MailboxID: "alive-1"}))

	removed := reaper.SweepOnce(now)
	assert.Equal(t, 2, removed)

	t.Run("过期邮箱连同邮件被删除", func(t *testing.T) {
		_, err := store.GetMailbox("expired-1")
		assert.ErrorIs(t, err, memory.ErrMailboxNotFound)
		_, err = store.GetMailbox("expired-2")
		assert.ErrorIs(t, err, memory.ErrMailboxNotFound)
		assert.Equal(t, 1, store.MessageCount())
	})

	t.Run("未过期邮箱保留", func(t *testing.T) {
		_, err := store.GetMailbox("alive-1")
		assert.NoError(t, err)
	})

	t.Run("过期邮箱的推送通道被关闭", func(t *testing.T) {
		assert.ElementsMatch(t, []string{"expired-1", "expired-2"}, notifier.closedIDs())
	})

	t.Run("再次扫描没有可清理的邮箱", func(t *testing.T) {
		assert.Equal(t, 0, reaper.SweepOnce(now))
	})
}

func TestReaper_SweepOnce_ExactBoundary(t *testing.T) {
	store := memory.NewStore()
	reaper := NewReaper(store, 60*time.Second, zap.NewNop(), monitoring.NewTestMetrics())

	now := time.Now().UTC()

	// 过期时间恰好等于当前时刻的邮箱尚未过期
	require.NoError(t, store.SaveMailbox(&domain.Mailbox{
		ID:        "boundary",
		Address:   "boundary@temp-inbox.com",
		CreatedAt: now.Add(-time.Hour),
		ExpiresAt: now,
	}))

	assert.Equal(t, 0, reaper.SweepOnce(now))
	assert.Equal(t, 1, reaper.SweepOnce(now.Add(time.Nanosecond)))
}
