package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/storage/memory"
)

func newTestHub(t *testing.T) (*Hub, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	hub := NewHub([]string{"*"}, store, zap.NewNop(), monitoring.NewTestMetrics())
	return hub, store
}

func newTestMessage(mailboxID, subject string) *domain.Message {
	return &domain.Message{
		ID:         subject,
		MailboxID:  mailboxID,
		From:       "sender@example.com",
		Subject:    subject,
		Body:       "body",
		ReceivedAt: time.Now().UTC(),
	}
}

func TestHub_AttachAndPush(t *testing.T) {
	hub, _ := newTestHub(t)

	sub := hub.Attach("mb-1", nil)
	require.NotNil(t, sub)
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Push("mb-1", newTestMessage("mb-1", "hello"))

	select {
	case data := <-sub.send:
		var envelope Message
		require.NoError(t, json.Unmarshal(data, &envelope))
		assert.Equal(t, MessageTypeNewMail, envelope.Type)
		assert.Equal(t, "mb-1", envelope.MailboxID)

		var msg domain.Message
		require.NoError(t, json.Unmarshal(envelope.Data, &msg))
		assert.Equal(t, "hello", msg.Subject)
	default:
		t.Fatal("expected message in subscriber channel")
	}
}

func TestHub_PushWithoutSubscriber(t *testing.T) {
	hub, _ := newTestHub(t)

	// 没有订阅者时推送是空操作，不应该 panic
	hub.Push("mb-1", newTestMessage("mb-1", "unheard"))
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_Supersession(t *testing.T) {
	hub, _ := newTestHub(t)

	old := hub.Attach("mb-1", nil)
	replacement := hub.Attach("mb-1", nil)

	t.Run("同一邮箱只保留最新的订阅者", func(t *testing.T) {
		assert.Equal(t, 1, hub.SubscriberCount())
		assert.Same(t, replacement, hub.Subscriber("mb-1"))
	})

	t.Run("旧订阅者的通道被关闭", func(t *testing.T) {
		_, ok := <-old.send
		assert.False(t, ok)
	})

	t.Run("推送只到达新订阅者", func(t *testing.T) {
		hub.Push("mb-1", newTestMessage("mb-1", "for-new"))
		assert.Len(t, replacement.send, 1)
	})
}

func TestHub_DetachOnlyRemovesSelf(t *testing.T) {
	hub, _ := newTestHub(t)

	old := hub.Attach("mb-1", nil)
	replacement := hub.Attach("mb-1", nil)

	// 被顶替的旧连接迟到的 Detach 不应该摘掉新连接
	hub.Detach(old)
	assert.Same(t, replacement, hub.Subscriber("mb-1"))

	hub.Detach(replacement)
	assert.Nil(t, hub.Subscriber("mb-1"))
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_PushToBlockedSubscriberDetaches(t *testing.T) {
	hub, _ := newTestHub(t)

	sub := hub.Attach("mb-1", nil)

	// 填满发送缓冲，下一次推送视为连接失效
	for i := 0; i < cap(sub.send); i++ {
		hub.Push("mb-1", newTestMessage("mb-1", "fill"))
	}
	require.Equal(t, 1, hub.SubscriberCount())

	hub.Push("mb-1", newTestMessage("mb-1", "overflow"))
	assert.Nil(t, hub.Subscriber("mb-1"))
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_PushWithoutMetrics(t *testing.T) {
	store := memory.NewStore()
	hub := NewHub([]string{"*"}, store, zap.NewNop(), nil)

	sub := hub.Attach("mb-1", nil)

	// 未配置监控时推送照常工作
	hub.Push("mb-1", newTestMessage("mb-1", "quiet"))
	assert.Len(t, sub.send, 1)

	// 缓冲写满后的失败路径同样不依赖监控
	for i := 0; i < cap(sub.send); i++ {
		hub.Push("mb-1", newTestMessage("mb-1", "fill"))
	}
	hub.Push("mb-1", newTestMessage("mb-1", "overflow"))
	assert.Nil(t, hub.Subscriber("mb-1"))
}

func TestHub_CloseMailbox(t *testing.T) {
	hub, _ := newTestHub(t)

	sub := hub.Attach("mb-1", nil)
	hub.CloseMailbox("mb-1")

	assert.Nil(t, hub.Subscriber("mb-1"))

	_, ok := <-sub.send
	assert.False(t, ok)

	// 没有订阅者的邮箱关闭是空操作
	hub.CloseMailbox("mb-2")
}

func TestHub_CloseAll(t *testing.T) {
	hub, _ := newTestHub(t)

	first := hub.Attach("mb-1", nil)
	second := hub.Attach("mb-2", nil)

	hub.closeAll()

	assert.Equal(t, 0, hub.SubscriberCount())
	_, ok := <-first.send
	assert.False(t, ok)
	_, ok = <-second.send
	assert.False(t, ok)
}
