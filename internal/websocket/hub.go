package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
)

// MailboxStore 邮箱存储接口，用于在建立连接时验证邮箱存在。
type MailboxStore interface {
	GetMailbox(id string) (*domain.Mailbox, error)
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视为同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}

			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMail       MessageType = "new_mail"
	MessageTypeMailboxClosed MessageType = "mailbox_closed"
	MessageTypePing          MessageType = "ping"
	MessageTypePong          MessageType = "pong"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	MailboxID string          `json:"mailboxId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Subscriber 代表某个邮箱当前的推送通道。
// 每个邮箱同一时刻最多只有一个 Subscriber。
type Subscriber struct {
	mailboxID string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	log       *zap.Logger

	mu     sync.Mutex
	closed bool
}

// Hub 管理各邮箱的推送通道。
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber // mailboxID -> 当前订阅者

	log            *zap.Logger
	metrics        *monitoring.Metrics
	allowedOrigins []string
	mailboxStore   MailboxStore
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, mailboxStore MailboxStore, logger *zap.Logger, metrics *monitoring.Metrics) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Hub{
		subscribers:    make(map[string]*Subscriber),
		log:            logger,
		metrics:        metrics,
		allowedOrigins: allowedOrigins,
		mailboxStore:   mailboxStore,
	}
}

// Run 运行到 ctx 取消，退出时关闭所有推送通道。
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()
	h.closeAll()
	h.log.Info("websocket hub stopped")
	return ctx.Err()
}

// Attach 将连接注册为邮箱的推送通道。
// 邮箱已有订阅者时旧连接被顶替并关闭，新连接成为唯一通道。
func (h *Hub) Attach(mailboxID string, conn *websocket.Conn) *Subscriber {
	sub := &Subscriber{
		mailboxID: mailboxID,
		conn:      conn,
		send:      make(chan []byte, 64),
		hub:       h,
		log:       h.log,
	}

	h.mu.Lock()
	old := h.subscribers[mailboxID]
	h.subscribers[mailboxID] = sub
	h.mu.Unlock()

	if old != nil {
		old.shutdown()
		h.log.Info("subscriber superseded", zap.String("mailbox_id", mailboxID))
	}

	h.updateSubscriberGauge()
	h.log.Info("subscriber attached", zap.String("mailbox_id", mailboxID))
	return sub
}

// Detach 移除邮箱的推送通道。只有当该邮箱的当前订阅者
// 仍是 sub 本身时才移除，防止误摘掉顶替后的新连接。
func (h *Hub) Detach(sub *Subscriber) {
	h.mu.Lock()
	if h.subscribers[sub.mailboxID] == sub {
		delete(h.subscribers, sub.mailboxID)
	}
	h.mu.Unlock()

	sub.shutdown()
	h.updateSubscriberGauge()
	h.log.Info("subscriber detached", zap.String("mailbox_id", sub.mailboxID))
}

// Push 向邮箱当前的推送通道投递一封邮件。没有订阅者时为空操作。
// 通道阻塞视为连接失效，移除订阅者；邮件本身已持久化，不会丢失。
func (h *Hub) Push(mailboxID string, msg *domain.Message) {
	h.mu.RLock()
	sub := h.subscribers[mailboxID]
	h.mu.RUnlock()

	if sub == nil {
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	envelope, err := json.Marshal(&Message{
		Type:      MessageTypeNewMail,
		MailboxID: mailboxID,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		h.log.Error("failed to marshal envelope", zap.Error(err))
		return
	}

	if sub.trySend(envelope) {
		if h.metrics != nil {
			h.metrics.RecordPushDelivered()
		}
		return
	}

	h.log.Warn("subscriber channel blocked, detaching",
		zap.String("mailbox_id", mailboxID))
	if h.metrics != nil {
		h.metrics.RecordPushFailed()
	}
	h.Detach(sub)
}

// CloseMailbox 关闭邮箱的推送通道（邮箱被删除或过期时调用）。
func (h *Hub) CloseMailbox(mailboxID string) {
	h.mu.Lock()
	sub := h.subscribers[mailboxID]
	delete(h.subscribers, mailboxID)
	h.mu.Unlock()

	if sub == nil {
		return
	}

	sub.shutdown()
	h.updateSubscriberGauge()
	h.log.Info("subscriber closed with mailbox", zap.String("mailbox_id", mailboxID))
}

// Subscriber 返回邮箱当前的订阅者，没有时返回 nil。
func (h *Hub) Subscriber(mailboxID string) *Subscriber {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.subscribers[mailboxID]
}

// SubscriberCount 返回当前已连接的推送通道数。
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// closeAll 关闭所有推送通道。
func (h *Hub) closeAll() {
	h.mu.Lock()
	subs := make([]*Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[string]*Subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		sub.shutdown()
	}
	h.updateSubscriberGauge()
}

func (h *Hub) updateSubscriberGauge() {
	if h.metrics != nil {
		h.metrics.UpdateSubscribersActive(h.SubscriberCount())
	}
}

// trySend 非阻塞投递。通道已关闭或已满时返回 false。
func (s *Subscriber) trySend(data []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// shutdown 关闭订阅者的发送通道，writePump 随之发出关闭帧并退出。
func (s *Subscriber) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// HandleWebSocket 处理WebSocket连接。邮箱不存在时以 1008 拒绝，
// 与 HTTP 层保持同样的存在性校验。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		mailboxID := c.Query("mailboxId")
		if mailboxID == "" {
			mailboxID = c.Param("mailboxId")
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Error("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		if _, err := hub.mailboxStore.GetMailbox(mailboxID); err != nil {
			hub.log.Warn("websocket rejected: mailbox not found",
				zap.String("mailbox_id", mailboxID),
				zap.String("remote_addr", c.ClientIP()))
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "mailbox not found"),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}

		sub := hub.Attach(mailboxID, conn)

		go sub.writePump()
		go sub.readPump()
	}
}

// readPump 消费客户端消息，主要用于感知断开。
func (s *Subscriber) readPump() {
	defer func() {
		s.hub.Detach(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(4096)
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read error",
					zap.String("mailbox_id", s.mailboxID),
					zap.Error(err))
			}
			break
		}
	}
}

// writePump 发送消息给客户端
func (s *Subscriber) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
