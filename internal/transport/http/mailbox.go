package httptransport

import (
	"time"

	"github.com/gin-gonic/gin"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/storage/memory"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mailboxes *service.MailboxService
}

// NewHandler 创建 HTTP 处理器。
func NewHandler(mailboxes *service.MailboxService) *Handler {
	return &Handler{mailboxes: mailboxes}
}

// MailboxView 邮箱响应视图
type MailboxView struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	CreatedAt string `json:"createdAt"`
	ExpiresAt string `json:"expiresAt"`
}

// MessageView 邮件响应视图
type MessageView struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
	ReceivedAt string `json:"receivedAt"`
}

func newMailboxView(m *domain.Mailbox) MailboxView {
	return MailboxView{
		ID:        m.ID,
		Address:   m.Address,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
		ExpiresAt: m.ExpiresAt.Format(time.RFC3339),
	}
}

func newMessageView(msg domain.Message) MessageView {
	return MessageView{
		ID:         msg.ID,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		Body:       msg.Body,
		ReceivedAt: msg.ReceivedAt.Format(time.RFC3339),
	}
}

// CreateMailbox 创建新的临时邮箱。
func (h *Handler) CreateMailbox(c *gin.Context) {
	mailbox, err := h.mailboxes.Create()
	if err != nil {
		InternalError(c, MsgMailboxCreateFailed)
		return
	}

	Created(c, newMailboxView(mailbox))
}

// GetMailbox 获取邮箱详情。
func (h *Handler) GetMailbox(c *gin.Context) {
	id := c.Param("id")

	mailbox, err := h.mailboxes.Get(id)
	if err != nil {
		if err == memory.ErrMailboxNotFound {
			NotFound(c, MsgMailboxNotFound)
			return
		}
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, newMailboxView(mailbox))
}

// ListMessages 获取邮箱内全部邮件，按到达顺序排列。
func (h *Handler) ListMessages(c *gin.Context) {
	id := c.Param("id")

	messages, err := h.mailboxes.Messages(id)
	if err != nil {
		if err == memory.ErrMailboxNotFound {
			NotFound(c, MsgMailboxNotFound)
			return
		}
		InternalError(c, MsgMessageListFailed)
		return
	}

	views := make([]MessageView, 0, len(messages))
	for _, msg := range messages {
		views = append(views, newMessageView(msg))
	}

	Success(c, gin.H{
		"messages": views,
		"count":    len(views),
	})
}

// RefreshMailbox 重置邮箱的过期时间。
func (h *Handler) RefreshMailbox(c *gin.Context) {
	id := c.Param("id")

	mailbox, err := h.mailboxes.Refresh(id)
	if err != nil {
		if err == memory.ErrMailboxNotFound {
			NotFound(c, MsgMailboxNotFound)
			return
		}
		InternalError(c, MsgMailboxRefreshFailed)
		return
	}

	Success(c, newMailboxView(mailbox))
}

// DeleteMailbox 删除邮箱及其全部邮件。
func (h *Handler) DeleteMailbox(c *gin.Context) {
	id := c.Param("id")

	if err := h.mailboxes.Delete(id); err != nil {
		if err == memory.ErrMailboxNotFound {
			NotFound(c, MsgMailboxNotFound)
			return
		}
		InternalError(c, MsgMailboxDeleteFailed)
		return
	}

	NoContent(c)
}
