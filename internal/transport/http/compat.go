package httptransport

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/service"
	"tempinbox/backend/internal/storage/memory"
)

// CompatHandler 兼容旧版前端的 API 处理器。
// 响应格式与旧接口保持一致，不使用统一响应结构。
type CompatHandler struct {
	mailboxes *service.MailboxService
}

// NewCompatHandler 创建兼容API处理器
func NewCompatHandler(mailboxes *service.MailboxService) *CompatHandler {
	return &CompatHandler{mailboxes: mailboxes}
}

// compatEmailRequest 兼容接口的请求体
type compatEmailRequest struct {
	EmailID string `json:"email_id" binding:"required"`
}

// compatMessage 兼容接口的邮件结构
type compatMessage struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func newCompatMessage(msg domain.Message) compatMessage {
	return compatMessage{
		ID:      msg.ID,
		Sender:  msg.From,
		Subject: msg.Subject,
		Body:    msg.Body,
	}
}

// NewEmail 创建新的临时邮箱，返回邮箱ID和地址。
func (h *CompatHandler) NewEmail(c *gin.Context) {
	mailbox, err := h.mailboxes.Create()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to create email address."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email_id":      mailbox.ID,
		"email_address": mailbox.Address,
	})
}

// CheckEmail 返回邮箱内全部邮件（WebSocket 的轮询兜底）。
func (h *CompatHandler) CheckEmail(c *gin.Context) {
	emailID := c.Param("emailId")

	messages, err := h.mailboxes.Messages(emailID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Email ID not found or has expired."})
		return
	}

	inbox := make([]compatMessage, 0, len(messages))
	for _, msg := range messages {
		inbox = append(inbox, newCompatMessage(msg))
	}

	c.JSON(http.StatusOK, gin.H{"inbox": inbox})
}

// DeleteEmail 删除邮箱及其全部邮件。
func (h *CompatHandler) DeleteEmail(c *gin.Context) {
	var req compatEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "email_id is required."})
		return
	}

	mailbox, err := h.mailboxes.Get(req.EmailID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Email ID not found or has already been deleted."})
		return
	}

	if err := h.mailboxes.Delete(req.EmailID); err != nil {
		if err == memory.ErrMailboxNotFound {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Email ID not found or has already been deleted."})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to delete email address."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Email address %s and its inbox have been deleted.", mailbox.Address),
	})
}

// RefreshEmail 重置邮箱的一小时过期计时。
func (h *CompatHandler) RefreshEmail(c *gin.Context) {
	var req compatEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "email_id is required."})
		return
	}

	mailbox, err := h.mailboxes.Refresh(req.EmailID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "Email ID not found or has expired."})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Timer for %s has been reset to one hour.", mailbox.Address),
	})
}
