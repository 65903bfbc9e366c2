package smtp

import (
	"fmt"
	"io"
	"mime"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"tempinbox/backend/internal/domain"
	"tempinbox/backend/internal/monitoring"
	"tempinbox/backend/internal/service"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 【安全说明】
// 这是一个只接收邮件的 SMTP 服务器（Receiving-Only SMTP Server）。
// - 只接收发送到本系统邮箱的邮件
// - Rcpt() 严格验证收件人地址必须存在于系统中
// - 不支持对外发送邮件，不会成为开放中继
type Backend struct {
	mailboxes *service.MailboxService
	domain    string
	logger    *zap.Logger
	metrics   *monitoring.Metrics
}

// NewBackend 创建 SMTP Backend。
func NewBackend(mailboxes *service.MailboxService, mailDomain string, logger *zap.Logger, metrics *monitoring.Metrics) *Backend {
	return &Backend{
		mailboxes: mailboxes,
		domain:    strings.ToLower(mailDomain),
		logger:    logger,
		metrics:   metrics,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	return &session{backend: b}, nil
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []recipient
}

type recipient struct {
	address string
	id      string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。
//
// 【安全关键】只接受发送到本系统邮箱的邮件，拒绝所有外部地址，
// 确保服务器不会被用作垃圾邮件中继。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	parts := strings.Split(addr, "@")
	if len(parts) != 2 {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	if !strings.EqualFold(parts[1], s.backend.domain) {
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	mb, err := s.backend.mailboxes.GetByAddress(addr)
	if err != nil {
		// 域名对但邮箱不存在（或已过期删除）
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient mailbox not found",
		}
	}

	s.recipients = append(s.recipients, recipient{address: addr, id: mb.ID})
	return nil
}

// Data 处理邮件内容。解析后逐个收件人落库并推送。
func (s *session) Data(r io.Reader) error {
	rawBytes, err := io.ReadAll(io.LimitReader(r, 10<<20)) // 10MB
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		return fmt.Errorf("parse email: %w", err)
	}

	from := parsed.From
	if from == "" {
		from = s.fromAddress
	}

	for _, rcpt := range s.recipients {
		msg := &domain.Message{
			From:    from,
			To:      rcpt.address,
			Subject: parsed.Subject,
			Body:    parsed.Body(),
		}

		if err := s.backend.mailboxes.Append(rcpt.id, msg); err != nil {
			s.backend.logger.Warn("inbound message dropped",
				zap.String("mailbox_id", rcpt.id),
				zap.Error(err))
			continue
		}

		s.backend.metrics.RecordMessageReceived()
		s.backend.logger.Info("message received",
			zap.String("mailbox_id", rcpt.id),
			zap.String("from", from),
			zap.String("subject", parsed.Subject))
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}

func decodeHeader(value string) string {
	if value == "" {
		return value
	}
	decoder := new(mime.WordDecoder)
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
