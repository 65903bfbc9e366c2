package domain

import "time"

// Message 表示临时邮箱内的一封邮件。
// 邮件归属于其邮箱，随邮箱一起销毁；内容字段对核心逻辑是不透明的。
type Message struct {
	ID         string    `json:"id"`
	MailboxID  string    `json:"mailboxId"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"receivedAt"`
}
