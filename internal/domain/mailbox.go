package domain

import (
	"time"
)

// Mailbox 表示一个有生存期的临时邮箱。
// ID 是注册表的主键，创建后不可变；Address 是面向用户的唯一地址；
// ExpiresAt 是绝对过期时间，可通过刷新操作延长。
type Mailbox struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	LocalPart string    `json:"localPart"`
	Domain    string    `json:"domain"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired 判断邮箱在指定时刻是否已过期。
func (m *Mailbox) Expired(now time.Time) bool {
	return m.ExpiresAt.Before(now)
}
