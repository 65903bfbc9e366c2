package httptransport

import (
	"tempinbox/backend/internal/storage/memory"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	memory.ErrMailboxNotFound: "邮箱不存在",
	memory.ErrAddressTaken:    "邮箱地址已被占用",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	if msg, ok := errorMessages[err]; ok {
		return msg
	}
	return err.Error()
}

// 通用错误消息
const (
	// 请求相关
	MsgInvalidRequest   = "请求参数格式错误"
	MsgMailboxIDMissing = "缺少邮箱ID参数"
	MsgRateLimited      = "请求过于频繁，请稍后重试"

	// 邮箱相关
	MsgMailboxCreateFailed  = "创建邮箱失败"
	MsgMailboxNotFound      = "邮箱不存在"
	MsgMailboxDeleteFailed  = "删除邮箱失败"
	MsgMailboxRefreshFailed = "续期邮箱失败"

	// 邮件相关
	MsgMessageListFailed = "获取邮件列表失败"

	// 服务器错误
	MsgInternalError = "服务器内部错误，请稍后重试"
)
