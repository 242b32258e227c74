package pair

import (
	"fmt"
	"strings"
)

// Separator 配对 ID 分隔符
const Separator = "_"

// ErrInvalidUserID 用户 ID 非法（为空或包含分隔符）
var ErrInvalidUserID = fmt.Errorf("user id must be non-empty and must not contain %q", Separator)

// Validate 校验用户 ID 是否可参与配对
// ID 中不允许出现分隔符，否则两个不同的配对可能产生相同的 Key
func Validate(userId string) error {
	if userId == "" || strings.Contains(userId, Separator) {
		return ErrInvalidUserID
	}
	return nil
}

// ConversationID 根据两个用户 ID 推导会话 ID
// 按字典序排序后拼接，保证交换律：ConversationID(a, b) == ConversationID(b, a)
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + Separator + b
}

// StreakID 根据两个用户 ID 推导连续互动 ID
// 与会话 ID 使用同一推导规则，保持独立的构造函数便于调用方区分语义
func StreakID(a, b string) string {
	return ConversationID(a, b)
}

// Participants 解析配对 ID，返回按字典序排列的两个参与者
func Participants(pairId string) (string, string, bool) {
	a, b, ok := strings.Cut(pairId, Separator)
	if !ok || a == "" || b == "" {
		return "", "", false
	}
	return a, b, true
}

// Other 返回配对中除 me 以外的另一个参与者
// me 不在配对中时返回空字符串
func Other(pairId, me string) string {
	a, b, ok := Participants(pairId)
	if !ok {
		return ""
	}
	switch me {
	case a:
		return b
	case b:
		return a
	}
	return ""
}

// Contains 判断用户是否为配对参与者
func Contains(pairId, userId string) bool {
	a, b, ok := Participants(pairId)
	return ok && (userId == a || userId == b)
}
