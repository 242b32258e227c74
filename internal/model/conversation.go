package model

import "time"

// LastMessage 会话最后一条消息摘要（冗余存储，供列表渲染）
type LastMessage struct {
	MessageId int64       `json:"messageId"`
	SenderId  string      `json:"senderId"`
	MsgType   MessageType `json:"msgType"`
	Preview   string      `json:"preview"`
	Timestamp time.Time   `json:"timestamp"`
}

// Conversation 会话文档（存储在 Redis，一个配对一份）
type Conversation struct {
	Id           string                `json:"id"`
	Participants [2]string             `json:"participants"`
	LastMessage  *LastMessage          `json:"lastMessage,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
	DeletedAt    map[string]*time.Time `json:"deletedAt"`    // userId -> 软删除时间（nil 表示未删除）
	UnreadCount  map[string]int        `json:"unreadCount"`  // userId -> 未读数
	ReadReceipts map[string]time.Time  `json:"readReceipts"` // userId -> 最后已读时间
}

// UnreadFor 返回指定用户的未读数
func (c *Conversation) UnreadFor(userId string) int {
	if c.UnreadCount == nil {
		return 0
	}
	return c.UnreadCount[userId]
}

// DeletedFor 返回指定用户的软删除时间，未删除时返回 nil
func (c *Conversation) DeletedFor(userId string) *time.Time {
	if c.DeletedAt == nil {
		return nil
	}
	return c.DeletedAt[userId]
}

// HiddenFor 判断会话对指定用户是否隐藏
// 软删除后若对方产生了更新的消息，删除被新活动撤销，会话重新可见
func (c *Conversation) HiddenFor(userId string) bool {
	deletedAt := c.DeletedFor(userId)
	if deletedAt == nil {
		return false
	}
	if c.LastMessage == nil {
		return true
	}
	return !c.LastMessage.Timestamp.After(*deletedAt)
}

// Friend 返回会话中除 userId 以外的参与者
func (c *Conversation) Friend(userId string) string {
	if c.Participants[0] == userId {
		return c.Participants[1]
	}
	return c.Participants[0]
}
