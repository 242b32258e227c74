package model

import "time"

// MessageType 消息类型
type MessageType int32

const (
	MessageTypeText        MessageType = 1 // 文本
	MessageTypeGif         MessageType = 2 // GIF
	MessageTypeImage       MessageType = 3 // 图片
	MessageTypeSnap        MessageType = 4 // 阅后即焚照片
	MessageTypeTaggedPhoto MessageType = 5 // 标记照片引用
	MessageTypeReaction    MessageType = 6 // 表态
	MessageTypeReply       MessageType = 7 // 回复
)

// ReplySnapshot 被回复消息的冗余快照
type ReplySnapshot struct {
	MessageId int64       `json:"messageId"`
	SenderId  string      `json:"senderId"`
	MsgType   MessageType `json:"msgType"`
	Preview   string      `json:"preview"`
}

// Message 消息实体（存储在 PostgreSQL）
type Message struct {
	Id              int64             `json:"id" db:"id"`
	ConversationId  string            `json:"conversationId" db:"conversation_id"`
	ClientMsgId     string            `json:"clientMsgId" db:"client_msg_id"`
	SenderId        string            `json:"senderId" db:"sender_id"`
	MsgType         MessageType       `json:"msgType" db:"msg_type"`
	Text            string            `json:"text,omitempty" db:"text"`
	GifURL          string            `json:"gifUrl,omitempty" db:"gif_url"`
	ImageURL        string            `json:"imageUrl,omitempty" db:"image_url"`
	SnapStoragePath string            `json:"snapStoragePath,omitempty" db:"snap_storage_path"`
	TaggedPhotoId   string            `json:"taggedPhotoId,omitempty" db:"tagged_photo_id"`
	ReplyTo         *ReplySnapshot    `json:"replyTo,omitempty" db:"reply_to"`
	Reactions       map[string]string `json:"reactions,omitempty" db:"reactions"` // userId -> emoji
	ViewedAt        *time.Time        `json:"viewedAt,omitempty" db:"viewed_at"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty" db:"expires_at"`
	UnsentAt        *time.Time        `json:"unsentAt,omitempty" db:"unsent_at"`
	CreatedAt       time.Time         `json:"createdAt" db:"created_at"`
}

// Preview 生成消息摘要文本（供会话列表展示）
func (m *Message) Preview() string {
	switch m.MsgType {
	case MessageTypeText, MessageTypeReply:
		return m.Text
	case MessageTypeGif:
		return "[GIF]"
	case MessageTypeImage:
		return "[图片]"
	case MessageTypeSnap:
		return "[快照]"
	case MessageTypeTaggedPhoto:
		return "[标记照片]"
	case MessageTypeReaction:
		return m.Text
	}
	return ""
}

// MessageWindow 一页消息加分页游标
type MessageWindow struct {
	Messages   []*Message `json:"messages"`   // 创建时间倒序（最新在前）
	NextCursor int64      `json:"nextCursor"` // 下一页游标（0 表示无数据）
	HasMore    bool       `json:"hasMore"`
}
