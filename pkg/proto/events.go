package proto

// ============== 上行事件 (发送端 -> 同步服务) ==============

// UpstreamEvent 上行事件封装
type UpstreamEvent struct {
	MessageCreated   *MessageCreated   `json:"MessageCreated,omitempty"`
	MessageUnsent    *MessageUnsent    `json:"MessageUnsent,omitempty"`
	ConversationRead *ConversationRead `json:"ConversationRead,omitempty"`
	SnapViewed       *SnapViewed       `json:"SnapViewed,omitempty"`
}

// MessageCreated 消息创建事件
type MessageCreated struct {
	ConversationId string `json:"ConversationId"`
	MessageId      int64  `json:"MessageId"`
	ClientMsgId    string `json:"ClientMsgId"`
	SenderId       string `json:"SenderId"`
	MsgType        int32  `json:"MsgType"`
	Preview        string `json:"Preview"`
	CreatedAt      int64  `json:"CreatedAt"` // 毫秒时间戳
}

// MessageUnsent 消息撤回事件
type MessageUnsent struct {
	ConversationId string `json:"ConversationId"`
	MessageId      int64  `json:"MessageId"`
	SenderId       string `json:"SenderId"`
	Timestamp      int64  `json:"Timestamp"`
}

// ConversationRead 会话已读事件
type ConversationRead struct {
	ConversationId string `json:"ConversationId"`
	UserId         string `json:"UserId"`
	Timestamp      int64  `json:"Timestamp"`
}

// SnapViewed 阅后即焚消息已查看事件
// 触发处理器据此调度过期清理（删除媒体对象）
type SnapViewed struct {
	ConversationId  string `json:"ConversationId"`
	MessageId       int64  `json:"MessageId"`
	ViewerId        string `json:"ViewerId"`
	SnapStoragePath string `json:"SnapStoragePath"`
	ExpiresAt       int64  `json:"ExpiresAt"` // 毫秒时间戳
}

// ============== 下行事件 (同步服务 -> 订阅端) ==============

// ConversationEvent 会话内事件封装（消息流 subject）
type ConversationEvent struct {
	MessageCreated *MessageCreated `json:"MessageCreated,omitempty"`
	MessageUnsent  *MessageUnsent  `json:"MessageUnsent,omitempty"`
	ReactionAdded  *ReactionAdded  `json:"ReactionAdded,omitempty"`
}

// ReactionAdded 消息表态事件
type ReactionAdded struct {
	ConversationId string `json:"ConversationId"`
	MessageId      int64  `json:"MessageId"`
	UserId         string `json:"UserId"`
	Emoji          string `json:"Emoji"`
	Timestamp      int64  `json:"Timestamp"`
}

// MetaChanged 会话文档变更事件（元数据 subject）
// 只是变更通知，订阅端收到后重新拉取会话文档
type MetaChanged struct {
	ConversationId string `json:"ConversationId"`
	Timestamp      int64  `json:"Timestamp"`
}

// InboxChanged 会话列表变更事件（收件箱 subject）
type InboxChanged struct {
	UserId         string `json:"UserId"`
	ConversationId string `json:"ConversationId"`
	Timestamp      int64  `json:"Timestamp"`
}

// StreakChanged 连续互动变更事件
type StreakChanged struct {
	StreakId  string `json:"StreakId"`
	Timestamp int64  `json:"Timestamp"`
}
