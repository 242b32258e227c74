package nats

const (
	// SubjectUpstream 上行事件 subject（发送端 -> 触发处理器）
	SubjectUpstream = "im.sync.upstream"

	// QueueGroupSync 触发处理器队列组（多实例负载均衡）
	QueueGroupSync = "im-sync-workers"
)

// BuildMessageSubject 会话消息流 subject
func BuildMessageSubject(conversationId string) string {
	return "im.sync.conv." + conversationId + ".msg"
}

// BuildMetaSubject 会话文档变更 subject
func BuildMetaSubject(conversationId string) string {
	return "im.sync.conv." + conversationId + ".meta"
}

// BuildInboxSubject 用户收件箱变更 subject
func BuildInboxSubject(userId string) string {
	return "im.sync.user." + userId + ".inbox"
}

// BuildStreakSubject 连续互动变更 subject
func BuildStreakSubject(streakId string) string {
	return "im.sync.streak." + streakId
}
