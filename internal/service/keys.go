package service

const (
	// ConversationKeyPrefix 会话文档 Key 前缀
	ConversationKeyPrefix = "im:sync:conv:"

	// ConversationIndexKeyPrefix 用户会话索引 Key 前缀
	ConversationIndexKeyPrefix = "im:sync:conv:index:"

	// StreakKeyPrefix 连续互动文档 Key 前缀
	StreakKeyPrefix = "im:sync:streak:"

	// ProfileKeyPrefix 用户资料投影 Key 前缀
	ProfileKeyPrefix = "im:sync:profile:"
)

// BuildConversationKey 构建会话文档 Key
func BuildConversationKey(conversationId string) string {
	return ConversationKeyPrefix + conversationId
}

// BuildConversationIndexKey 构建用户会话索引 Key
func BuildConversationIndexKey(userId string) string {
	return ConversationIndexKeyPrefix + userId
}

// BuildStreakKey 构建连续互动文档 Key
func BuildStreakKey(streakId string) string {
	return StreakKeyPrefix + streakId
}

// BuildProfileKey 构建用户资料 Key
func BuildProfileKey(userId string) string {
	return ProfileKeyPrefix + userId
}
