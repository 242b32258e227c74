package service

import "sudooom.im.sync/pkg/proto"

// Publisher 事件发布端口
// 由 internal/nats 的 EventPublisher 实现，测试中可替换
type Publisher interface {
	PublishUpstream(event *proto.UpstreamEvent) error
	PublishConversationEvent(conversationId string, event *proto.ConversationEvent) error
	PublishMetaChanged(conversationId string) error
	PublishInboxChanged(userId, conversationId string) error
	PublishStreakChanged(streakId string) error
}
