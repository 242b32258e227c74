package nats

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"sudooom.im.sync/pkg/proto"
)

// EventPublisher 事件发布器
type EventPublisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewEventPublisher 创建事件发布器
func NewEventPublisher(nc *nats.Conn) *EventPublisher {
	return &EventPublisher{
		nc:     nc,
		logger: slog.Default(),
	}
}

// publish 序列化并发布到指定 subject
func (p *EventPublisher) publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("Failed to marshal event", "subject", subject, "error", err)
		return err
	}

	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Error("Failed to publish event", "subject", subject, "error", err)
		return err
	}

	p.logger.Debug("Published event", "subject", subject)
	return nil
}

// PublishUpstream 发布上行事件（触发处理器消费）
func (p *EventPublisher) PublishUpstream(event *proto.UpstreamEvent) error {
	return p.publish(SubjectUpstream, event)
}

// PublishConversationEvent 发布会话消息流事件
func (p *EventPublisher) PublishConversationEvent(conversationId string, event *proto.ConversationEvent) error {
	return p.publish(BuildMessageSubject(conversationId), event)
}

// PublishMetaChanged 发布会话文档变更通知
func (p *EventPublisher) PublishMetaChanged(conversationId string) error {
	return p.publish(BuildMetaSubject(conversationId), &proto.MetaChanged{
		ConversationId: conversationId,
		Timestamp:      time.Now().UnixMilli(),
	})
}

// PublishInboxChanged 发布用户收件箱变更通知
func (p *EventPublisher) PublishInboxChanged(userId, conversationId string) error {
	return p.publish(BuildInboxSubject(userId), &proto.InboxChanged{
		UserId:         userId,
		ConversationId: conversationId,
		Timestamp:      time.Now().UnixMilli(),
	})
}

// PublishStreakChanged 发布连续互动变更通知
func (p *EventPublisher) PublishStreakChanged(streakId string) error {
	return p.publish(BuildStreakSubject(streakId), &proto.StreakChanged{
		StreakId:  streakId,
		Timestamp: time.Now().UnixMilli(),
	})
}
