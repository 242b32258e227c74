package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/internal/task"
	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/proto"
)

// conversationApplier 触发处理器依赖的会话文档操作
type conversationApplier interface {
	ApplySend(ctx context.Context, conversationId, senderId string, last *model.LastMessage) error
	MarkRead(ctx context.Context, conversationId, userId string) error
}

// streakApplier 触发处理器依赖的连续互动操作
type streakApplier interface {
	ApplySnap(ctx context.Context, streakId, senderId string, now time.Time) (*model.Streak, error)
	MarkWarning(ctx context.Context, streakId string) error
	Expire(ctx context.Context, streakId string, now time.Time) error
}

// taskScheduler 延迟任务端口
type taskScheduler interface {
	AddTask(t *task.Task) error
}

// mediaCleaner 媒体对象清理端口
type mediaCleaner interface {
	Delete(ctx context.Context, objectName string) error
}

// EventHandler 上行事件触发处理器
// 消息写入后的所有衍生副作用都在这里收口：会话元数据、未读数、
// 连续互动推进和过期调度。客户端只写消息，不直接改这些文档
type EventHandler struct {
	conversations conversationApplier
	streaks       streakApplier
	scheduler     taskScheduler
	publisher     service.Publisher
	media         mediaCleaner
	warningLead   time.Duration // 过期前多久标记 warning
	logger        *slog.Logger
}

// NewEventHandler 创建触发处理器
func NewEventHandler(
	conversations conversationApplier,
	streaks streakApplier,
	scheduler taskScheduler,
	publisher service.Publisher,
	media mediaCleaner,
	warningLead time.Duration,
) *EventHandler {
	return &EventHandler{
		conversations: conversations,
		streaks:       streaks,
		scheduler:     scheduler,
		publisher:     publisher,
		media:         media,
		warningLead:   warningLead,
		logger:        slog.Default(),
	}
}

// HandleMessageCreated 处理消息创建事件
func (h *EventHandler) HandleMessageCreated(ctx context.Context, event *proto.MessageCreated) {
	last := &model.LastMessage{
		MessageId: event.MessageId,
		SenderId:  event.SenderId,
		MsgType:   model.MessageType(event.MsgType),
		Preview:   event.Preview,
		Timestamp: time.UnixMilli(event.CreatedAt),
	}

	if err := h.conversations.ApplySend(ctx, event.ConversationId, event.SenderId, last); err != nil {
		h.logger.Error("Failed to apply send to conversation",
			"conversationId", event.ConversationId,
			"messageId", event.MessageId,
			"error", err)
		return
	}

	h.notifyParticipants(event.ConversationId)

	if model.MessageType(event.MsgType) == model.MessageTypeSnap {
		h.applySnap(ctx, event)
	}
}

// applySnap 推进连续互动并调度 warning / 过期任务
func (h *EventHandler) applySnap(ctx context.Context, event *proto.MessageCreated) {
	st, err := h.streaks.ApplySnap(ctx, event.ConversationId, event.SenderId, time.UnixMilli(event.CreatedAt))
	if err != nil {
		h.logger.Error("Failed to apply snap to streak",
			"streakId", event.ConversationId,
			"senderId", event.SenderId,
			"error", err)
		return
	}
	if st.ExpiresAt == nil {
		return
	}

	streakId := st.Id
	warnDelay := int(time.Until(st.ExpiresAt.Add(-h.warningLead)) / time.Second)
	if warnDelay > 0 {
		warnTask := task.NewTask(
			fmt.Sprintf("streak-warn:%s:%d", streakId, event.MessageId),
			streakId,
			warnDelay,
			func(ctx context.Context, target string) error {
				return h.streaks.MarkWarning(ctx, target)
			},
		)
		if err := h.scheduler.AddTask(warnTask); err != nil {
			h.logger.Warn("Failed to schedule streak warning", "streakId", streakId, "error", err)
		}
	}

	// 过期后顺延一秒再检查，避免和边界上的新互动竞争
	expireAt := *st.ExpiresAt
	expireDelay := int(time.Until(expireAt)/time.Second) + 1
	expireTask := task.NewTask(
		fmt.Sprintf("streak-expire:%s:%d", streakId, event.MessageId),
		streakId,
		expireDelay,
		func(ctx context.Context, target string) error {
			return h.streaks.Expire(ctx, target, expireAt.Add(time.Second))
		},
	)
	if err := h.scheduler.AddTask(expireTask); err != nil {
		h.logger.Warn("Failed to schedule streak expiry", "streakId", streakId, "error", err)
	}
}

// HandleMessageUnsent 处理消息撤回事件
// 撤回可能命中会话的最后消息摘要，通知双方重新拉取
func (h *EventHandler) HandleMessageUnsent(ctx context.Context, event *proto.MessageUnsent) {
	h.notifyParticipants(event.ConversationId)
}

// HandleSnapViewed 处理阅后即焚查看事件
// 窗口查询会在过期后立即过滤该消息，这里只负责清掉落盘的媒体对象
func (h *EventHandler) HandleSnapViewed(ctx context.Context, event *proto.SnapViewed) {
	if event.SnapStoragePath == "" {
		return
	}

	expireAt := time.UnixMilli(event.ExpiresAt)
	delay := int(time.Until(expireAt)/time.Second) + 1
	cleanTask := task.NewTask(
		fmt.Sprintf("snap-clean:%d", event.MessageId),
		event.SnapStoragePath,
		delay,
		func(ctx context.Context, target string) error {
			return h.media.Delete(ctx, target)
		},
	)
	if err := h.scheduler.AddTask(cleanTask); err != nil {
		h.logger.Warn("Failed to schedule snap cleanup",
			"messageId", event.MessageId,
			"storagePath", event.SnapStoragePath,
			"error", err)
	}
}

// HandleConversationRead 处理会话已读事件
func (h *EventHandler) HandleConversationRead(ctx context.Context, event *proto.ConversationRead) {
	if err := h.conversations.MarkRead(ctx, event.ConversationId, event.UserId); err != nil {
		h.logger.Error("Failed to mark conversation read",
			"conversationId", event.ConversationId,
			"userId", event.UserId,
			"error", err)
	}
}

// notifyParticipants 向会话双方推送元数据与收件箱变更
func (h *EventHandler) notifyParticipants(conversationId string) {
	if err := h.publisher.PublishMetaChanged(conversationId); err != nil {
		h.logger.Warn("Failed to publish meta change", "conversationId", conversationId, "error", err)
	}

	a, b, ok := pair.Participants(conversationId)
	if !ok {
		return
	}
	for _, userId := range []string{a, b} {
		if err := h.publisher.PublishInboxChanged(userId, conversationId); err != nil {
			h.logger.Warn("Failed to publish inbox change",
				"conversationId", conversationId,
				"userId", userId,
				"error", err)
		}
	}
}
