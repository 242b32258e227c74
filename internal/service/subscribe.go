package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	imNats "sudooom.im.sync/internal/nats"
	"sudooom.im.sync/internal/model"
)

// fetchTimeout 订阅回调内重新拉取数据的超时
const fetchTimeout = 5 * time.Second

// SubscriptionService 实时订阅服务
// 把 NATS 变更通知转换为"重新拉取 + 回调"的文档流
// 每个订阅必须由调用方显式调用返回的 teardown，泄漏订阅即泄漏连接
type SubscriptionService struct {
	nc            *nats.Conn
	conversations *ConversationService
	messages      *MessageService
	streaks       *StreakService
	logger        *slog.Logger
}

// NewSubscriptionService 创建实时订阅服务
func NewSubscriptionService(nc *nats.Conn, conversations *ConversationService, messages *MessageService, streaks *StreakService) *SubscriptionService {
	return &SubscriptionService{
		nc:            nc,
		conversations: conversations,
		messages:      messages,
		streaks:       streaks,
		logger:        slog.Default(),
	}
}

// SubscribeMessages 订阅会话最新消息窗口
// 订阅建立时立即推送一次当前窗口，之后每次远端变更重新拉取全量窗口推送
func (s *SubscriptionService) SubscribeMessages(conversationId, viewerId string, viewerCutoff *time.Time, pageSize int, fn func(*model.MessageWindow)) (func(), error) {
	emit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		window, err := s.messages.NewestWindow(ctx, conversationId, viewerId, viewerCutoff, pageSize)
		if err != nil {
			// 拉取失败不清空已推送的数据，等待下一次变更
			s.logger.Warn("Failed to refresh message window",
				"conversationId", conversationId, "error", err)
			return
		}
		fn(window)
	}

	sub, err := s.nc.Subscribe(imNats.BuildMessageSubject(conversationId), func(msg *nats.Msg) {
		emit()
	})
	if err != nil {
		return nil, err
	}

	emit()
	return s.teardown(sub), nil
}

// SubscribeConversation 订阅会话文档变更
// 与消息窗口订阅相互独立：对端已读回执要以最小延迟可见，不跟随消息流节奏
func (s *SubscriptionService) SubscribeConversation(conversationId string, fn func(*model.Conversation)) (func(), error) {
	emit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		conv, err := s.conversations.Get(ctx, conversationId)
		if err != nil {
			s.logger.Warn("Failed to refresh conversation doc",
				"conversationId", conversationId, "error", err)
			return
		}
		fn(conv)
	}

	sub, err := s.nc.Subscribe(imNats.BuildMetaSubject(conversationId), func(msg *nats.Msg) {
		emit()
	})
	if err != nil {
		return nil, err
	}

	emit()
	return s.teardown(sub), nil
}

// SubscribeInbox 订阅用户收件箱变更（只是信号，数据由调用方重新拉取）
func (s *SubscriptionService) SubscribeInbox(userId string, fn func()) (func(), error) {
	sub, err := s.nc.Subscribe(imNats.BuildInboxSubject(userId), func(msg *nats.Msg) {
		fn()
	})
	if err != nil {
		return nil, err
	}
	return s.teardown(sub), nil
}

// SubscribeStreak 订阅连续互动文档变更
func (s *SubscriptionService) SubscribeStreak(streakId string, fn func(*model.Streak)) (func(), error) {
	emit := func() {
		ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
		defer cancel()

		streak, err := s.streaks.Get(ctx, streakId)
		if err != nil {
			s.logger.Warn("Failed to refresh streak doc", "streakId", streakId, "error", err)
			return
		}
		fn(streak)
	}

	sub, err := s.nc.Subscribe(imNats.BuildStreakSubject(streakId), func(msg *nats.Msg) {
		emit()
	})
	if err != nil {
		return nil, err
	}

	emit()
	return s.teardown(sub), nil
}

// teardown 包装订阅取消，保证只执行一次
func (s *SubscriptionService) teardown(sub *nats.Subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Unsubscribe(); err != nil {
				s.logger.Warn("Failed to unsubscribe", "subject", sub.Subject, "error", err)
			}
		})
	}
}
