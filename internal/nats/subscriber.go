package nats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"
	"sudooom.im.sync/pkg/proto"
)

// EventHandler 上行事件处理器接口
type EventHandler interface {
	HandleMessageCreated(ctx context.Context, event *proto.MessageCreated)
	HandleMessageUnsent(ctx context.Context, event *proto.MessageUnsent)
	HandleConversationRead(ctx context.Context, event *proto.ConversationRead)
	HandleSnapViewed(ctx context.Context, event *proto.SnapViewed)
}

// SubscriberConfig Worker Pool 配置
type SubscriberConfig struct {
	WorkerCount int // Worker 数量
	BufferSize  int // 事件缓冲区大小
}

// EventSubscriber 上行事件订阅器
type EventSubscriber struct {
	nc           *nats.Conn
	handler      EventHandler
	logger       *slog.Logger
	subscription *nats.Subscription
	config       SubscriberConfig
	msgChan      chan *nats.Msg
	wg           sync.WaitGroup
	cancelFunc   context.CancelFunc
}

// NewEventSubscriber 创建上行事件订阅器
func NewEventSubscriber(nc *nats.Conn, handler EventHandler, config SubscriberConfig) *EventSubscriber {
	// 设置默认值
	if config.WorkerCount <= 0 {
		config.WorkerCount = 50
	}
	if config.BufferSize <= 0 {
		config.BufferSize = 4096
	}

	return &EventSubscriber{
		nc:      nc,
		handler: handler,
		logger:  slog.Default(),
		config:  config,
	}
}

// Start 启动订阅
func (s *EventSubscriber) Start(ctx context.Context) error {
	s.msgChan = make(chan *nats.Msg, s.config.BufferSize)

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	for i := 0; i < s.config.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(workerCtx)
	}

	// 队列组订阅，多实例间负载均衡
	sub, err := s.nc.QueueSubscribe(SubjectUpstream, QueueGroupSync, func(msg *nats.Msg) {
		select {
		case s.msgChan <- msg:
		default:
			// 缓冲区满，记录警告
			s.logger.Warn("Event buffer full, dropping event", "bufferSize", s.config.BufferSize)
		}
	})
	if err != nil {
		cancel()
		return err
	}

	s.subscription = sub
	s.logger.Info("NATS subscriber started",
		"subject", SubjectUpstream,
		"workerCount", s.config.WorkerCount,
		"bufferSize", s.config.BufferSize,
	)
	return nil
}

// worker 工作协程
func (s *EventSubscriber) worker(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.msgChan:
			if !ok {
				return
			}
			s.handleUpstreamEvent(ctx, msg.Data)
		}
	}
}

// handleUpstreamEvent 处理上行事件
func (s *EventSubscriber) handleUpstreamEvent(ctx context.Context, data []byte) {
	var event proto.UpstreamEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.logger.Error("Failed to unmarshal event", "error", err)
		return
	}

	switch {
	case event.MessageCreated != nil:
		s.handler.HandleMessageCreated(ctx, event.MessageCreated)
	case event.MessageUnsent != nil:
		s.handler.HandleMessageUnsent(ctx, event.MessageUnsent)
	case event.ConversationRead != nil:
		s.handler.HandleConversationRead(ctx, event.ConversationRead)
	case event.SnapViewed != nil:
		s.handler.HandleSnapViewed(ctx, event.SnapViewed)
	}
}

// Stop 停止订阅
func (s *EventSubscriber) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.subscription != nil {
		if err := s.subscription.Unsubscribe(); err != nil {
			s.logger.Error("Failed to unsubscribe", "error", err)
		}
	}

	if s.msgChan != nil {
		close(s.msgChan)
	}

	s.wg.Wait()

	s.logger.Info("NATS subscriber stopped")
	return nil
}

// GetBufferUsage 获取缓冲区使用情况（用于监控）
func (s *EventSubscriber) GetBufferUsage() (current int, capacity int) {
	if s.msgChan == nil {
		return 0, 0
	}
	return len(s.msgChan), cap(s.msgChan)
}
