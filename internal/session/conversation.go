package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
)

// SessionState 会话视图状态
type SessionState string

const (
	SessionStateIdle    SessionState = "idle"    // 未打开任何会话
	SessionStateLoading SessionState = "loading" // 首批数据加载中
	SessionStateReady   SessionState = "ready"   // 数据可用，持续接收变更
)

// markReadTimeout 已读标记请求超时
const markReadTimeout = 5 * time.Second

// conversationStore 会话文档操作端口
type conversationStore interface {
	Get(ctx context.Context, conversationId string) (*model.Conversation, error)
	MarkRead(ctx context.Context, conversationId, userId string) error
}

// messageStore 消息操作端口
type messageStore interface {
	Send(ctx context.Context, conversationId, senderId string, payload service.SendPayload) (int64, error)
	LoadMore(ctx context.Context, conversationId, viewerId string, cursor int64, viewerCutoff *time.Time, pageSize int) (*model.MessageWindow, error)
}

// conversationFeed 实时订阅端口
type conversationFeed interface {
	SubscribeMessages(conversationId, viewerId string, viewerCutoff *time.Time, pageSize int, fn func(*model.MessageWindow)) (func(), error)
	SubscribeConversation(conversationId string, fn func(*model.Conversation)) (func(), error)
}

var (
	_ conversationStore = (*service.ConversationService)(nil)
	_ messageStore      = (*service.MessageService)(nil)
	_ conversationFeed  = (*service.SubscriptionService)(nil)
)

// ConversationSession 单个会话的视图会话
// 维护"实时最新窗口 + 向前翻页的历史页"两段消息，对外合并成一条时间线。
// 两段可能在翻页边界重叠，合并时按消息 ID 去重
type ConversationSession struct {
	viewerId      string
	conversations conversationStore
	messages      messageStore
	feed          conversationFeed
	lifecycle     Lifecycle
	pageSize      int
	logger        *slog.Logger

	mu                sync.Mutex
	state             SessionState
	conversationId    string
	conversation      *model.Conversation
	recent            []*model.Message // 实时最新窗口（每次变更整页替换）
	older             []*model.Message // 翻页累积的历史消息
	nextCursor        int64
	hasMore           bool
	loadingMore       bool
	markInFlight      bool
	lastErr           error
	teardowns         []func()
	lifecycleTeardown func()
}

// NewConversationSession 创建会话视图
func NewConversationSession(
	viewerId string,
	conversations conversationStore,
	messages messageStore,
	feed conversationFeed,
	lifecycle Lifecycle,
	pageSize int,
) *ConversationSession {
	s := &ConversationSession{
		viewerId:      viewerId,
		conversations: conversations,
		messages:      messages,
		feed:          feed,
		lifecycle:     lifecycle,
		pageSize:      pageSize,
		state:         SessionStateIdle,
		logger:        slog.Default(),
	}
	// 回到前台时补一次已读检查（后台期间到达的消息不触发已读）
	s.lifecycleTeardown = lifecycle.Subscribe(func(state AppState) {
		if state == AppStateForeground {
			s.maybeMarkRead()
		}
	})
	return s
}

// Open 打开会话并建立订阅
// 切换到另一个会话时先拆除旧订阅，所有本地状态归零
func (s *ConversationSession) Open(ctx context.Context, conversationId string) error {
	s.mu.Lock()
	s.teardownLocked()
	s.conversationId = conversationId
	s.conversation = nil
	s.recent = nil
	s.older = nil
	s.nextCursor = 0
	s.hasMore = false
	s.loadingMore = false
	s.markInFlight = false
	s.lastErr = nil
	s.state = SessionStateLoading
	s.mu.Unlock()

	// 先拉会话文档：消息订阅需要本方的删除截止时间
	conv, err := s.conversations.Get(ctx, conversationId)
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.conversation = conv
	cutoff := conv.DeletedFor(s.viewerId)
	s.mu.Unlock()

	// 会话文档订阅与消息流相互独立：对端已读回执要以最小延迟可见
	docTeardown, err := s.feed.SubscribeConversation(conversationId, func(c *model.Conversation) {
		s.onConversation(conversationId, c)
	})
	if err != nil {
		return errors.ErrServerError.Wrap(err)
	}

	msgTeardown, err := s.feed.SubscribeMessages(conversationId, s.viewerId, cutoff, s.pageSize, func(w *model.MessageWindow) {
		s.onWindow(conversationId, w)
	})
	if err != nil {
		docTeardown()
		return errors.ErrServerError.Wrap(err)
	}

	s.mu.Lock()
	if s.conversationId != conversationId {
		// Open 已被并发切换到别的会话，丢弃本次订阅
		s.mu.Unlock()
		docTeardown()
		msgTeardown()
		return nil
	}
	s.teardowns = append(s.teardowns, docTeardown, msgTeardown)
	s.mu.Unlock()
	return nil
}

// onConversation 会话文档变更回调
func (s *ConversationSession) onConversation(conversationId string, conv *model.Conversation) {
	s.mu.Lock()
	if s.conversationId != conversationId {
		s.mu.Unlock()
		return
	}
	s.conversation = conv
	s.mu.Unlock()

	s.maybeMarkRead()
}

// onWindow 最新消息窗口回调
func (s *ConversationSession) onWindow(conversationId string, w *model.MessageWindow) {
	s.mu.Lock()
	if s.conversationId != conversationId {
		s.mu.Unlock()
		return
	}
	s.recent = w.Messages
	if s.state == SessionStateLoading {
		// 首个窗口确定初始游标；后续窗口只带来新消息，游标跟随翻页走
		s.nextCursor = w.NextCursor
		s.hasMore = w.HasMore
		s.state = SessionStateReady
	}
	s.mu.Unlock()

	s.maybeMarkRead()
}

// maybeMarkRead 按需标记已读
// 仅在就绪、有未读、处于前台且没有进行中的标记请求时发起
func (s *ConversationSession) maybeMarkRead() {
	s.mu.Lock()
	if s.state != SessionStateReady ||
		s.conversation == nil ||
		s.conversation.UnreadFor(s.viewerId) == 0 ||
		s.lifecycle.State() != AppStateForeground ||
		s.markInFlight {
		s.mu.Unlock()
		return
	}
	s.markInFlight = true
	conversationId := s.conversationId
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()

		err := s.conversations.MarkRead(ctx, conversationId, s.viewerId)

		s.mu.Lock()
		s.markInFlight = false
		s.mu.Unlock()

		if err != nil {
			// 失败不重试；下一次文档变更会重新走判定
			s.logger.Warn("Failed to mark conversation read",
				"conversationId", conversationId, "error", err)
		}
	}()
}

// LoadMore 向前翻一页历史消息
// 没有更多数据或已有翻页进行中时静默返回
func (s *ConversationSession) LoadMore(ctx context.Context) error {
	s.mu.Lock()
	if s.state != SessionStateReady || !s.hasMore || s.loadingMore {
		s.mu.Unlock()
		return nil
	}
	s.loadingMore = true
	conversationId := s.conversationId
	cursor := s.nextCursor
	var cutoff *time.Time
	if s.conversation != nil {
		cutoff = s.conversation.DeletedFor(s.viewerId)
	}
	s.mu.Unlock()

	window, err := s.messages.LoadMore(ctx, conversationId, s.viewerId, cursor, cutoff, s.pageSize)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingMore = false
	if err != nil {
		return err
	}
	if s.conversationId != conversationId {
		return nil
	}
	s.older = append(s.older, window.Messages...)
	s.nextCursor = window.NextCursor
	s.hasMore = window.HasMore
	return nil
}

// Send 发送消息
// 不做本地乐观插入：消息以服务端回推的窗口为准出现在时间线上
func (s *ConversationSession) Send(ctx context.Context, payload service.SendPayload) (int64, error) {
	s.mu.Lock()
	conversationId := s.conversationId
	s.mu.Unlock()

	if conversationId == "" {
		return 0, errors.ErrMissingID
	}
	return s.messages.Send(ctx, conversationId, s.viewerId, payload)
}

// Messages 合并后的消息时间线（最新在前）
// 实时窗口与历史页按 ID 去重，时间相同时按 ID 倒序保持稳定
func (s *ConversationSession) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make([]*model.Message, 0, len(s.recent)+len(s.older))
	seen := make(map[int64]struct{}, len(s.recent)+len(s.older))
	for _, m := range s.recent {
		if _, ok := seen[m.Id]; !ok {
			seen[m.Id] = struct{}{}
			merged = append(merged, m)
		}
	}
	for _, m := range s.older {
		if _, ok := seen[m.Id]; !ok {
			seen[m.Id] = struct{}{}
			merged = append(merged, m)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].Id > merged[j].Id
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// Conversation 当前会话文档
func (s *ConversationSession) Conversation() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conversation
}

// State 当前视图状态
func (s *ConversationSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// HasMore 是否还有更早的历史消息
func (s *ConversationSession) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.hasMore
}

// Err 最近一次加载错误
func (s *ConversationSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// Close 关闭会话并拆除全部订阅
func (s *ConversationSession) Close() {
	s.mu.Lock()
	s.teardownLocked()
	s.state = SessionStateIdle
	s.conversationId = ""
	s.mu.Unlock()

	if s.lifecycleTeardown != nil {
		s.lifecycleTeardown()
	}
}

// teardownLocked 拆除当前订阅（须持有锁）
func (s *ConversationSession) teardownLocked() {
	for _, fn := range s.teardowns {
		fn()
	}
	s.teardowns = nil
}
