package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
)

// refreshTimeout 收件箱刷新超时
const refreshTimeout = 5 * time.Second

// DefaultInboxGrace 首批数据前权限错误的缺省宽限时长
const DefaultInboxGrace = 8 * time.Second

// inboxStore 会话列表操作端口
type inboxStore interface {
	List(ctx context.Context, userId string) ([]*model.Conversation, error)
	TotalUnread(ctx context.Context, userId string) (int, error)
	SoftDelete(ctx context.Context, conversationId, userId string) error
}

// inboxFeed 收件箱变更信号端口
type inboxFeed interface {
	SubscribeInbox(userId string, fn func()) (func(), error)
}

// profileResolver 用户资料批量解析端口
type profileResolver interface {
	GetProfiles(ctx context.Context, userIds []string) (map[string]model.Profile, error)
}

var (
	_ inboxStore      = (*service.ConversationService)(nil)
	_ inboxFeed       = (*service.SubscriptionService)(nil)
	_ profileResolver = (*service.ProfileService)(nil)
)

// InboxItem 收件箱条目：会话加上对方资料
type InboxItem struct {
	Conversation *model.Conversation
	Friend       model.Profile
}

// InboxSession 会话列表视图会话
// 每次收件箱信号整表重拉；对方资料会话级缓存，一次刷新只发一批资料查询
type InboxSession struct {
	viewerId string
	store    inboxStore
	feed     inboxFeed
	profiles profileResolver
	grace    time.Duration // 首批数据前对权限错误的宽限时长
	logger   *slog.Logger

	mu           sync.Mutex
	state        SessionState
	items        []*InboxItem
	totalUnread  int
	lastErr      error
	hasData      bool // 是否已成功拿到过第一批数据
	profileCache map[string]model.Profile
	graceTimer   *time.Timer
	pendingErr   error // 宽限期内暂扣的错误
	teardown     func()
}

// NewInboxSession 创建收件箱视图
func NewInboxSession(viewerId string, store inboxStore, feed inboxFeed, profiles profileResolver, grace time.Duration) *InboxSession {
	if grace <= 0 {
		grace = DefaultInboxGrace
	}
	return &InboxSession{
		viewerId:     viewerId,
		store:        store,
		feed:         feed,
		profiles:     profiles,
		grace:        grace,
		state:        SessionStateIdle,
		profileCache: make(map[string]model.Profile),
		logger:       slog.Default(),
	}
}

// Open 建立订阅并加载首批数据
func (s *InboxSession) Open(ctx context.Context) error {
	s.mu.Lock()
	s.state = SessionStateLoading
	s.mu.Unlock()

	teardown, err := s.feed.SubscribeInbox(s.viewerId, func() {
		refreshCtx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		s.refresh(refreshCtx)
	})
	if err != nil {
		return errors.ErrServerError.Wrap(err)
	}

	s.mu.Lock()
	s.teardown = teardown
	s.mu.Unlock()

	s.refresh(ctx)
	return nil
}

// refresh 整表重拉会话列表
func (s *InboxSession) refresh(ctx context.Context) {
	conversations, err := s.store.List(ctx, s.viewerId)
	if err != nil {
		s.handleError(err)
		return
	}

	// 过滤本方已删除且此后无新消息的会话
	visible := make([]*model.Conversation, 0, len(conversations))
	missing := make([]string, 0)
	s.mu.Lock()
	for _, conv := range conversations {
		if conv.HiddenFor(s.viewerId) {
			continue
		}
		visible = append(visible, conv)
		friendId := conv.Friend(s.viewerId)
		if _, cached := s.profileCache[friendId]; !cached && friendId != "" {
			missing = append(missing, friendId)
		}
	}
	s.mu.Unlock()

	// 未缓存的对方资料一次批量补齐
	if len(missing) > 0 {
		resolved, err := s.profiles.GetProfiles(ctx, missing)
		if err != nil {
			s.logger.Warn("Failed to resolve friend profiles", "count", len(missing), "error", err)
		} else {
			s.mu.Lock()
			for id, p := range resolved {
				s.profileCache[id] = p
			}
			s.mu.Unlock()
		}
	}

	totalUnread, err := s.store.TotalUnread(ctx, s.viewerId)
	if err != nil {
		s.handleError(err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*InboxItem, 0, len(visible))
	for _, conv := range visible {
		friendId := conv.Friend(s.viewerId)
		profile, ok := s.profileCache[friendId]
		if !ok {
			profile = model.UnknownProfile(friendId)
		}
		items = append(items, &InboxItem{Conversation: conv, Friend: profile})
	}

	s.items = items
	s.totalUnread = totalUnread
	s.state = SessionStateReady
	s.hasData = true
	s.lastErr = nil
	s.pendingErr = nil
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// handleError 错误归类
// 首批数据到达前的权限错误多半是登录态还没就绪，扣住并等待宽限期；
// 宽限期内来了数据就当没发生过，超时仍无数据才对外暴露
func (s *InboxSession) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasData && errors.IsPermission(err) {
		s.pendingErr = err
		if s.graceTimer == nil {
			s.graceTimer = time.AfterFunc(s.grace, s.surfacePendingErr)
		}
		return
	}

	s.lastErr = err
	s.logger.Warn("Inbox refresh failed", "userId", s.viewerId, "error", err)
}

// surfacePendingErr 宽限期到期，暂扣的权限错误转正
func (s *InboxSession) surfacePendingErr() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasData || s.pendingErr == nil {
		return
	}
	s.lastErr = s.pendingErr
	s.pendingErr = nil
	s.graceTimer = nil
	s.logger.Warn("Inbox permission error persisted past grace period",
		"userId", s.viewerId, "error", s.lastErr)
}

// Delete 删除会话（乐观更新）
// 先从本地列表摘掉，远端失败再整体回滚
func (s *InboxSession) Delete(ctx context.Context, conversationId string) error {
	s.mu.Lock()
	snapshotItems := s.items
	snapshotUnread := s.totalUnread

	items := make([]*InboxItem, 0, len(s.items))
	removedUnread := 0
	for _, item := range s.items {
		if item.Conversation.Id == conversationId {
			removedUnread = item.Conversation.UnreadFor(s.viewerId)
			continue
		}
		items = append(items, item)
	}
	s.items = items
	s.totalUnread -= removedUnread
	s.mu.Unlock()

	if err := s.store.SoftDelete(ctx, conversationId, s.viewerId); err != nil {
		s.mu.Lock()
		s.items = snapshotItems
		s.totalUnread = snapshotUnread
		s.mu.Unlock()
		return err
	}
	return nil
}

// Items 当前收件箱条目（按更新时间倒序）
func (s *InboxSession) Items() []*InboxItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.items
}

// TotalUnread 总未读数角标
func (s *InboxSession) TotalUnread() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.totalUnread
}

// State 当前视图状态
func (s *InboxSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Err 当前对外暴露的错误
func (s *InboxSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastErr
}

// Close 关闭视图并拆除订阅
func (s *InboxSession) Close() {
	s.mu.Lock()
	teardown := s.teardown
	s.teardown = nil
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.state = SessionStateIdle
	s.mu.Unlock()

	if teardown != nil {
		teardown()
	}
}
