package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
)

type fakeConvStore struct {
	mu            sync.Mutex
	conv          *model.Conversation
	markReadCalls atomic.Int32
	markReadErr   error
}

func (f *fakeConvStore) Get(ctx context.Context, conversationId string) (*model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conv, nil
}

func (f *fakeConvStore) MarkRead(ctx context.Context, conversationId, userId string) error {
	f.markReadCalls.Add(1)
	return f.markReadErr
}

type fakeMsgStore struct {
	mu    sync.Mutex
	pages map[int64]*model.MessageWindow // cursor -> page
	sent  []service.SendPayload
}

func (f *fakeMsgStore) Send(ctx context.Context, conversationId, senderId string, payload service.SendPayload) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, payload)
	return int64(len(f.sent)), nil
}

func (f *fakeMsgStore) LoadMore(ctx context.Context, conversationId, viewerId string, cursor int64, viewerCutoff *time.Time, pageSize int) (*model.MessageWindow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page, ok := f.pages[cursor]; ok {
		return page, nil
	}
	return &model.MessageWindow{Messages: nil, HasMore: false}, nil
}

type fakeFeed struct {
	mu            sync.Mutex
	initialWindow *model.MessageWindow
	initialConv   *model.Conversation
	windowFn      func(*model.MessageWindow)
	convFn        func(*model.Conversation)
	msgTeardowns  atomic.Int32
	docTeardowns  atomic.Int32
}

func (f *fakeFeed) SubscribeMessages(conversationId, viewerId string, viewerCutoff *time.Time, pageSize int, fn func(*model.MessageWindow)) (func(), error) {
	f.mu.Lock()
	f.windowFn = fn
	initial := f.initialWindow
	f.mu.Unlock()
	if initial != nil {
		fn(initial)
	}
	return func() { f.msgTeardowns.Add(1) }, nil
}

func (f *fakeFeed) SubscribeConversation(conversationId string, fn func(*model.Conversation)) (func(), error) {
	f.mu.Lock()
	f.convFn = fn
	initial := f.initialConv
	f.mu.Unlock()
	if initial != nil {
		fn(initial)
	}
	return func() { f.docTeardowns.Add(1) }, nil
}

func (f *fakeFeed) pushWindow(w *model.MessageWindow) {
	f.mu.Lock()
	fn := f.windowFn
	f.mu.Unlock()
	if fn != nil {
		fn(w)
	}
}

func (f *fakeFeed) pushConversation(c *model.Conversation) {
	f.mu.Lock()
	fn := f.convFn
	f.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func textMsg(id int64, at time.Time) *model.Message {
	return &model.Message{
		Id:             id,
		ConversationId: "alice_bob",
		SenderId:       "bob",
		MsgType:        model.MessageTypeText,
		Text:           "hi",
		CreatedAt:      at,
	}
}

func testConversation(unread int) *model.Conversation {
	return &model.Conversation{
		Id:           "alice_bob",
		Participants: [2]string{"alice", "bob"},
		UnreadCount:  map[string]int{"alice": unread},
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestOpenLoadsInitialWindow(t *testing.T) {
	base := time.Now()
	convStore := &fakeConvStore{conv: testConversation(0)}
	msgStore := &fakeMsgStore{}
	feed := &fakeFeed{
		initialWindow: &model.MessageWindow{
			Messages:   []*model.Message{textMsg(3, base.Add(3 * time.Second)), textMsg(2, base.Add(2 * time.Second))},
			NextCursor: 2,
			HasMore:    true,
		},
	}
	s := NewConversationSession("alice", convStore, msgStore, feed, NewStaticLifecycle(AppStateForeground), 2)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.State() != SessionStateReady {
		t.Fatalf("expected ready state, got %s", s.State())
	}
	msgs := s.Messages()
	if len(msgs) != 2 || msgs[0].Id != 3 || msgs[1].Id != 2 {
		t.Fatalf("unexpected timeline: %v", msgs)
	}
	if !s.HasMore() {
		t.Fatal("expected HasMore after partial window")
	}
}

func TestMergeDeduplicatesOverlap(t *testing.T) {
	base := time.Now()
	convStore := &fakeConvStore{conv: testConversation(0)}
	msgStore := &fakeMsgStore{
		pages: map[int64]*model.MessageWindow{
			3: {
				// 游标页与实时窗口在 id=3 上重叠
				Messages: []*model.Message{
					textMsg(3, base.Add(3 * time.Second)),
					textMsg(2, base.Add(2 * time.Second)),
					textMsg(1, base.Add(1 * time.Second)),
				},
				NextCursor: 1,
				HasMore:    false,
			},
		},
	}
	feed := &fakeFeed{
		initialWindow: &model.MessageWindow{
			Messages: []*model.Message{
				textMsg(5, base.Add(5 * time.Second)),
				textMsg(4, base.Add(4 * time.Second)),
				textMsg(3, base.Add(3 * time.Second)),
			},
			NextCursor: 3,
			HasMore:    true,
		},
	}
	s := NewConversationSession("alice", convStore, msgStore, feed, NewStaticLifecycle(AppStateForeground), 3)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore failed: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 5 {
		t.Fatalf("expected 5 deduplicated messages, got %d", len(msgs))
	}
	for i, want := range []int64{5, 4, 3, 2, 1} {
		if msgs[i].Id != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, msgs[i].Id)
		}
	}
	if s.HasMore() {
		t.Fatal("expected HasMore=false after final page")
	}
}

func TestTimelineTieBreaksOnId(t *testing.T) {
	at := time.Now()
	convStore := &fakeConvStore{conv: testConversation(0)}
	feed := &fakeFeed{
		initialWindow: &model.MessageWindow{
			Messages: []*model.Message{textMsg(7, at), textMsg(9, at), textMsg(8, at)},
		},
	}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	msgs := s.Messages()
	for i, want := range []int64{9, 8, 7} {
		if msgs[i].Id != want {
			t.Fatalf("position %d: expected id %d, got %d", i, want, msgs[i].Id)
		}
	}
}

func TestMarkReadOnForegroundWithUnread(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(2)}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	waitFor(t, func() bool { return convStore.markReadCalls.Load() == 1 },
		"expected MarkRead after first window in foreground")
}

func TestNoMarkReadInBackground(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(2)}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	lifecycle := NewStaticLifecycle(AppStateBackground)
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, lifecycle, 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if calls := convStore.markReadCalls.Load(); calls != 0 {
		t.Fatalf("background session must not mark read, got %d calls", calls)
	}

	// 回到前台后补标记
	lifecycle.Set(AppStateForeground)
	waitFor(t, func() bool { return convStore.markReadCalls.Load() == 1 },
		"expected MarkRead after returning to foreground")
}

func TestNoMarkReadWithoutUnread(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(0)}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if calls := convStore.markReadCalls.Load(); calls != 0 {
		t.Fatalf("expected no MarkRead without unread, got %d calls", calls)
	}
}

func TestMarkReadNotRepeatedWhileUnreadPersists(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(3)}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	waitFor(t, func() bool { return convStore.markReadCalls.Load() == 1 }, "expected first MarkRead")

	// 服务端确认后文档回推 unread=0，不应再次标记
	feed.pushConversation(testConversation(0))
	time.Sleep(100 * time.Millisecond)
	if calls := convStore.markReadCalls.Load(); calls != 1 {
		t.Fatalf("expected exactly 1 MarkRead, got %d", calls)
	}
}

func TestOpenSwitchResetsState(t *testing.T) {
	base := time.Now()
	convStore := &fakeConvStore{conv: testConversation(0)}
	feed := &fakeFeed{
		initialWindow: &model.MessageWindow{
			Messages: []*model.Message{textMsg(1, base)},
		},
	}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if len(s.Messages()) != 1 {
		t.Fatal("expected first conversation data")
	}

	convStore.mu.Lock()
	convStore.conv = &model.Conversation{Id: "alice_carol", Participants: [2]string{"alice", "carol"}}
	convStore.mu.Unlock()
	feed.mu.Lock()
	feed.initialWindow = &model.MessageWindow{}
	feed.mu.Unlock()

	if err := s.Open(context.Background(), "alice_carol"); err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	if feed.msgTeardowns.Load() != 1 || feed.docTeardowns.Load() != 1 {
		t.Fatalf("expected old subscriptions torn down, got msg=%d doc=%d",
			feed.msgTeardowns.Load(), feed.docTeardowns.Load())
	}
	if len(s.Messages()) != 0 {
		t.Fatal("expected timeline reset after switching conversations")
	}
}

func TestLoadMoreNoopWhenExhausted(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(0)}
	msgStore := &fakeMsgStore{}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{HasMore: false}}
	s := NewConversationSession("alice", convStore, msgStore, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.LoadMore(context.Background()); err != nil {
		t.Fatalf("LoadMore should be a silent no-op, got %v", err)
	}
}

func TestSendDelegatesWithoutOptimisticInsert(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(0)}
	msgStore := &fakeMsgStore{}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	s := NewConversationSession("alice", convStore, msgStore, feed, NewStaticLifecycle(AppStateForeground), 10)
	defer s.Close()

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if _, err := s.Send(context.Background(), service.SendPayload{Type: model.MessageTypeText, Text: "hello"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if len(msgStore.sent) != 1 {
		t.Fatalf("expected 1 sent payload, got %d", len(msgStore.sent))
	}
	// 时间线以服务端回推为准，发送后不做本地插入
	if len(s.Messages()) != 0 {
		t.Fatal("send must not insert into the local timeline")
	}
}

func TestCloseTearsDownOnce(t *testing.T) {
	convStore := &fakeConvStore{conv: testConversation(0)}
	feed := &fakeFeed{initialWindow: &model.MessageWindow{}}
	s := NewConversationSession("alice", convStore, &fakeMsgStore{}, feed, NewStaticLifecycle(AppStateForeground), 10)

	if err := s.Open(context.Background(), "alice_bob"); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	s.Close()
	s.Close()
	if feed.msgTeardowns.Load() != 1 || feed.docTeardowns.Load() != 1 {
		t.Fatalf("expected single teardown, got msg=%d doc=%d",
			feed.msgTeardowns.Load(), feed.docTeardowns.Load())
	}
	if s.State() != SessionStateIdle {
		t.Fatalf("expected idle after close, got %s", s.State())
	}
}
