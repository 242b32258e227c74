package session

import "sync"

// AppState 终端前后台状态
type AppState string

const (
	AppStateForeground AppState = "foreground"
	AppStateBackground AppState = "background"
)

// Lifecycle 终端生命周期端口
// 会话层通过它感知前后台切换，决定已读标记等副作用是否允许执行
type Lifecycle interface {
	State() AppState
	Subscribe(fn func(AppState)) func()
}

// StaticLifecycle 可手动切换的生命周期实现
// 服务端代理终端连接时由连接层驱动 Set；测试中直接使用
type StaticLifecycle struct {
	mu     sync.Mutex
	state  AppState
	nextId int
	subs   map[int]func(AppState)
}

// NewStaticLifecycle 创建生命周期实例
func NewStaticLifecycle(initial AppState) *StaticLifecycle {
	return &StaticLifecycle{
		state: initial,
		subs:  make(map[int]func(AppState)),
	}
}

// State 获取当前状态
func (l *StaticLifecycle) State() AppState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state
}

// Set 切换状态并通知订阅者（状态未变化时不通知）
func (l *StaticLifecycle) Set(state AppState) {
	l.mu.Lock()
	if l.state == state {
		l.mu.Unlock()
		return
	}
	l.state = state

	fns := make([]func(AppState), 0, len(l.subs))
	for _, fn := range l.subs {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(state)
	}
}

// Subscribe 订阅状态变化，返回退订函数
func (l *StaticLifecycle) Subscribe(fn func(AppState)) func() {
	l.mu.Lock()
	id := l.nextId
	l.nextId++
	l.subs[id] = fn
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, id)
			l.mu.Unlock()
		})
	}
}
