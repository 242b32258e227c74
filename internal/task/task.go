package task

import (
	"context"
	"time"
)

// TaskFunc 任务执行函数类型
type TaskFunc func(ctx context.Context, target string) error

// Task 延迟任务定义
type Task struct {
	ID        string    // 任务唯一ID
	Target    string    // 操作对象标识（会话 ID / 消息 ID）
	Delay     int       // 延迟秒数
	Fn        TaskFunc  // 执行函数
	CreatedAt time.Time // 创建时间

	rounds int // 剩余圈数（时间轮内部使用）
}

// NewTask 创建新任务
func NewTask(id, target string, delaySeconds int, fn TaskFunc) *Task {
	return &Task{
		ID:        id,
		Target:    target,
		Delay:     delaySeconds,
		Fn:        fn,
		CreatedAt: time.Now(),
	}
}

// Execute 执行任务
func (t *Task) Execute(ctx context.Context) error {
	if t.Fn == nil {
		return nil
	}
	return t.Fn(ctx, t.Target)
}
