package task

import (
	"sync"
	"time"
)

const (
	// SlotCount 时间轮槽位数量（一圈 60 秒）
	SlotCount = 60
)

// TimeWheel 时间轮
// 超过一圈的延迟用圈数表示，支持小时级的延迟任务
type TimeWheel struct {
	slots       [SlotCount]*Slot // 60个槽位
	currentSlot int              // 当前槽位索引
	slotMu      sync.RWMutex     // 当前槽位索引锁
	ticker      *time.Ticker     // 1秒定时器
}

// NewTimeWheel 创建时间轮
func NewTimeWheel() *TimeWheel {
	tw := &TimeWheel{
		currentSlot: 0,
		ticker:      time.NewTicker(time.Second),
	}

	for i := 0; i < SlotCount; i++ {
		tw.slots[i] = NewSlot()
	}

	return tw
}

// AddTask 添加任务到时间轮
func (tw *TimeWheel) AddTask(task *Task) error {
	if task.Delay < 1 {
		task.Delay = 1
	}

	tw.slotMu.RLock()
	targetSlot := (tw.currentSlot + task.Delay) % SlotCount
	tw.slotMu.RUnlock()

	// 延迟恰好为整圈数时目标槽就是当前槽，下次转到该槽即应触发，
	// 圈数按 delay-1 计算，否则会晚一整圈
	task.rounds = (task.Delay - 1) / SlotCount
	tw.slots[targetSlot].AddTask(task)

	return nil
}

// RemoveTask 从时间轮删除任务
func (tw *TimeWheel) RemoveTask(taskID string, delay int) bool {
	if delay < 1 {
		delay = 1
	}

	tw.slotMu.RLock()
	targetSlot := (tw.currentSlot + delay) % SlotCount
	tw.slotMu.RUnlock()

	return tw.slots[targetSlot].RemoveTask(taskID)
}

// Tick 推进时间轮 (由调度器调用)
func (tw *TimeWheel) Tick() []*Task {
	tw.slotMu.Lock()
	tw.currentSlot = (tw.currentSlot + 1) % SlotCount
	currentSlot := tw.currentSlot
	tw.slotMu.Unlock()

	return tw.slots[currentSlot].PopDue()
}

// GetCurrentSlot 获取当前槽位索引
func (tw *TimeWheel) GetCurrentSlot() int {
	tw.slotMu.RLock()
	defer tw.slotMu.RUnlock()

	return tw.currentSlot
}

// Stop 停止时间轮
func (tw *TimeWheel) Stop() {
	tw.ticker.Stop()
}

// GetTicker 获取定时器
func (tw *TimeWheel) GetTicker() *time.Ticker {
	return tw.ticker
}

// GetTotalTaskCount 获取所有槽位的任务总数
func (tw *TimeWheel) GetTotalTaskCount() int {
	total := 0
	for i := 0; i < SlotCount; i++ {
		total += tw.slots[i].Count()
	}
	return total
}
