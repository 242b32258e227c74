package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimeWheelDueAfterDelay(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	var fired atomic.Int32
	task := NewTask("t1", "conv_a_b", 3, func(ctx context.Context, target string) error {
		fired.Add(1)
		return nil
	})

	if err := tw.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	// two ticks: not yet due
	for i := 0; i < 2; i++ {
		if due := tw.Tick(); len(due) != 0 {
			t.Fatalf("tick %d: expected no due tasks, got %d", i+1, len(due))
		}
	}

	due := tw.Tick()
	if len(due) != 1 {
		t.Fatalf("expected 1 due task on third tick, got %d", len(due))
	}
	if err := due[0].Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected task fn to run once, got %d", fired.Load())
	}
}

func TestTimeWheelMultiRoundDelay(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	// 63s delay: lands one slot ahead with one extra round
	task := NewTask("t2", "conv_a_b", SlotCount+3, nil)
	if err := tw.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	for i := 0; i < SlotCount+2; i++ {
		if due := tw.Tick(); len(due) != 0 {
			t.Fatalf("tick %d: task fired a round early", i+1)
		}
	}

	if due := tw.Tick(); len(due) != 1 {
		t.Fatalf("expected task due after full round + 3 ticks, got %d", len(due))
	}
}

func TestTimeWheelExactRevolutionDelay(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	// 60s delay: lands on the current slot and must fire on the next
	// pass over it, not one revolution later
	task := NewTask("t6", "conv_a_b", SlotCount, nil)
	if err := tw.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	for i := 0; i < SlotCount-1; i++ {
		if due := tw.Tick(); len(due) != 0 {
			t.Fatalf("tick %d: task fired early", i+1)
		}
	}

	if due := tw.Tick(); len(due) != 1 {
		t.Fatalf("expected task due exactly at tick %d, got %d due", SlotCount, len(due))
	}
}

func TestTimeWheelTwoRevolutionDelay(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	task := NewTask("t7", "conv_a_b", 2*SlotCount, nil)
	if err := tw.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	for i := 0; i < 2*SlotCount-1; i++ {
		if due := tw.Tick(); len(due) != 0 {
			t.Fatalf("tick %d: task fired early", i+1)
		}
	}

	if due := tw.Tick(); len(due) != 1 {
		t.Fatalf("expected task due exactly at tick %d, got %d due", 2*SlotCount, len(due))
	}
}

func TestTimeWheelRemoveTask(t *testing.T) {
	tw := NewTimeWheel()
	defer tw.Stop()

	task := NewTask("t3", "conv_a_b", 5, nil)
	if err := tw.AddTask(task); err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	if !tw.RemoveTask("t3", 5) {
		t.Fatal("expected RemoveTask to find the task")
	}
	if tw.GetTotalTaskCount() != 0 {
		t.Fatalf("expected empty wheel, got %d tasks", tw.GetTotalTaskCount())
	}

	for i := 0; i < 6; i++ {
		if due := tw.Tick(); len(due) != 0 {
			t.Fatal("removed task still fired")
		}
	}
}

func TestSchedulerLifecycle(t *testing.T) {
	s := NewScheduler(2)

	if err := s.AddTask(NewTask("t4", "conv_a_b", 1, nil)); err == nil {
		t.Fatal("expected AddTask to fail before Start")
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err == nil {
		t.Fatal("expected second Start to fail")
	}

	var fired atomic.Int32
	err := s.AddTask(NewTask("t5", "conv_a_b", 1, func(ctx context.Context, target string) error {
		fired.Add(1)
		return nil
	}))
	if err != nil {
		t.Fatalf("AddTask failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if fired.Load() != 1 {
		t.Fatalf("expected task to fire once, got %d", fired.Load())
	}

	s.Stop()
	if s.IsRunning() {
		t.Fatal("scheduler still reported running after Stop")
	}
}
