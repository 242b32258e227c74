package service

import (
	"context"
	"testing"
	"time"

	"sudooom.im.sync/internal/model"
)

func TestDeriveStreakState(t *testing.T) {
	now := time.Now()
	live := now.Add(12 * time.Hour)
	expired := now.Add(-time.Hour)

	tests := []struct {
		name     string
		streak   *model.Streak
		viewerId string
		want     StreakState
	}{
		{
			name:     "no interaction",
			streak:   &model.Streak{Id: "alice_bob"},
			viewerId: "alice",
			want:     StreakStateDefault,
		},
		{
			name: "viewer snapped, waiting for friend",
			streak: &model.Streak{
				Id:         "alice_bob",
				LastSnapBy: map[string]time.Time{"alice": now},
			},
			viewerId: "alice",
			want:     StreakStatePending,
		},
		{
			name: "friend snapped, viewer owes a reply",
			streak: &model.Streak{
				Id:         "alice_bob",
				LastSnapBy: map[string]time.Time{"bob": now},
			},
			viewerId: "alice",
			want:     StreakStateBuilding,
		},
		{
			name: "live streak",
			streak: &model.Streak{
				Id:        "alice_bob",
				DayCount:  5,
				ExpiresAt: &live,
			},
			viewerId: "alice",
			want:     StreakStateActive,
		},
		{
			name: "live streak with warning flag",
			streak: &model.Streak{
				Id:        "alice_bob",
				DayCount:  5,
				ExpiresAt: &live,
				Warning:   true,
			},
			viewerId: "alice",
			want:     StreakStateWarning,
		},
		{
			name: "expired streak falls back to snap records",
			streak: &model.Streak{
				Id:         "alice_bob",
				DayCount:   5,
				ExpiresAt:  &expired,
				LastSnapBy: map[string]time.Time{"bob": now},
			},
			viewerId: "alice",
			want:     StreakStateBuilding,
		},
		{
			name: "expired streak with no records",
			streak: &model.Streak{
				Id:        "alice_bob",
				DayCount:  5,
				ExpiresAt: &expired,
			},
			viewerId: "alice",
			want:     StreakStateDefault,
		},
		{
			name: "same doc, other perspective",
			streak: &model.Streak{
				Id:         "alice_bob",
				LastSnapBy: map[string]time.Time{"alice": now},
			},
			viewerId: "bob",
			want:     StreakStateBuilding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStreakState(tt.streak, tt.viewerId, now)
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestStreakColorTiers(t *testing.T) {
	tests := []struct {
		state    StreakState
		dayCount int
		want     string
	}{
		{StreakStateDefault, 0, streakColorDefault},
		{StreakStateBuilding, 0, streakColorBuilding},
		{StreakStatePending, 0, streakColorPending},
		{StreakStateWarning, 20, streakColorWarning},
		{StreakStateActive, 2, streakColorTier1},
		{StreakStateActive, 3, streakColorTier2},
		{StreakStateActive, 9, streakColorTier2},
		{StreakStateActive, 10, streakColorTier3},
		{StreakStateActive, 49, streakColorTier3},
		{StreakStateActive, 50, streakColorTier4},
	}

	for _, tt := range tests {
		got := StreakColor(tt.state, tt.dayCount)
		if got != tt.want {
			t.Errorf("StreakColor(%s, %d): expected %s, got %s", tt.state, tt.dayCount, tt.want, got)
		}
	}
}

func TestStreakService_SnapExchange(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	pub := &stubPublisher{}
	svc := NewStreakService(client, pub, 24*time.Hour)
	ctx := context.Background()
	now := time.Now()

	// alice 先发：只记录互动，不开始计数
	st, err := svc.ApplySnap(ctx, "alice_bob", "alice", now)
	if err != nil {
		t.Fatalf("first ApplySnap failed: %v", err)
	}
	if st.DayCount != 0 || st.ExpiresAt != nil {
		t.Fatalf("one-sided snap must not start the streak: %+v", st)
	}
	if DeriveStreakState(st, "alice", now) != StreakStatePending {
		t.Error("expected pending state for the sender")
	}

	// bob 在周期内回应：互动链开始
	st, err = svc.ApplySnap(ctx, "alice_bob", "bob", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("second ApplySnap failed: %v", err)
	}
	if st.DayCount != 1 {
		t.Fatalf("expected day count 1 after exchange, got %d", st.DayCount)
	}
	if st.ExpiresAt == nil {
		t.Fatal("expected expiry set after exchange")
	}
	if len(pub.streakChanged) != 2 {
		t.Errorf("expected 2 streak change events, got %d", len(pub.streakChanged))
	}

	// 下一轮双方再互动：推进一天并顺延
	st, err = svc.ApplySnap(ctx, "alice_bob", "alice", now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("third ApplySnap failed: %v", err)
	}
	st, err = svc.ApplySnap(ctx, "alice_bob", "bob", now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("fourth ApplySnap failed: %v", err)
	}
	if st.DayCount != 2 {
		t.Fatalf("expected day count 2, got %d", st.DayCount)
	}
}

func TestStreakService_ExpireSkipsExtended(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewStreakService(client, &stubPublisher{}, 24*time.Hour)
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.ApplySnap(ctx, "alice_bob", "alice", now); err != nil {
		t.Fatalf("ApplySnap failed: %v", err)
	}
	st, err := svc.ApplySnap(ctx, "alice_bob", "bob", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ApplySnap failed: %v", err)
	}
	firstExpiry := *st.ExpiresAt

	// 过期任务触发时互动已顺延，不应重置
	if err := svc.Expire(ctx, "alice_bob", firstExpiry.Add(-time.Hour)); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	st, err = svc.Get(ctx, "alice_bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if st.DayCount != 1 {
		t.Fatalf("live streak must not be reset, got day count %d", st.DayCount)
	}

	// 真正过期后重置
	if err := svc.Expire(ctx, "alice_bob", firstExpiry.Add(time.Second)); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	st, err = svc.Get(ctx, "alice_bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if st.DayCount != 0 || st.ExpiresAt != nil {
		t.Fatalf("expected reset streak, got %+v", st)
	}
}

func TestStreakService_MarkWarning(t *testing.T) {
	client := getTestRedisClient(t)
	defer client.Close()

	svc := NewStreakService(client, &stubPublisher{}, 24*time.Hour)
	ctx := context.Background()
	now := time.Now()

	if _, err := svc.ApplySnap(ctx, "alice_bob", "alice", now); err != nil {
		t.Fatalf("ApplySnap failed: %v", err)
	}
	if _, err := svc.ApplySnap(ctx, "alice_bob", "bob", now.Add(time.Minute)); err != nil {
		t.Fatalf("ApplySnap failed: %v", err)
	}

	if err := svc.MarkWarning(ctx, "alice_bob"); err != nil {
		t.Fatalf("MarkWarning failed: %v", err)
	}
	st, err := svc.Get(ctx, "alice_bob")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !st.Warning {
		t.Fatal("expected warning flag set")
	}
	if DeriveStreakState(st, "alice", now.Add(time.Hour)) != StreakStateWarning {
		t.Error("expected warning state while streak is live")
	}
}
