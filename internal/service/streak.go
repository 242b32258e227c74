package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
)

// 连续互动文档哈希字段
const (
	fieldDayCount  = "day_count"
	fieldExpiresAt = "expires_at"
	fieldWarning   = "warning"

	lastSnapPrefix = "last_snap:"
)

// StreakState 连续互动展示状态
// 同一份文档对两个参与者各自推导，结果可能不同
type StreakState string

const (
	StreakStateDefault  StreakState = "default"  // 双方都没有互动
	StreakStateBuilding StreakState = "building" // 对方已互动，等待本方回应
	StreakStatePending  StreakState = "pending"  // 本方已互动，等待对方回应
	StreakStateActive   StreakState = "active"   // 连续互动进行中
	StreakStateWarning  StreakState = "warning"  // 即将过期
)

// DeriveStreakState 推导连续互动状态（纯函数）
// expiresAt 过期后按未开始处理，重新根据互动记录推导
func DeriveStreakState(st *model.Streak, viewerId string, now time.Time) StreakState {
	if st.ExpiresAt != nil && st.ExpiresAt.After(now) {
		if st.Warning {
			return StreakStateWarning
		}
		return StreakStateActive
	}

	friendId := pair.Other(st.Id, viewerId)
	switch {
	case st.SnappedBy(viewerId):
		return StreakStatePending
	case st.SnappedBy(friendId):
		return StreakStateBuilding
	}
	return StreakStateDefault
}

// 连续互动展示色
const (
	streakColorDefault  = "#9AA0A6"
	streakColorBuilding = "#FDD663"
	streakColorPending  = "#8AB4F8"
	streakColorWarning  = "#F28B82"

	streakColorTier1 = "#FF8A65" // dayCount < 3
	streakColorTier2 = "#FF7043" // 3 <= dayCount < 10
	streakColorTier3 = "#FF5722" // 10 <= dayCount < 50
	streakColorTier4 = "#E64A19" // dayCount >= 50
)

// StreakColor 根据状态和天数映射展示色（纯函数）
// 档位边界：3 / 10 / 50
func StreakColor(state StreakState, dayCount int) string {
	switch state {
	case StreakStateBuilding:
		return streakColorBuilding
	case StreakStatePending:
		return streakColorPending
	case StreakStateWarning:
		return streakColorWarning
	case StreakStateActive:
		switch {
		case dayCount >= 50:
			return streakColorTier4
		case dayCount >= 10:
			return streakColorTier3
		case dayCount >= 3:
			return streakColorTier2
		}
		return streakColorTier1
	}
	return streakColorDefault
}

// StreakService 连续互动服务（基于 Redis）
// 对客户端只读；文档只由触发处理器通过 Apply* 方法修改
type StreakService struct {
	redisClient *redis.Client
	publisher   Publisher
	period      time.Duration // 一轮互动周期
	logger      *slog.Logger
}

// NewStreakService 创建连续互动服务
func NewStreakService(redisClient *redis.Client, publisher Publisher, period time.Duration) *StreakService {
	return &StreakService{
		redisClient: redisClient,
		publisher:   publisher,
		period:      period,
		logger:      slog.Default(),
	}
}

// Get 拉取连续互动文档
// 文档不存在时返回零值文档（从未互动过的配对）
func (s *StreakService) Get(ctx context.Context, streakId string) (*model.Streak, error) {
	data, err := s.redisClient.HGetAll(ctx, BuildStreakKey(streakId)).Result()
	if err != nil {
		return nil, wrapBackend(err)
	}
	return parseStreak(streakId, data), nil
}

// ApplySnap 记录一次互动（由触发处理器调用）
// 双方都在当前周期内互动时推进天数并顺延过期时间
func (s *StreakService) ApplySnap(ctx context.Context, streakId, senderId string, now time.Time) (*model.Streak, error) {
	if !pair.Contains(streakId, senderId) {
		return nil, errors.ErrNotParticipant
	}

	st, err := s.Get(ctx, streakId)
	if err != nil {
		return nil, err
	}

	peerId := pair.Other(streakId, senderId)
	peerSnap, peerSnapped := st.LastSnapBy[peerId]

	dayCount := st.DayCount
	expiresAt := st.ExpiresAt
	warning := st.Warning

	live := expiresAt != nil && expiresAt.After(now)
	periodStart := now.Add(-s.period)

	if live {
		// 周期内双方都有互动：推进一天并顺延
		if peerSnapped && peerSnap.After(expiresAt.Add(-s.period)) {
			dayCount++
			next := now.Add(s.period)
			expiresAt = &next
			warning = false
		}
	} else if peerSnapped && peerSnap.After(periodStart) {
		// 互动链从头开始
		dayCount = 1
		next := now.Add(s.period)
		expiresAt = &next
		warning = false
	}

	key := BuildStreakKey(streakId)
	expiresMs := int64(0)
	if expiresAt != nil {
		expiresMs = expiresAt.UnixMilli()
	}
	warningFlag := 0
	if warning {
		warningFlag = 1
	}

	err = s.redisClient.HSet(ctx, key,
		fieldDayCount, dayCount,
		fieldExpiresAt, expiresMs,
		fieldWarning, warningFlag,
		lastSnapPrefix+senderId, now.UnixMilli(),
	).Err()
	if err != nil {
		return nil, wrapBackend(err)
	}

	if err := s.publisher.PublishStreakChanged(streakId); err != nil {
		s.logger.Warn("Failed to publish streak change", "streakId", streakId, "error", err)
	}

	return s.Get(ctx, streakId)
}

// MarkWarning 设置即将过期标记（由调度任务触发）
func (s *StreakService) MarkWarning(ctx context.Context, streakId string) error {
	st, err := s.Get(ctx, streakId)
	if err != nil {
		return err
	}
	// 过期时间已被新互动顺延时跳过
	if st.ExpiresAt == nil || !st.ExpiresAt.After(time.Now()) {
		return nil
	}

	if err := s.redisClient.HSet(ctx, BuildStreakKey(streakId), fieldWarning, 1).Err(); err != nil {
		return wrapBackend(err)
	}
	if err := s.publisher.PublishStreakChanged(streakId); err != nil {
		s.logger.Warn("Failed to publish streak warning", "streakId", streakId, "error", err)
	}
	return nil
}

// Expire 过期重置（由调度任务触发）
func (s *StreakService) Expire(ctx context.Context, streakId string, now time.Time) error {
	st, err := s.Get(ctx, streakId)
	if err != nil {
		return err
	}
	// 已顺延的不重置
	if st.ExpiresAt == nil || st.ExpiresAt.After(now) {
		return nil
	}

	if err := s.redisClient.HSet(ctx, BuildStreakKey(streakId),
		fieldDayCount, 0,
		fieldExpiresAt, 0,
		fieldWarning, 0,
	).Err(); err != nil {
		return wrapBackend(err)
	}
	if err := s.publisher.PublishStreakChanged(streakId); err != nil {
		s.logger.Warn("Failed to publish streak expiry", "streakId", streakId, "error", err)
	}
	return nil
}

// parseStreak 从哈希字段解析连续互动文档
func parseStreak(streakId string, data map[string]string) *model.Streak {
	st := &model.Streak{
		Id:         streakId,
		LastSnapBy: make(map[string]time.Time),
	}
	if a, b, ok := pair.Participants(streakId); ok {
		st.Participants[0], st.Participants[1] = a, b
	}
	if len(data) == 0 {
		return st
	}

	st.DayCount = int(parseInt64(data[fieldDayCount]))
	st.Warning = data[fieldWarning] == "1"
	if ms := parseInt64(data[fieldExpiresAt]); ms > 0 {
		t := time.UnixMilli(ms)
		st.ExpiresAt = &t
	}

	for field, value := range data {
		if strings.HasPrefix(field, lastSnapPrefix) {
			st.LastSnapBy[field[len(lastSnapPrefix):]] = parseMillis(value)
		}
	}
	return st
}
