package model

import "time"

// Streak 连续互动文档（存储在 Redis，客户端只读）
type Streak struct {
	Id           string               `json:"id"`
	Participants [2]string            `json:"participants"`
	DayCount     int                  `json:"dayCount"`            // 连续天数（>= 0）
	ExpiresAt    *time.Time           `json:"expiresAt,omitempty"` // nil 表示尚未开始
	Warning      bool                 `json:"warning"`
	LastSnapBy   map[string]time.Time `json:"lastSnapBy"` // userId -> 最后互动时间
}

// SnappedBy 判断指定用户是否有互动记录
func (s *Streak) SnappedBy(userId string) bool {
	if s.LastSnapBy == nil {
		return false
	}
	_, ok := s.LastSnapBy[userId]
	return ok
}
