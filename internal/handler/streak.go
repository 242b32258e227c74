package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/middleware"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/response"
)

// StreakHandler 连续互动接口处理器
type StreakHandler struct {
	streaks *service.StreakService
}

// NewStreakHandler 创建连续互动接口处理器
func NewStreakHandler(streaks *service.StreakService) *StreakHandler {
	return &StreakHandler{streaks: streaks}
}

// Get 获取连续互动状态
// GET /api/v1/streaks/:id
// 状态和展示色按请求方视角推导，同一文档双方看到的结果可能不同
func (h *StreakHandler) Get(c *gin.Context) {
	userId := middleware.GetUserID(c)
	streakId := c.Param("id")

	if !pair.Contains(streakId, userId) {
		response.ErrorFromAppError(c, errors.ErrPermissionDenied)
		return
	}

	st, err := h.streaks.Get(c.Request.Context(), streakId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	state := service.DeriveStreakState(st, userId, time.Now())
	response.Success(c, gin.H{
		"streak": st,
		"state":  state,
		"color":  service.StreakColor(state, st.DayCount),
	})
}
