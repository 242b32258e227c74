package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/middleware"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/response"
)

// ProfileHandler 用户资料接口处理器
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler 创建用户资料接口处理器
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Get 获取指定用户资料
// GET /api/v1/profiles/:id
func (h *ProfileHandler) Get(c *gin.Context) {
	targetId := c.Param("id")

	resolved, err := h.profiles.GetProfiles(c.Request.Context(), []string{targetId})
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	profile, ok := resolved[targetId]
	if !ok {
		response.ErrorFromAppError(c, errors.NewError(errors.CodeProfileNotFound, "用户资料不存在"))
		return
	}
	response.Success(c, profile)
}

// updateProfileRequest 更新资料请求
type updateProfileRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName" binding:"required"`
	AvatarURL   string `json:"avatarUrl"`
	NameColor   string `json:"nameColor"`
}

// Update 更新当前用户资料
// PUT /api/v1/profiles
func (h *ProfileHandler) Update(c *gin.Context) {
	userId := middleware.GetUserID(c)

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, errors.CodeEmptyPayload, err.Error())
		return
	}

	err := h.profiles.Put(c.Request.Context(), model.Profile{
		UserId:      userId,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		NameColor:   req.NameColor,
	})
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}
