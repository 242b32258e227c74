package handler

import (
	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/middleware"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/response"
)

// ConversationHandler 会话接口处理器
type ConversationHandler struct {
	conversations *service.ConversationService
	profiles      *service.ProfileService
}

// NewConversationHandler 创建会话接口处理器
func NewConversationHandler(conversations *service.ConversationService, profiles *service.ProfileService) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		profiles:      profiles,
	}
}

// createRequest 创建会话请求
type createRequest struct {
	FriendId string `json:"friendId" binding:"required"`
}

// Create 获取或创建与指定好友的会话
// POST /api/v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	userId := middleware.GetUserID(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, errors.CodeMissingID, err.Error())
		return
	}

	conv, created, err := h.conversations.GetOrCreate(c.Request.Context(), userId, req.FriendId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"conversation": conv,
		"created":      created,
	})
}

// inboxItem 会话列表条目
type inboxItem struct {
	Conversation *model.Conversation `json:"conversation"`
	Friend       model.Profile       `json:"friend"`
}

// List 获取当前用户的会话列表
// GET /api/v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userId := middleware.GetUserID(c)
	ctx := c.Request.Context()

	conversations, err := h.conversations.List(ctx, userId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	// 过滤本方已删除且此后无新消息的会话，批量补齐对方资料
	visible := make([]*model.Conversation, 0, len(conversations))
	friendIds := make([]string, 0, len(conversations))
	for _, conv := range conversations {
		if conv.HiddenFor(userId) {
			continue
		}
		visible = append(visible, conv)
		friendIds = append(friendIds, conv.Friend(userId))
	}

	profiles, err := h.profiles.GetProfiles(ctx, friendIds)
	if err != nil {
		profiles = map[string]model.Profile{}
	}

	items := make([]inboxItem, 0, len(visible))
	for _, conv := range visible {
		friendId := conv.Friend(userId)
		profile, ok := profiles[friendId]
		if !ok {
			profile = model.UnknownProfile(friendId)
		}
		items = append(items, inboxItem{Conversation: conv, Friend: profile})
	}

	totalUnread, err := h.conversations.TotalUnread(ctx, userId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"items":       items,
		"totalUnread": totalUnread,
	})
}

// Get 获取单个会话文档
// GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	userId := middleware.GetUserID(c)
	conversationId := c.Param("id")

	if !pair.Contains(conversationId, userId) {
		response.ErrorFromAppError(c, errors.ErrPermissionDenied)
		return
	}

	conv, err := h.conversations.Get(c.Request.Context(), conversationId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, conv)
}

// MarkRead 标记会话已读
// POST /api/v1/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userId := middleware.GetUserID(c)
	conversationId := c.Param("id")

	if !pair.Contains(conversationId, userId) {
		response.ErrorFromAppError(c, errors.ErrPermissionDenied)
		return
	}

	if err := h.conversations.MarkRead(c.Request.Context(), conversationId, userId); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

// Delete 删除会话（仅对操作者隐藏）
// DELETE /api/v1/conversations/:id
func (h *ConversationHandler) Delete(c *gin.Context) {
	userId := middleware.GetUserID(c)
	conversationId := c.Param("id")

	if !pair.Contains(conversationId, userId) {
		response.ErrorFromAppError(c, errors.ErrPermissionDenied)
		return
	}

	if err := h.conversations.SoftDelete(c.Request.Context(), conversationId, userId); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}
