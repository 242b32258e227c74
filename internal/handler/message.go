package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/middleware"
	"sudooom.im.sync/internal/model"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/pair"
	"sudooom.im.sync/pkg/response"
)

// MessageHandler 消息接口处理器
type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
	snapViewTTL   time.Duration
	pageSize      int
}

// NewMessageHandler 创建消息接口处理器
func NewMessageHandler(messages *service.MessageService, conversations *service.ConversationService, snapViewTTL time.Duration, pageSize int) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
		snapViewTTL:   snapViewTTL,
		pageSize:      pageSize,
	}
}

// sendRequest 发送消息请求
type sendRequest struct {
	Type            int32                `json:"type" binding:"required"`
	ClientMsgId     string               `json:"clientMsgId"`
	Text            string               `json:"text"`
	GifURL          string               `json:"gifUrl"`
	ImageURL        string               `json:"imageUrl"`
	SnapStoragePath string               `json:"snapStoragePath"`
	TaggedPhotoId   string               `json:"taggedPhotoId"`
	ReplyTo         *model.ReplySnapshot `json:"replyTo"`
}

// Send 发送消息
// POST /api/v1/conversations/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	userId := middleware.GetUserID(c)
	conversationId := c.Param("id")

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, errors.CodeEmptyPayload, err.Error())
		return
	}

	messageId, err := h.messages.Send(c.Request.Context(), conversationId, userId, service.SendPayload{
		Type:            model.MessageType(req.Type),
		ClientMsgId:     req.ClientMsgId,
		Text:            req.Text,
		GifURL:          req.GifURL,
		ImageURL:        req.ImageURL,
		SnapStoragePath: req.SnapStoragePath,
		TaggedPhotoId:   req.TaggedPhotoId,
		ReplyTo:         req.ReplyTo,
	})
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"messageId": messageId})
}

// Window 拉取消息窗口
// GET /api/v1/conversations/:id/messages?cursor=<messageId>
// 不带 cursor 返回最新一页，带 cursor 返回该消息之前的一页
func (h *MessageHandler) Window(c *gin.Context) {
	userId := middleware.GetUserID(c)
	conversationId := c.Param("id")
	ctx := c.Request.Context()

	if !pair.Contains(conversationId, userId) {
		response.ErrorFromAppError(c, errors.ErrPermissionDenied)
		return
	}

	// 本方删除会话后只看得到删除时间之后的消息
	conv, err := h.conversations.Get(ctx, conversationId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	cutoff := conv.DeletedFor(userId)

	var window *model.MessageWindow
	if cursorStr := c.Query("cursor"); cursorStr != "" {
		cursor, err := strconv.ParseInt(cursorStr, 10, 64)
		if err != nil {
			response.ErrorWithMsg(c, errors.CodeMissingID, "invalid cursor")
			return
		}
		window, err = h.messages.LoadMore(ctx, conversationId, userId, cursor, cutoff, h.pageSize)
		if err != nil {
			response.ErrorFromAppError(c, err)
			return
		}
	} else {
		window, err = h.messages.NewestWindow(ctx, conversationId, userId, cutoff, h.pageSize)
		if err != nil {
			response.ErrorFromAppError(c, err)
			return
		}
	}

	response.Success(c, window)
}

// Unsend 撤回消息
// POST /api/v1/messages/:id/unsend
func (h *MessageHandler) Unsend(c *gin.Context) {
	userId := middleware.GetUserID(c)

	messageId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithMsg(c, errors.CodeMissingID, "invalid message id")
		return
	}

	if err := h.messages.Unsend(c.Request.Context(), messageId, userId); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

// reactRequest 表态请求
type reactRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// React 对消息表态
// POST /api/v1/messages/:id/reactions
func (h *MessageHandler) React(c *gin.Context) {
	userId := middleware.GetUserID(c)

	messageId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithMsg(c, errors.CodeMissingID, "invalid message id")
		return
	}

	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, errors.CodeEmptyPayload, err.Error())
		return
	}

	if err := h.messages.React(c.Request.Context(), messageId, userId, req.Emoji); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}

// View 标记阅后即焚消息已查看
// POST /api/v1/messages/:id/view
func (h *MessageHandler) View(c *gin.Context) {
	userId := middleware.GetUserID(c)

	messageId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithMsg(c, errors.CodeMissingID, "invalid message id")
		return
	}

	expiresAt, err := h.messages.MarkViewed(c.Request.Context(), messageId, userId, h.snapViewTTL)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, gin.H{"expiresAt": expiresAt.UnixMilli()})
}

// Hide 对当前用户隐藏消息
// DELETE /api/v1/messages/:id
func (h *MessageHandler) Hide(c *gin.Context) {
	userId := middleware.GetUserID(c)

	messageId, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithMsg(c, errors.CodeMissingID, "invalid message id")
		return
	}

	if err := h.messages.HideForViewer(c.Request.Context(), messageId, userId); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	response.Success(c, nil)
}
