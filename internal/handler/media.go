package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.im.sync/internal/middleware"
	"sudooom.im.sync/internal/repository"
	"sudooom.im.sync/internal/service"
	"sudooom.im.sync/pkg/errors"
	"sudooom.im.sync/pkg/response"
)

// maxUploadSize 单个媒体对象大小上限
const maxUploadSize = 16 << 20 // 16 MiB

// MediaHandler 媒体接口处理器
type MediaHandler struct {
	media *service.MediaService
	store *repository.FileObjectStore
}

// NewMediaHandler 创建媒体接口处理器
func NewMediaHandler(media *service.MediaService, store *repository.FileObjectStore) *MediaHandler {
	return &MediaHandler{
		media: media,
		store: store,
	}
}

// Upload 上传媒体对象
// POST /api/v1/media?prefix=snaps&viewer=<peerId>
// 请求体为对象原始字节；返回存储路径和为查看方签名的访问令牌
func (h *MediaHandler) Upload(c *gin.Context) {
	userId := middleware.GetUserID(c)

	prefix := c.Query("prefix")
	if prefix == "" {
		prefix = "media"
	}
	viewerId := c.Query("viewer")
	if viewerId == "" {
		viewerId = userId
	}

	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUploadSize+1))
	if err != nil {
		response.ErrorFromAppError(c, errors.ErrUploadFailed.Wrap(err))
		return
	}
	if len(data) == 0 || len(data) > maxUploadSize {
		response.ErrorWithMsg(c, errors.CodeEmptyPayload, "invalid media payload size")
		return
	}

	storagePath, err := h.media.Upload(c.Request.Context(), prefix, data)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	token, err := h.media.SignURL(storagePath, viewerId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{
		"storagePath": storagePath,
		"token":       token,
	})
}

// View 读取媒体对象
// GET /api/v1/media/view?token=<signed>
// 令牌绑定查看方，过期或查看方不符都会被拒绝
func (h *MediaHandler) View(c *gin.Context) {
	userId := middleware.GetUserID(c)

	token := c.Query("token")
	if token == "" {
		response.ErrorWithMsg(c, errors.CodeMissingID, "missing media token")
		return
	}

	storagePath, err := h.media.VerifyURL(token, userId)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	data, err := h.store.Get(c.Request.Context(), storagePath)
	if err != nil {
		response.ErrorFromAppError(c, errors.ErrServerError.Wrap(err))
		return
	}

	c.Data(http.StatusOK, "application/octet-stream", data)
}
