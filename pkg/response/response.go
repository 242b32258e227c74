package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sudooom.im.sync/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Code:    errors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// ErrorFromAppError 从 AppError 生成错误响应
// HTTP 状态区分：校验类 400，权限类 403，资源不存在 404，其余 500
func ErrorFromAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)

	status := http.StatusInternalServerError
	switch {
	case errors.IsValidation(err):
		status = http.StatusBadRequest
	case errors.IsPermission(err):
		status = http.StatusForbidden
	case code >= 21000 && code < 22000:
		status = http.StatusNotFound
	}

	c.JSON(status, Response{
		Code:    code,
		Message: errors.GetMessage(err),
		Data:    nil,
	})
}

// ErrorWithMsg 自定义错误消息
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, Response{
		Code:    errors.CodePermissionDenied,
		Message: "缺少用户身份",
		Data:    nil,
	})
}
