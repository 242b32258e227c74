package errors

import (
	"errors"
	"fmt"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，用于调试）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError // 默认返回服务器错误
}

// GetMessage 获取错误消息
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "服务器内部错误"
}

// IsValidation 判断是否为参数校验类错误
func IsValidation(err error) bool {
	code := GetCode(err)
	return code >= 20000 && code < 21000
}

// IsPermission 判断是否为权限类错误
func IsPermission(err error) bool {
	return GetCode(err) == CodePermissionDenied
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 参数校验 20000-20999
	CodeMissingID          = 20001
	CodeEmptyPayload       = 20002
	CodeInvalidUserID      = 20003
	CodePayloadConflict    = 20004
	CodeUnsendWindowClosed = 20005
	CodeNotParticipant     = 20006

	// 资源不存在 21000-21999
	CodeConversationNotFound = 21001
	CodeMessageNotFound      = 21002
	CodeStreakNotFound       = 21003
	CodeProfileNotFound      = 21004

	// 权限相关 40300-40399
	CodePermissionDenied = 40301
	CodeURLExpired       = 40302

	// 系统错误 50000-50999
	CodeServerError  = 50001
	CodeDBError      = 50002
	CodePublishError = 50003
	CodeUploadFailed = 50004
)

// ============== 预定义错误 ==============

// 参数校验相关
var (
	ErrMissingID          = NewError(CodeMissingID, "缺少必要的 ID 参数")
	ErrEmptyPayload       = NewError(CodeEmptyPayload, "消息内容不能为空")
	ErrInvalidUserID      = NewError(CodeInvalidUserID, "用户 ID 非法")
	ErrPayloadConflict    = NewError(CodePayloadConflict, "消息类型与内容不匹配")
	ErrUnsendWindowClosed = NewError(CodeUnsendWindowClosed, "已超过撤回时间窗口")
	ErrNotParticipant     = NewError(CodeNotParticipant, "用户不是会话参与者")
)

// 资源相关
var (
	ErrConversationNotFound = NewError(CodeConversationNotFound, "会话不存在")
	ErrMessageNotFound      = NewError(CodeMessageNotFound, "消息不存在")
	ErrStreakNotFound       = NewError(CodeStreakNotFound, "连续互动记录不存在")
)

// 权限相关
var (
	ErrPermissionDenied = NewError(CodePermissionDenied, "没有访问权限")
	ErrURLExpired       = NewError(CodeURLExpired, "媒体链接已过期")
)

// 系统相关
var (
	ErrServerError  = NewError(CodeServerError, "服务器内部错误")
	ErrDBError      = NewError(CodeDBError, "数据库错误")
	ErrPublishError = NewError(CodePublishError, "事件发布失败")
	ErrUploadFailed = NewError(CodeUploadFailed, "媒体上传失败")
)
