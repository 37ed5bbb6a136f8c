package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrCodeBadRequest     ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"

	// 验证错误
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeMissingModelCard ErrorCode = "MISSING_MODEL_CARD"

	// 业务逻辑错误
	ErrCodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeInvalidState    ErrorCode = "INVALID_STATE"

	// 外部服务错误
	ErrCodeGateway          ErrorCode = "GATEWAY_ERROR"
	ErrCodeGatewayTimeout   ErrorCode = "GATEWAY_TIMEOUT"
	ErrCodeStreamAborted    ErrorCode = "STREAM_ABORTED"
	ErrCodeTeamUnauthorized ErrorCode = "TEAM_UNAUTHORIZED"

	// 存储错误
	ErrCodeStoreError ErrorCode = "STORE_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeGateway
	ErrorTypeAuthorization
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// 错误构造函数

// NewSystemError 创建系统错误
func NewSystemError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewValidationError 创建验证错误
// 验证错误直接呈现给用户，不做自动重试。
func NewValidationError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewNotFoundError 创建资源未找到错误
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:     ErrCodeSessionNotFound,
		Message:  fmt.Sprintf("%s not found", resource),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewInvalidStateError 创建状态非法错误
func NewInvalidStateError(from, to string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidState,
		Message:  fmt.Sprintf("invalid transition from %s to %s", from, to),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusConflict,
	}
}

// NewGatewayError 创建网关错误
// 对话创建失败会把会话置为error状态并回滚触发消息，删除/改名失败则只记录。
func NewGatewayError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeGateway,
		Message:  message,
		Type:     ErrorTypeGateway,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewAuthorizationError 创建授权错误
// 设置接口返回的"团队未授权"错误码对当前视图是致命的，前端收到后跳转而不是弹提示。
func NewAuthorizationError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeTeamUnauthorized,
		Message:  message,
		Type:     ErrorTypeAuthorization,
		HTTPCode: http.StatusUnauthorized,
	}
}

// IsAppError 检查是否为AppError
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return NewSystemError(ErrCodeInternalServer, "Internal server error").WithCause(err)
}

// IsAuthorization 是否为授权错误
func IsAuthorization(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeAuthorization
}

// IsValidation 是否为验证错误
func IsValidation(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeValidation
}

// IsGateway 是否为网关错误
func IsGateway(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeGateway
}
