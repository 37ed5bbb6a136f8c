package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ErrorHandler 错误处理器
// 所有面向用户的错误都经过这里，保证日志细节和响应格式一致。
type ErrorHandler struct {
	logger  *zap.Logger
	monitor *ErrorMonitor
}

// NewErrorHandler 创建错误处理器
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:  logger,
		monitor: NewErrorMonitor(),
	}
}

// Notify 记录错误日志并更新监控指标
// 内部一致性错误（如更新不存在的会话）不会走到这里，调用方已静默吸收。
func (h *ErrorHandler) Notify(endpoint string, err error) *AppError {
	appErr := GetAppError(err)

	if h.monitor != nil {
		h.monitor.RecordError(appErr, endpoint)
	}

	fields := []zap.Field{
		zap.String("error_code", string(appErr.Code)),
		zap.String("error_type", getErrorTypeString(appErr.Type)),
		zap.Int("http_code", appErr.HTTPCode),
		zap.String("endpoint", endpoint),
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}

	switch appErr.Type {
	case ErrorTypeValidation, ErrorTypeBusiness:
		h.logger.Warn(appErr.Message, fields...)
	default:
		h.logger.Error(appErr.Message, fields...)
	}

	return appErr
}

// Handle 处理错误并转换为HTTP响应
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	appErr := h.Notify(r.URL.Path, err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPCode)

	response := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    string(appErr.Code),
			"message": appErr.Message,
			"type":    getErrorTypeString(appErr.Type),
		},
	}
	if appErr.Details != nil {
		response["error"].(map[string]interface{})["details"] = appErr.Details
	}

	jsonResponse, jsonErr := json.Marshal(response)
	if jsonErr != nil {
		h.logger.Error("Failed to marshal error response", zap.Error(jsonErr))
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error": {"code": "INTERNAL_SERVER_ERROR", "message": "Failed to process error response"}}`)
		return
	}

	w.Write(jsonResponse)
}

// getErrorTypeString 错误类型转字符串
func getErrorTypeString(t ErrorType) string {
	switch t {
	case ErrorTypeBusiness:
		return "business"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeGateway:
		return "gateway"
	case ErrorTypeAuthorization:
		return "authorization"
	default:
		return "system"
	}
}
