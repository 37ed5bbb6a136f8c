package controllers

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"

	"github.com/freechat/session-go/internal/errors"
	"github.com/freechat/session-go/internal/logger"
)

var (
	validate = validator.New()

	errorHandlerOnce sync.Once
	errorHandler     *errors.ErrorHandler
)

func getErrorHandler() *errors.ErrorHandler {
	errorHandlerOnce.Do(func() {
		errorHandler = errors.NewErrorHandler(logger.GetLogger())
	})
	return errorHandler
}

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// handleError 统一错误出口：记录并按错误类型映射HTTP状态
func (c *BaseController) handleError(endpoint string, err error) {
	appErr := getErrorHandler().Notify(endpoint, err)
	c.JSON(appErr.HTTPCode, map[string]interface{}{
		"success": false,
		"code":    appErr.Code,
		"error":   appErr.Message,
	})
}

// userID 取认证中间件写入的用户ID
func (c *BaseController) userID() (string, bool) {
	v := c.Ctx.Input.GetData("user_id")
	userID, ok := v.(string)
	if !ok || userID == "" {
		c.JSONError(http.StatusUnauthorized, "not authenticated")
		return "", false
	}
	return userID, true
}

// parseBody 解析并校验请求体
func (c *BaseController) parseBody(out interface{}) bool {
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, out); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(out); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}
