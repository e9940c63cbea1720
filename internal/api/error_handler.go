package api

import (
	"errors"
	"net/http"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIError API 错误
type APIError struct {
	Code    int
	Message string
	Detail  string
}

func (e *APIError) Error() string {
	return e.Message
}

// WrapError 包装错误
func WrapError(err error, code int, message string) *APIError {
	return &APIError{
		Code:    code,
		Message: message,
		Detail:  err.Error(),
	}
}

// errorMappings 领域错误与 HTTP 状态码,按顺序匹配
var errorMappings = []struct {
	err     error
	code    int
	message string
}{
	{service.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrMissingToken, http.StatusUnauthorized, "unauthenticated"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "invalid token"},
	{workflow.ErrNotPermitted, http.StatusForbidden, "forbidden"},
	{workflow.ErrTaskNotFound, http.StatusNotFound, "task not found"},
	{workflow.ErrAssignmentNotFound, http.StatusNotFound, "assignment not found"},
	{service.ErrClientNotFound, http.StatusNotFound, "client not found"},
	{service.ErrEngagementMissing, http.StatusNotFound, "client service not found"},
	{service.ErrInvoiceNotFound, http.StatusNotFound, "invoice not found"},
	{service.ErrPaymentNotFound, http.StatusNotFound, "payment not found"},
	{recurrence.ErrUnknownJob, http.StatusNotFound, "job not found"},
	{workflow.ErrPreviousPending, http.StatusConflict, "previous step pending"},
	{workflow.ErrAlreadyCompleted, http.StatusConflict, "step already completed"},
	{workflow.ErrTaskClosed, http.StatusConflict, "task is closed"},
	{workflow.ErrConcurrentUpdate, http.StatusConflict, "concurrent update"},
	{service.ErrDuplicatePAN, http.StatusConflict, "duplicate PAN"},
	{service.ErrInvalidTransition, http.StatusConflict, "invalid status transition"},
	{service.ErrPaymentNotPending, http.StatusConflict, "payment is not pending"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid request"},
	{workflow.ErrStatusNotInWorkflow, http.StatusBadRequest, "invalid status"},
	{workflow.ErrInvalidAssignees, http.StatusBadRequest, "invalid assignees"},
	{schedule.ErrInvalidPeriod, http.StatusBadRequest, "invalid recurrence period"},
}

// toAPIError 将服务层错误转换为 APIError
func toAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return WrapError(err, m.code, m.message)
		}
	}
	var ve *utils.ValidationError
	if errors.As(err, &ve) {
		return WrapError(err, http.StatusBadRequest, "invalid request")
	}
	return WrapError(err, http.StatusInternalServerError, "internal server error")
}

// handleError 写出错误响应,5xx 记录日志
func handleError(c *gin.Context, err error) {
	apiErr := toAPIError(err)
	if apiErr.Code >= http.StatusInternalServerError {
		loggerFrom(c).WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"method": c.Request.Method,
		}).Error("Request failed")
		// 不向客户端暴露内部错误
		apiErr = &APIError{Code: apiErr.Code, Message: apiErr.Message}
	}
	Error(c, apiErr.Code, apiErr.Message, apiErr.Detail)
}

// badRequest 请求参数绑定失败
func badRequest(c *gin.Context, err error) {
	Error(c, http.StatusBadRequest, "invalid request", err.Error())
}

// ErrorHandlerMiddleware 处理 c.Error 收集的错误
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			handleError(c, c.Errors.Last().Err)
		}
	}
}

// NotFoundHandler 未匹配路由
func NotFoundHandler(c *gin.Context) {
	Error(c, http.StatusNotFound, "route not found", c.Request.Method+" "+c.Request.URL.Path)
}
