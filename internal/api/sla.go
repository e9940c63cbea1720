package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// 受监控的操作
const (
	opTaskCreation   = "task_creation"
	opTaskQuery      = "task_query"
	opStepCompletion = "step_completion"
	opPaymentAction  = "payment_action"
	opJobRun         = "job_run"
)

// SLAConfig 各类操作的最大响应时间
type SLAConfig struct {
	TaskCreationMaxTime   time.Duration
	TaskQueryMaxTime      time.Duration
	StepCompletionMaxTime time.Duration
	PaymentActionMaxTime  time.Duration
	JobRunMaxTime         time.Duration
}

// DefaultSLAConfig 返回默认 SLA 配置
func DefaultSLAConfig() *SLAConfig {
	return &SLAConfig{
		TaskCreationMaxTime:   time.Second,
		TaskQueryMaxTime:      500 * time.Millisecond,
		StepCompletionMaxTime: time.Second,
		PaymentActionMaxTime:  time.Second,
		JobRunMaxTime:         time.Minute,
	}
}

// expected 返回操作的期望耗时,未监控的操作返回 0
func (cfg *SLAConfig) expected(operation string) time.Duration {
	switch operation {
	case opTaskCreation:
		return cfg.TaskCreationMaxTime
	case opTaskQuery:
		return cfg.TaskQueryMaxTime
	case opStepCompletion:
		return cfg.StepCompletionMaxTime
	case opPaymentAction:
		return cfg.PaymentActionMaxTime
	case opJobRun:
		return cfg.JobRunMaxTime
	default:
		return 0
	}
}

// operationOf 根据路由模板判断操作类型
func operationOf(method, route string) string {
	switch {
	case route == "/api/v1/tasks" && method == http.MethodPost:
		return opTaskCreation
	case route == "/api/v1/tasks" && method == http.MethodGet,
		route == "/api/v1/me/queue":
		return opTaskQuery
	case strings.HasSuffix(route, "/complete"):
		return opStepCompletion
	case strings.HasPrefix(route, "/api/v1/payments") && method == http.MethodPost,
		strings.HasSuffix(route, "/payments") && method == http.MethodPost:
		return opPaymentAction
	case strings.HasPrefix(route, "/api/v1/jobs/"):
		return opJobRun
	}
	return ""
}

// CheckSLA 检查耗时是否在期望之内
func CheckSLA(operation string, duration time.Duration, cfg *SLAConfig) bool {
	limit := cfg.expected(operation)
	return limit == 0 || duration <= limit
}

// SLAMonitorMiddleware 慢请求监控,超时的请求写入响应头并记录告警日志
func SLAMonitorMiddleware(cfg *SLAConfig, logger logrus.FieldLogger) gin.HandlerFunc {
	if cfg == nil {
		cfg = DefaultSLAConfig()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return func(c *gin.Context) {
		operation := operationOf(c.Request.Method, c.FullPath())
		if operation == "" {
			c.Next()
			return
		}

		start := time.Now()
		c.Writer.Header().Set("X-SLA-Operation", operation)

		// 头部需在写出响应前设置,超时判定在写出后完成
		c.Next()

		duration := time.Since(start)
		if !CheckSLA(operation, duration, cfg) {
			logger.WithFields(logrus.Fields{
				"operation":  operation,
				"duration":   duration.String(),
				"expected":   cfg.expected(operation).String(),
				"path":       c.Request.URL.Path,
				"request_id": c.GetString("request_id"),
			}).Warn("SLA violated")
		}
	}
}
