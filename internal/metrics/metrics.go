package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// 任务来源
const (
	SourceManual     = "manual"
	SourceCopy       = "copy"
	SourceRecurrence = "recurrence"
	SourcePeriod     = "period"
)

var (
	// API 请求计数器
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	// API 请求响应时间
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 任务创建数(按来源)
	tasksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casuite_tasks_created_total",
			Help: "Total number of tasks created",
		},
		[]string{"source"}, // manual, copy, recurrence, period
	)

	// 步骤完成数
	stepCompletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casuite_step_completions_total",
			Help: "Total number of completed assignment steps",
		},
		[]string{"actor"}, // self, admin
	)

	// 阶段推进数
	stageAdvancesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casuite_stage_advances_total",
			Help: "Total number of workflow stage advances",
		},
		[]string{"service_type"},
	)

	// 定时任务执行数
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casuite_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "result"}, // result: success, failure
	)

	// 付款操作数
	paymentActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casuite_payment_actions_total",
			Help: "Total number of payment operations",
		},
		[]string{"action"}, // record, approve, reject, cancel
	)

	// 数据库连接数
	databaseConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_active",
			Help: "Number of active database connections",
		},
	)

	databaseConnectionsIdle = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	databaseConnectionsMax = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "database_connections_max",
			Help: "Maximum number of database connections",
		},
	)

	// 任务状态分布
	tasksByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "casuite_tasks_by_status",
			Help: "Number of tasks by workflow status",
		},
		[]string{"status"},
	)
)

var (
	once sync.Once
)

func init() {
	// 注册指标
	prometheus.MustRegister(apiRequestsTotal)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(tasksCreatedTotal)
	prometheus.MustRegister(stepCompletionsTotal)
	prometheus.MustRegister(stageAdvancesTotal)
	prometheus.MustRegister(jobRunsTotal)
	prometheus.MustRegister(paymentActionsTotal)
	prometheus.MustRegister(databaseConnectionsActive)
	prometheus.MustRegister(databaseConnectionsIdle)
	prometheus.MustRegister(databaseConnectionsMax)
	prometheus.MustRegister(tasksByStatus)

	// 注册 Go 运行时指标（只注册一次）
	once.Do(func() {
		// 尝试注册 Go 运行时指标，如果已注册则忽略错误
		_ = prometheus.Register(prometheus.NewGoCollector())
		_ = prometheus.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	})
}

// Handler 返回 Prometheus 指标处理器
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAPIRequest 记录 API 请求
func RecordAPIRequest(method, path string, status int, duration float64) {
	statusText := http.StatusText(status)
	if statusText == "" {
		statusText = fmt.Sprintf("%d", status)
	}
	apiRequestsTotal.WithLabelValues(method, path, statusText).Inc()
	apiRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordTaskCreated 记录任务创建
func RecordTaskCreated(source string) {
	tasksCreatedTotal.WithLabelValues(source).Inc()
}

// RecordStepCompleted 记录步骤完成,onBehalf 表示管理员代为完成
func RecordStepCompleted(onBehalf bool) {
	actor := "self"
	if onBehalf {
		actor = "admin"
	}
	stepCompletionsTotal.WithLabelValues(actor).Inc()
}

// RecordStageAdvanced 记录阶段推进
func RecordStageAdvanced(serviceType string) {
	stageAdvancesTotal.WithLabelValues(serviceType).Inc()
}

// RecordJobRun 记录定时任务执行结果
func RecordJobRun(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	jobRunsTotal.WithLabelValues(job, result).Inc()
}

// RecordPaymentAction 记录付款操作
func RecordPaymentAction(action string) {
	paymentActionsTotal.WithLabelValues(action).Inc()
}

// UpdateDatabaseConnections 更新数据库连接数指标
func UpdateDatabaseConnections(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database connection is nil")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}

	stats := sqlDB.Stats()
	databaseConnectionsActive.Set(float64(stats.OpenConnections - stats.Idle))
	databaseConnectionsIdle.Set(float64(stats.Idle))
	databaseConnectionsMax.Set(float64(stats.MaxOpenConnections))

	return nil
}

// UpdateTasksByStatus 更新任务状态分布指标
func UpdateTasksByStatus(counts map[string]int64) {
	tasksByStatus.Reset()
	for status, count := range counts {
		tasksByStatus.WithLabelValues(status).Set(float64(count))
	}
}
