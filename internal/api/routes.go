package api

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/websocket"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     logrus.FieldLogger
	Tokens     *auth.TokenManager
	Hub        *websocket.Hub
	Engine     *workflow.Engine
	Scheduler  JobRunner // 可为空,为空时不注册手动触发接口
	Tasks      service.TaskService
	Queries    service.QueryService
	Statistics service.StatisticsService
	Clients    service.ClientService
	Billing    service.BillingService
	AuditLogs  service.AuditLogService
	Now        func() time.Time
}

// SetupRoutes 配置路由
func SetupRoutes(deps RouterDeps) *gin.Engine {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if config.IsProduction(cfg) {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(NotFoundHandler)
	router.NoMethod(NotFoundHandler)

	// 中间件
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(RequestLogMiddleware(deps.Logger))
	if cfg.Tracing.Enabled {
		router.Use(TracingMiddleware(cfg.Tracing))
	}
	router.Use(SecurityHeadersMiddleware(config.IsProduction(cfg)))
	router.Use(CORSMiddleware(cfg.CORS))
	if cfg.RateLimit.Enabled {
		router.Use(RateLimitMiddleware(cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}
	router.Use(SLAMonitorMiddleware(DefaultSLAConfig(), deps.Logger))
	router.Use(ErrorHandlerMiddleware())

	// 健康检查与指标
	var jobs JobLister
	if deps.Scheduler != nil {
		jobs = deps.Scheduler
	}
	router.GET("/health", NewHealthController(deps.DB, jobs).Check)
	router.GET("/metrics", MetricsHandler)

	// 实时推送
	if deps.Hub != nil {
		router.GET("/ws/tasks/:id", websocket.Handler(deps.Hub, deps.Tokens, cfg.CORS.AllowedOrigins))
		router.GET("/sse/tasks/:id", SSEHandler(deps.Hub, deps.Tokens))
	}

	taskController := NewTaskController(deps.Tasks)
	queryController := NewQueryController(deps.Queries, deps.Now)
	statsController := NewStatisticsController(deps.Statistics, deps.Now)
	clientController := NewClientController(deps.Clients)
	billingController := NewBillingController(deps.Billing)
	auditController := NewAuditController(deps.AuditLogs)
	catalogController := NewCatalogController(deps.Engine)

	read := RequirePermission(auth.PermTaskRead)
	write := RequirePermission(auth.PermTaskWrite)

	// API v1 路由组
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(deps.Tokens))
	{
		v1.GET("/me/queue", read, queryController.MyQueue)
		v1.GET("/catalog", read, catalogController.Get)
		v1.GET("/catalog/:service", read, catalogController.Steps)

		// 任务管理路由
		tasks := v1.Group("/tasks")
		{
			tasks.POST("", write, taskController.Create)
			tasks.GET("", read, queryController.ListTasks)
			tasks.GET("/:id", read, taskController.Get)
			tasks.PUT("/:id", write, taskController.Update)
			tasks.DELETE("/:id", RequirePermission(auth.PermTaskDelete), taskController.Delete)
			tasks.POST("/:id/complete", write, taskController.CompleteStep)
			tasks.PUT("/:id/assignees", write, taskController.Reassign)
			tasks.PUT("/:id/status", write, taskController.ChangeStatus)
			tasks.GET("/:id/active-step", read, taskController.ActiveStep)
			tasks.POST("/:id/copy", write, taskController.Copy)
			tasks.GET("/:id/assignments", read, queryController.GetAssignments)
			tasks.GET("/:id/history", read, queryController.GetHistory)
			tasks.GET("/:id/comments", read, queryController.GetComments)
			// 合伙人只读,但可以评论
			tasks.POST("/:id/comments", read, taskController.AddComment)
		}

		batch := v1.Group("/batch")
		{
			batch.POST("/tasks/complete", write, taskController.BatchComplete)
			batch.POST("/payments", RequirePermission(auth.PermPaymentApprove), billingController.BulkPaymentAction)
		}

		statistics := v1.Group("/statistics", read)
		{
			statistics.GET("/summary", statsController.Summary)
			statistics.GET("/tasks/by-status", statsController.ByStatus)
			statistics.GET("/tasks/by-service", statsController.ByServiceType)
		}

		// 客户管理路由
		clients := v1.Group("/clients")
		{
			clients.POST("", RequirePermission(auth.PermClientWrite), clientController.Create)
			clients.GET("", read, clientController.List)
			clients.GET("/:id", read, clientController.Get)
			clients.POST("/:id/services", RequirePermission(auth.PermClientWrite), clientController.CreateEngagement)
			clients.GET("/:id/services", read, clientController.ListEngagements)
		}
		v1.PUT("/client-services/:id/active", RequirePermission(auth.PermClientWrite), clientController.SetEngagementActive)

		// 发票与收款路由
		billingWrite := RequirePermission(auth.PermBillingWrite)
		invoices := v1.Group("/invoices")
		{
			invoices.POST("", billingWrite, billingController.CreateInvoice)
			invoices.GET("", read, billingController.ListInvoices)
			invoices.GET("/:id", read, billingController.GetInvoice)
			invoices.GET("/:id/summary", read, billingController.Summary)
			invoices.POST("/:id/items", billingWrite, billingController.AddItem)
			invoices.PUT("/:id/status", billingWrite, billingController.SetStatus)
			invoices.POST("/:id/payments", billingWrite, billingController.RecordPayment)
		}
		payments := v1.Group("/payments")
		{
			payments.POST("/:id/approve", RequirePermission(auth.PermPaymentApprove), billingController.ApprovePayment)
			payments.POST("/:id/reject", RequirePermission(auth.PermPaymentApprove), billingController.RejectPayment)
			// 登记人可取消自己的收款,权限由服务层判断
			payments.POST("/:id/cancel", billingWrite, billingController.CancelPayment)
		}

		v1.GET("/audit-logs", RequirePermission(auth.PermAuditRead), auditController.List)

		if deps.Scheduler != nil {
			jobController := NewJobController(deps.Scheduler)
			jobsGroup := v1.Group("/jobs", RequirePermission(auth.PermJobRun))
			{
				jobsGroup.GET("", jobController.List)
				jobsGroup.POST("/:name/run", jobController.Run)
			}
		}
	}

	return router
}
