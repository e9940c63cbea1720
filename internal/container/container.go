package container

import (
	"context"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/api"
	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/websocket"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const metricsInterval = 30 * time.Second

// Container 依赖注入容器
// 管理所有应用依赖,包括数据库、工作流引擎、服务、调度器等
type Container struct {
	cfg        *config.Config
	configPath string
	log        *logrus.Logger
	db         *gorm.DB
	engine     *workflow.Engine
	hub        *websocket.Hub
	tokens     *auth.TokenManager
	scheduler  *recurrence.Scheduler
	collector  *metrics.Collector
	watcher    *config.ConfigWatcher
	tracing    *api.Tracing

	auditLogSvc service.AuditLogService
	taskSvc     service.TaskService
	querySvc    service.QueryService
	statsSvc    service.StatisticsService
	clientSvc   service.ClientService
	billingSvc  service.BillingService

	cancel context.CancelFunc
}

// NewContainer 创建依赖注入容器
// 根据配置初始化所有依赖组件
func NewContainer(cfg *config.Config, configPath string, log *logrus.Logger) (*Container, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	// 1. 初始化数据库(带重试机制)
	db, err := database.ConnectWithRetry(cfg.Database, 3, time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	// 2. 加载工作流配置
	catalog, err := workflow.LoadCatalog(cfg.Workflow.File)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to load workflow catalog: %w", err)
	}

	// 3. 初始化事件推送与工作流引擎
	hub := websocket.NewHub(log)
	engine := workflow.NewEngine(db, catalog,
		workflow.WithPublisher(hub),
		workflow.WithLogger(log),
	)

	// 4. 初始化服务
	auditLogSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db), log)

	// 5. 初始化调度器
	loc, err := cfg.Scheduler.Location()
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("invalid scheduler timezone: %w", err)
	}
	scheduler := recurrence.NewScheduler(recurrence.SchedulerConfig{
		Location:      loc,
		PeriodsSpec:   cfg.Scheduler.PeriodsSpec,
		RecurringSpec: cfg.Scheduler.RecurringSpec,
	}, recurrence.NewGenerator(db, engine, log), recurrence.NewJob(db, recurrence.NewCopier(engine), log), log)

	c := &Container{
		cfg:         cfg,
		configPath:  configPath,
		log:         log,
		db:          db,
		engine:      engine,
		hub:         hub,
		tokens:      auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL()),
		scheduler:   scheduler,
		collector:   metrics.NewCollector(db, metricsInterval, log),
		auditLogSvc: auditLogSvc,
		taskSvc:     service.NewTaskService(db, engine, auditLogSvc, log),
		querySvc:    service.NewQueryService(db, engine.Now),
		statsSvc:    service.NewStatisticsService(db),
		clientSvc:   service.NewClientService(db, auditLogSvc, log),
		billingSvc:  service.NewBillingService(db, auditLogSvc, log),
	}
	if configPath != "" {
		c.watcher = config.NewConfigWatcher(cfg, configPath, log)
		c.watcher.OnConfigChange(c.applyConfig)
	}
	return c, nil
}

// applyConfig 配置热更新:日志级别与工作流步骤
func (c *Container) applyConfig(cfg *config.Config) {
	logger.SetLevel(c.log, cfg.Log.Level)

	catalog, err := workflow.LoadCatalog(cfg.Workflow.File)
	if err != nil {
		c.log.WithError(err).Warn("Keeping previous workflow catalog")
		return
	}
	c.engine.SetCatalog(catalog)
	c.log.WithField("services", len(catalog.Services)).Info("Workflow catalog reloaded")
}

// Start 启动后台组件
func (c *Container) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	tracing, err := api.InitTracing(ctx, c.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	c.tracing = tracing

	go c.hub.Run(ctx)
	c.collector.Start()

	if c.cfg.Scheduler.Enabled {
		if err := c.scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	if c.watcher != nil {
		if err := c.watcher.Start(); err != nil {
			c.log.WithError(err).Warn("Config hot reload disabled")
		}
	}
	return nil
}

// Router 创建 HTTP 路由
func (c *Container) Router() *gin.Engine {
	return api.SetupRoutes(api.RouterDeps{
		Config:     c.cfg,
		DB:         c.db,
		Logger:     c.log,
		Tokens:     c.tokens,
		Hub:        c.hub,
		Engine:     c.engine,
		Scheduler:  c.scheduler,
		Tasks:      c.taskSvc,
		Queries:    c.querySvc,
		Statistics: c.statsSvc,
		Clients:    c.clientSvc,
		Billing:    c.billingSvc,
		AuditLogs:  c.auditLogSvc,
		Now:        c.engine.Now,
	})
}

// DB 获取数据库连接
func (c *Container) DB() *gorm.DB {
	return c.db
}

// Scheduler 获取调度器
func (c *Container) Scheduler() *recurrence.Scheduler {
	return c.scheduler
}

// Tokens 获取令牌管理器
func (c *Container) Tokens() *auth.TokenManager {
	return c.tokens
}

// Close 关闭容器,清理资源
func (c *Container) Close(ctx context.Context) error {
	if c.watcher != nil {
		c.watcher.Stop()
	}
	c.scheduler.Stop()
	if c.cancel != nil {
		c.collector.Stop()
		c.cancel()
	}
	if err := c.tracing.Shutdown(ctx); err != nil {
		c.log.WithError(err).Warn("Failed to shutdown tracing")
	}
	return database.Close(c.db)
}
