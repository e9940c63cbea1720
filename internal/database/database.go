package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// 支持的数据库驱动
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// PoolConfig 连接池配置
type PoolConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime int // 秒
	ConnMaxIdleTime int // 秒
}

// BuildDSN 构建 PostgreSQL DSN
func BuildDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// GetPoolConfig 从配置中读取连接池参数,未设置的项使用默认值
func GetPoolConfig(cfg config.DatabaseConfig) *PoolConfig {
	pool := &PoolConfig{
		MaxIdleConns:    cfg.MaxIdleConns,
		MaxOpenConns:    cfg.MaxOpenConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = 10
	}
	if pool.MaxOpenConns == 0 {
		pool.MaxOpenConns = 100
	}
	if pool.ConnMaxLifetime == 0 {
		pool.ConnMaxLifetime = 3600 // 1 小时
	}
	if pool.ConnMaxIdleTime == 0 {
		pool.ConnMaxIdleTime = 600 // 10 分钟
	}
	return pool
}

// slowQueryThreshold 慢查询阈值
const slowQueryThreshold = 200 * time.Millisecond

// NewGormLogger 创建 gorm 日志,输出到 w;查询不到记录属于正常分支,不记录
func NewGormLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             slowQueryThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// gormConfig 所有时间统一按 UTC 写入
func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger:  NewGormLogger(logrus.StandardLogger()),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
}

// Connect 按驱动连接数据库并配置连接池
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case DriverSQLite:
		return ConnectSQLite(cfg.SQLitePath)
	case DriverPostgres, "":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(postgres.Open(BuildDSN(cfg)), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	pool := GetPoolConfig(cfg)
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)
	sqlDB.SetConnMaxIdleTime(time.Duration(pool.ConnMaxIdleTime) * time.Second)

	return db, nil
}

// ConnectSQLite 连接 SQLite(文件或 file::memory: DSN)
func ConnectSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect sqlite: %w", err)
	}
	return db, nil
}

// Models 返回需要迁移的全部模型
func Models() []interface{} {
	return []interface{}{
		&model.ClientModel{},
		&model.ClientServiceModel{},
		&model.TaskModel{},
		&model.TaskAssigneeModel{},
		&model.TaskAssignmentStatusModel{},
		&model.TaskStatusLogModel{},
		&model.TaskRecurrenceModel{},
		&model.TaskCommentModel{},
		&model.TaskExtendedAttributesModel{},
		&model.InvoiceModel{},
		&model.InvoiceItemModel{},
		&model.PaymentModel{},
		&model.AuditLogModel{},
	}
}

// Migrate 执行数据库迁移
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto migrate: %w", err)
	}

	// 创建索引
	if err := CreateIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

// indexes 复合索引定义,名称 => 语句
var indexes = []struct {
	name string
	sql  string
}{
	// 同一服务同一账期只能有一个任务;NULL 互不冲突,手工任务不受影响
	{"idx_tasks_service_period", "CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_service_period ON tasks(client_service_id, period_from, period_to)"},
	{"idx_tasks_status_due", "CREATE INDEX IF NOT EXISTS idx_tasks_status_due ON tasks(status, due_date)"},
	{"idx_tasks_service_created", "CREATE INDEX IF NOT EXISTS idx_tasks_service_created ON tasks(client_service_id, created_at)"},
	{"idx_assignment_open", "CREATE INDEX IF NOT EXISTS idx_assignment_open ON task_assignment_statuses(task_id, status_context, is_completed, step_order)"},
	{"idx_status_logs_task_created", "CREATE INDEX IF NOT EXISTS idx_status_logs_task_created ON task_status_logs(task_id, created_at)"},
	{"idx_comments_task_created", "CREATE INDEX IF NOT EXISTS idx_comments_task_created ON task_comments(task_id, created_at)"},
	{"idx_recurrence_due", "CREATE INDEX IF NOT EXISTS idx_recurrence_due ON task_recurrences(is_active, next_run_at)"},
	{"idx_payments_invoice_status", "CREATE INDEX IF NOT EXISTS idx_payments_invoice_status ON payments(invoice_id, payment_status, approval_status)"},
	{"idx_audit_resource", "CREATE INDEX IF NOT EXISTS idx_audit_resource ON audit_logs(resource_type, resource_id)"},
	{"idx_audit_created_at", "CREATE INDEX IF NOT EXISTS idx_audit_created_at ON audit_logs(created_at)"},
}

// CreateIndexes 创建数据库索引
func CreateIndexes(db *gorm.DB) error {
	for _, idx := range indexes {
		if err := db.Exec(idx.sql).Error; err != nil {
			return fmt.Errorf("failed to create %s: %w", idx.name, err)
		}
	}
	return nil
}

// ConnectWithRetry 带重试的数据库连接
func ConnectWithRetry(cfg config.DatabaseConfig, maxRetries int, retryInterval time.Duration) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = Connect(cfg)
		if err == nil {
			return db, nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < maxRetries-1 {
			time.Sleep(retryInterval)
			retryInterval *= 2 // 指数退避
		}
	}

	return nil, fmt.Errorf("failed to connect database after %d retries: %w", maxRetries, err)
}

// CheckHealth 检查数据库连接健康状态
func CheckHealth(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("database not initialized")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close 关闭数据库连接
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
