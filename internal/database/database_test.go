package database_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// TestBuildDSN 测试 DSN 生成
func TestBuildDSN(t *testing.T) {
	dsn := database.BuildDSN(config.DatabaseConfig{
		Host: "localhost", Port: 5432, User: "postgres", Password: "secret", DBName: "casuite", SSLMode: "disable",
	})

	for _, part := range []string{"host=localhost", "port=5432", "user=postgres", "dbname=casuite", "sslmode=disable"} {
		assert.True(t, strings.Contains(dsn, part), part)
	}
}

// TestGetPoolConfig 测试连接池默认值
func TestGetPoolConfig(t *testing.T) {
	pool := database.GetPoolConfig(config.DatabaseConfig{MaxOpenConns: 50})
	assert.Equal(t, 50, pool.MaxOpenConns)
	assert.Equal(t, 10, pool.MaxIdleConns)
	assert.Equal(t, 3600, pool.ConnMaxLifetime)
	assert.Equal(t, 600, pool.ConnMaxIdleTime)
}

// TestConnect_UnsupportedDriver 测试不支持的驱动
func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := database.Connect(config.DatabaseConfig{Driver: "mysql"})
	assert.Error(t, err)

	_, err = database.ConnectSQLite("")
	assert.Error(t, err)
}

// TestMigrate_CreatesTables 测试迁移创建所有表
func TestMigrate_CreatesTables(t *testing.T) {
	db := setupTestDB(t)

	for _, m := range database.Models() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.True(t, db.Migrator().HasIndex(&model.TaskModel{}, "idx_tasks_service_period"))

	// 重复迁移幂等
	require.NoError(t, database.Migrate(db))
}

// TestServicePeriodUniqueIndex 测试同一服务同一账期唯一
func TestServicePeriodUniqueIndex(t *testing.T) {
	db := setupTestDB(t)

	serviceID := "svc-1"
	from := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC)
	newTask := func(id string) *model.TaskModel {
		return &model.TaskModel{
			ID: id, ClientID: "c-1", ClientServiceID: &serviceID, ServiceType: "GST Return",
			Title: "GST Return", Status: "Documents collect", Priority: model.PriorityMedium,
			FeeStatus: model.FeeStatusUnbilled, PeriodFrom: &from, PeriodTo: &to,
		}
	}

	require.NoError(t, db.Create(newTask("t-1")).Error)
	assert.Error(t, db.Create(newTask("t-2")).Error)

	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(newTask("t-3"))
	require.NoError(t, result.Error)
	assert.Equal(t, int64(0), result.RowsAffected)

	// 没有账期的手工任务互不冲突
	manual := func(id string) *model.TaskModel {
		return &model.TaskModel{
			ID: id, ClientID: "c-1", ServiceType: "Consultancy", Title: "Call",
			Status: "Pending", Priority: model.PriorityLow, FeeStatus: model.FeeStatusUnbilled,
		}
	}
	require.NoError(t, db.Create(manual("m-1")).Error)
	require.NoError(t, db.Create(manual("m-2")).Error)
}

// TestCheckHealth 测试健康检查
func TestCheckHealth(t *testing.T) {
	db := setupTestDB(t)
	assert.NoError(t, database.CheckHealth(context.Background(), db))
	assert.Error(t, database.CheckHealth(context.Background(), nil))
}

// TestConnectWithRetry_Fails 测试重试后仍失败
func TestConnectWithRetry_Fails(t *testing.T) {
	_, err := database.ConnectWithRetry(config.DatabaseConfig{Driver: "sqlite"}, 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 retries")
}

// TestGormLogger_IgnoresRecordNotFound 测试查询不到记录时不输出日志,真实错误仍然输出
func TestGormLogger_IgnoresRecordNotFound(t *testing.T) {
	db := setupTestDB(t)

	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	quiet := db.Session(&gorm.Session{Logger: database.NewGormLogger(log)})

	var task model.TaskModel
	err := quiet.Where("id = ?", "missing").First(&task).Error
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.Empty(t, buf.String())

	err = quiet.Table("no_such_table").Where("id = ?", "x").First(&task).Error
	assert.Error(t, err)
	assert.NotEmpty(t, buf.String())
}
