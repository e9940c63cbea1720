package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// TestLoad_FromFile 测试从配置文件加载
func TestLoad_FromFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
database:
  driver: sqlite
  sqlite_path: "/tmp/casuite-test.db"
scheduler:
  timezone: "UTC"
  recurring_spec: "30 3 * * *"
workflow:
  file: "workflow.yaml"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "/tmp/casuite-test.db", cfg.Database.SQLitePath)
	assert.Equal(t, "30 3 * * *", cfg.Scheduler.RecurringSpec)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.PeriodsSpec)
	assert.Equal(t, "workflow.yaml", cfg.Workflow.File)
}

// TestLoad_FromEnv 测试环境变量覆盖
func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9191")
	t.Setenv("APP_DATABASE_HOST", "db.example.com")
	t.Setenv("APP_AUTH_TOKEN_TTL_HOURS", "8")

	path := writeConfig(t, "server:\n  host: \"0.0.0.0\"\n")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "db.example.com", cfg.Database.Host)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL())
}

// TestLoad_MissingFile 测试指定的配置文件不存在
func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestDefault 测试默认配置
func TestDefault(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, config.DefaultJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "Asia/Kolkata", cfg.Scheduler.Timezone)
	assert.Equal(t, "0 2 * * *", cfg.Scheduler.RecurringSpec)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.NoError(t, config.Validate(cfg))
}

// TestValidate 测试配置校验
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"非法端口", func(c *config.Config) { c.Server.Port = 0 }},
		{"非法驱动", func(c *config.Config) { c.Database.Driver = "mysql" }},
		{"sqlite 缺少路径", func(c *config.Config) { c.Database.Driver = "sqlite"; c.Database.SQLitePath = "" }},
		{"密钥过短", func(c *config.Config) { c.Auth.JWTSecret = "short" }},
		{"生产环境使用默认密钥", func(c *config.Config) { c.Env = "production" }},
		{"非法时区", func(c *config.Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"非法日志格式", func(c *config.Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			assert.Error(t, config.Validate(cfg))
		})
	}
}

// TestIsProduction 测试生产环境判断
func TestIsProduction(t *testing.T) {
	assert.False(t, config.IsProduction(nil))
	assert.True(t, config.IsProduction(&config.Config{Env: "production"}))
	assert.False(t, config.IsProduction(&config.Config{Env: "development"}))
}

// TestSchedulerLocation 测试调度时区解析
func TestSchedulerLocation(t *testing.T) {
	loc, err := config.SchedulerConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = config.SchedulerConfig{Timezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

// TestConfigWatcher_GetConfig 测试监听器返回初始配置
func TestConfigWatcher_GetConfig(t *testing.T) {
	cfg := config.Default()
	path := writeConfig(t, "server:\n  port: 8080\n")

	w := config.NewConfigWatcher(cfg, path, nil)
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Same(t, cfg, w.GetConfig())
}

// TestConfigWatcher_RequiresPath 测试缺少文件路径
func TestConfigWatcher_RequiresPath(t *testing.T) {
	w := config.NewConfigWatcher(config.Default(), "", nil)
	assert.Error(t, w.Start())
}
