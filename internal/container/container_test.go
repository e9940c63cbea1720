package container_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/container"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Env = "test"
	cfg.Database.Driver = "sqlite"
	cfg.Database.SQLitePath = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	cfg.Scheduler.Enabled = false
	cfg.Scheduler.Timezone = "UTC"
	cfg.RateLimit.Enabled = false
	return cfg
}

// TestContainer_Lifecycle 测试容器创建、路由与关闭
func TestContainer_Lifecycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ctr, err := container.NewContainer(testConfig(), "", logger.Discard())
	require.NoError(t, err)
	require.NoError(t, ctr.Start(context.Background()))
	t.Cleanup(func() { _ = ctr.Close(context.Background()) })

	assert.NotNil(t, ctr.DB())
	assert.Contains(t, ctr.Scheduler().Jobs(), recurrence.JobRecurring)
	assert.Contains(t, ctr.Scheduler().Jobs(), recurrence.JobPeriods)

	router := ctr.Router()
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	// 未登录访问业务接口被拒绝
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := ctr.Tokens().Issue("admin", "admin", "Admin")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// TestContainer_InvalidWorkflowFile 测试工作流文件不存在
func TestContainer_InvalidWorkflowFile(t *testing.T) {
	cfg := testConfig()
	cfg.Workflow.File = "/nonexistent/workflow.yaml"

	_, err := container.NewContainer(cfg, "", logger.Discard())
	assert.Error(t, err)
}
