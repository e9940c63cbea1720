package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/api"
	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/config"
	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubRunner 定时任务桩
type stubRunner struct {
	runs []string
}

func (r *stubRunner) RunNow(_ context.Context, name string) (*recurrence.JobResult, error) {
	if name != recurrence.JobRecurring && name != recurrence.JobPeriods {
		return nil, recurrence.ErrUnknownJob
	}
	r.runs = append(r.runs, name)
	return &recurrence.JobResult{Job: name, Processed: 1}, nil
}

func (r *stubRunner) Jobs() map[string]string {
	return map[string]string{recurrence.JobRecurring: "0 2 * * *", recurrence.JobPeriods: "0 2 * * *"}
}

// testServer 测试服务器
type testServer struct {
	router *gin.Engine
	tokens *auth.TokenManager
	runner *stubRunner
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	cfg := config.Default()
	cfg.Env = "test"
	cfg.RateLimit.Enabled = false

	log := logger.Discard()
	now := func() time.Time { return fixedNow }
	engine := workflow.NewEngine(db, workflow.DefaultCatalog(), workflow.WithClock(now), workflow.WithLogger(log))
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), log)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, time.Hour)
	runner := &stubRunner{}

	router := api.SetupRoutes(api.RouterDeps{
		Config:     cfg,
		DB:         db,
		Logger:     log,
		Tokens:     tokens,
		Engine:     engine,
		Scheduler:  runner,
		Tasks:      service.NewTaskService(db, engine, audit, log),
		Queries:    service.NewQueryService(db, now),
		Statistics: service.NewStatisticsService(db),
		Clients:    service.NewClientService(db, audit, log),
		Billing:    service.NewBillingService(db, audit, log),
		AuditLogs:  audit,
		Now:        now,
	})
	return &testServer{router: router, tokens: tokens, runner: runner}
}

func (s *testServer) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := s.tokens.Issue(userID, role, userID)
	require.NoError(t, err)
	return token
}

// do 发送请求,token 为空时不带认证头
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// envelope 统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Detail  string          `json:"detail"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

// createClient 管理员创建客户,返回客户 ID
func (s *testServer) createClient(t *testing.T, adminToken, pan string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/clients", adminToken, gin.H{"name": "Sharma Traders", "pan": pan})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var client struct {
		ID string `json:"id"`
	}
	decode(t, w, &client)
	return client.ID
}

// createTask 管理员创建任务,返回任务 ID
func (s *testServer) createTask(t *testing.T, adminToken, clientID, serviceType string, assignees ...string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/tasks", adminToken, gin.H{
		"client_id":    clientID,
		"service_type": serviceType,
		"title":        serviceType + " filing",
		"assignee_ids": assignees,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var task struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, w, &task)
	return task.ID
}
