package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

var (
	alice   = workflow.Actor{ID: "alice", Name: "Alice", Role: workflow.RoleStaff}
	bob     = workflow.Actor{ID: "bob", Name: "Bob", Role: workflow.RoleStaff}
	admin   = workflow.Actor{ID: "root", Name: "Admin", Role: workflow.RoleAdmin}
	manager = workflow.Actor{ID: "manager", Name: "Manager", Role: workflow.RoleBranchManager}
	partner = workflow.Actor{ID: "partner", Name: "Partner", Role: workflow.RolePartner}
)

// services 测试用服务集合
type services struct {
	db      *gorm.DB
	engine  *workflow.Engine
	audit   service.AuditLogService
	tasks   service.TaskService
	queries service.QueryService
	clients service.ClientService
	billing service.BillingService
	stats   service.StatisticsService
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupServices(t *testing.T) *services {
	t.Helper()
	db := setupTestDB(t)
	log := logger.Discard()
	engine := workflow.NewEngine(db, workflow.DefaultCatalog(),
		workflow.WithClock(func() time.Time { return fixedNow }),
		workflow.WithLogger(log),
	)
	audit := service.NewAuditLogService(repository.NewAuditLogRepository(db), log)
	return &services{
		db:      db,
		engine:  engine,
		audit:   audit,
		tasks:   service.NewTaskService(db, engine, audit, log),
		queries: service.NewQueryService(db, func() time.Time { return fixedNow }),
		clients: service.NewClientService(db, audit, log),
		billing: service.NewBillingService(db, audit, log),
		stats:   service.NewStatisticsService(db),
	}
}

func as(actor workflow.Actor) context.Context {
	return workflow.WithActor(context.Background(), actor)
}

// createClient 创建测试客户
func createClient(t *testing.T, s *services, pan string) *model.ClientModel {
	t.Helper()
	client, err := s.clients.CreateClient(as(admin), &service.CreateClientRequest{
		Name:  "Sharma Traders",
		PAN:   pan,
		Email: "accounts@sharma.example",
		DIN:   "01234567",
	})
	require.NoError(t, err)
	return client
}

// createTask 以管理员身份创建任务
func createTask(t *testing.T, s *services, clientID, serviceType string, assignees ...string) *model.TaskModel {
	t.Helper()
	due := fixedNow.AddDate(0, 0, 5)
	task, err := s.tasks.Create(as(admin), &service.CreateTaskRequest{
		ClientID:    clientID,
		ServiceType: serviceType,
		Title:       serviceType + " for client",
		DueDate:     &due,
		AssigneeIDs: assignees,
	})
	require.NoError(t, err)
	return task
}
