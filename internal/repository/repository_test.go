package repository_test

import (
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func newTask(id, serviceType, status string, due *time.Time) *model.TaskModel {
	return &model.TaskModel{
		ID:          id,
		ClientID:    "client-001",
		ServiceType: serviceType,
		Title:       serviceType + " " + id,
		Status:      status,
		Priority:    model.PriorityMedium,
		FeeStatus:   model.FeeStatusUnbilled,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// TestTaskRepository_UpdateStatus 测试条件更新阶段
func TestTaskRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)
	require.NoError(t, repo.Create(newTask("t1", "Audit", "Phone Call", nil)))

	ok, err := repo.UpdateStatus("t1", "Phone Call", "Manual", nil, now)
	require.NoError(t, err)
	assert.True(t, ok)

	// 旧状态不匹配时不更新
	ok, err = repo.UpdateStatus("t1", "Phone Call", "Account Ready", nil, now)
	require.NoError(t, err)
	assert.False(t, ok)

	task, err := repo.FindByID("t1")
	require.NoError(t, err)
	assert.Equal(t, "Manual", task.Status)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestTaskRepository_FindByFilter 测试过滤、逾期与分页
func TestTaskRepository_FindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	past := now.AddDate(0, 0, -2)
	future := now.AddDate(0, 0, 2)
	require.NoError(t, repo.Create(newTask("t1", "Audit", "Phone Call", &past)))
	require.NoError(t, repo.Create(newTask("t2", "Audit", model.TaskStatusCompleted, &past)))
	require.NoError(t, repo.Create(newTask("t3", "GST Return", "Documents collect", &future)))
	require.NoError(t, repo.ReplaceAssignees("t3", []string{"alice", "bob"}, now))

	tasks, total, err := repo.FindByFilter(&repository.TaskFilter{ServiceType: "Audit"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, tasks, 2)

	// 已完成的任务不算逾期
	tasks, total, err = repo.FindByFilter(&repository.TaskFilter{OverdueAsOf: &now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t1", tasks[0].ID)

	tasks, _, err = repo.FindByFilter(&repository.TaskFilter{AssigneeID: "bob"})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "t3", tasks[0].ID)

	tasks, total, err = repo.FindByFilter(&repository.TaskFilter{Page: 2, PageSize: 2, SortBy: "title", SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 1)

	assignees, err := repo.FindAssignees("t3")
	require.NoError(t, err)
	require.Len(t, assignees, 2)
	assert.Equal(t, "alice", assignees[0].UserID)
	assert.Equal(t, 0, assignees[0].Position)
}

// TestTaskRepository_CreateIfAbsent 测试同一账期只创建一个任务
func TestTaskRepository_CreateIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewTaskRepository(db)

	serviceID := "svc-001"
	from := time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC)

	first := newTask("t1", "GST Return", "Documents collect", nil)
	first.ClientServiceID, first.PeriodFrom, first.PeriodTo = &serviceID, &from, &to
	created, err := repo.CreateIfAbsent(first)
	require.NoError(t, err)
	assert.True(t, created)

	dup := newTask("t2", "GST Return", "Documents collect", nil)
	dup.ClientServiceID, dup.PeriodFrom, dup.PeriodTo = &serviceID, &from, &to
	created, err = repo.CreateIfAbsent(dup)
	require.NoError(t, err)
	assert.False(t, created)

	exists, err := repo.ExistsForPeriod(serviceID, from, to)
	require.NoError(t, err)
	assert.True(t, exists)
}

// TestTaskRepository_Delete 测试级联删除从属记录
func TestTaskRepository_Delete(t *testing.T) {
	db := setupTestDB(t)
	repos := repository.New(db)
	require.NoError(t, repos.Tasks.Create(newTask("t1", "Audit", "Phone Call", nil)))
	require.NoError(t, repos.Assignments.Create(&model.TaskAssignmentStatusModel{
		ID: "a1", TaskID: "t1", UserID: "alice", StatusContext: "Phone Call", Order: 1, CreatedAt: now, UpdatedAt: now,
	}))

	require.NoError(t, repos.Tasks.Delete("t1"))
	rows, err := repos.Assignments.ListByTask("t1")
	require.NoError(t, err)
	assert.Empty(t, rows)

	assert.ErrorIs(t, repos.Tasks.Delete("t1"), gorm.ErrRecordNotFound)
}

// TestAssignmentRepository_Order 测试顺序约束相关查询
func TestAssignmentRepository_Order(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewAssignmentRepository(db)

	for i, user := range []string{"alice", "bob", "carol"} {
		require.NoError(t, repo.Create(&model.TaskAssignmentStatusModel{
			ID: uuid.NewString(), TaskID: "t1", UserID: user, StatusContext: "Manual",
			Order: i + 1, CreatedAt: now, UpdatedAt: now,
		}))
	}

	active, err := repo.ActiveStep("t1", "Manual")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "alice", active.UserID)

	pending, err := repo.CountPendingBefore("t1", "Manual", 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	ok, err := repo.MarkCompleted(active.ID, "alice", "done", now)
	require.NoError(t, err)
	assert.True(t, ok)

	// 重复完成不生效
	ok, err = repo.MarkCompleted(active.ID, "alice", "again", now)
	require.NoError(t, err)
	assert.False(t, ok)

	active, err = repo.ActiveStep("t1", "Manual")
	require.NoError(t, err)
	assert.Equal(t, "bob", active.UserID)

	// 重复插入同一用户同一阶段被忽略
	require.NoError(t, repo.CreateIfAbsent(&model.TaskAssignmentStatusModel{
		ID: uuid.NewString(), TaskID: "t1", UserID: "bob", StatusContext: "Manual", Order: 9, CreatedAt: now, UpdatedAt: now,
	}))
	rows, err := repo.ListByContext("t1", "Manual")
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	active, err = repo.ActiveStep("t1", "Other")
	require.NoError(t, err)
	assert.Nil(t, active)
}

// TestClientRepository_List 测试客户搜索与服务启停
func TestClientRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewClientRepository(db)

	for _, c := range []struct{ id, name, pan string }{
		{"c1", "Sharma Traders", "ABCDE1234F"},
		{"c2", "Kapoor Exports", "PQRST6789K"},
	} {
		require.NoError(t, repo.Create(&model.ClientModel{
			ID: c.id, Name: c.name, PAN: c.pan, Status: model.ClientStatusActive, CreatedAt: now, UpdatedAt: now,
		}))
	}

	clients, total, err := repo.List("pqrst", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, clients, 1)
	assert.Equal(t, "c2", clients[0].ID)

	found, err := repo.FindByPAN("ABCDE1234F")
	require.NoError(t, err)
	assert.Equal(t, "c1", found.ID)

	require.NoError(t, repo.CreateService(&model.ClientServiceModel{
		ID: "s1", ClientID: "c1", ServiceType: "GST Return", Frequency: model.FrequencyMonthly,
		StartDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))
	require.NoError(t, repo.CreateService(&model.ClientServiceModel{
		ID: "s2", ClientID: "c1", ServiceType: "Audit", Frequency: model.FrequencyOneTime,
		StartDate: now, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}))

	recurring, err := repo.ListRecurringServices()
	require.NoError(t, err)
	require.Len(t, recurring, 1)
	assert.Equal(t, "s1", recurring[0].ID)

	require.NoError(t, repo.SetServiceActive("s1", false))
	recurring, err = repo.ListRecurringServices()
	require.NoError(t, err)
	assert.Empty(t, recurring)

	assert.ErrorIs(t, repo.SetServiceActive("missing", true), gorm.ErrRecordNotFound)
}
