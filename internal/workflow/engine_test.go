package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

var (
	alice   = workflow.Actor{ID: "alice", Name: "Alice", Role: workflow.RoleStaff}
	bob     = workflow.Actor{ID: "bob", Name: "Bob", Role: workflow.RoleStaff}
	carol   = workflow.Actor{ID: "carol", Name: "Carol", Role: workflow.RoleStaff}
	admin   = workflow.Actor{ID: "root", Name: "Admin", Role: workflow.RoleAdmin}
	creator = workflow.Actor{ID: "creator", Name: "Creator", Role: workflow.RoleBranchManager}
)

type recorder struct {
	mu     sync.Mutex
	events []workflow.Event
}

func (r *recorder) Publish(ev workflow.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.ConnectSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupEngine(t *testing.T) (*gorm.DB, *workflow.Engine, *recorder) {
	t.Helper()
	db := setupTestDB(t)
	rec := &recorder{}
	engine := workflow.NewEngine(db, workflow.DefaultCatalog(),
		workflow.WithPublisher(rec),
		workflow.WithClock(func() time.Time { return fixedNow }),
		workflow.WithLogger(logger.Discard()),
	)
	return db, engine, rec
}

// createTask 创建任务并初始化当前阶段
func createTask(t *testing.T, db *gorm.DB, engine *workflow.Engine, serviceType, status string, assignees ...string) *model.TaskModel {
	t.Helper()
	task := &model.TaskModel{
		ID:          uuid.NewString(),
		ClientID:    "client-1",
		ServiceType: serviceType,
		Title:       serviceType + " task",
		Status:      status,
		Priority:    model.PriorityMedium,
		FeeStatus:   model.FeeStatusUnbilled,
		CreatedBy:   creator.ID,
	}
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		if err := repos.Tasks.Create(task); err != nil {
			return err
		}
		if err := repos.Tasks.ReplaceAssignees(task.ID, assignees, fixedNow); err != nil {
			return err
		}
		return engine.InitializeStage(tx, task)
	}))
	return task
}

func loadTask(t *testing.T, db *gorm.DB, id string) *model.TaskModel {
	t.Helper()
	task, err := repository.NewTaskRepository(db).FindByID(id)
	require.NoError(t, err)
	return task
}

func contextRows(t *testing.T, db *gorm.DB, taskID, status string) []model.TaskAssignmentStatusModel {
	t.Helper()
	rows, err := repository.NewAssignmentRepository(db).ListByContext(taskID, status)
	require.NoError(t, err)
	return rows
}

// TestInitializeStage 测试阶段初始化顺序与幂等
func TestInitializeStage(t *testing.T) {
	db, engine, _ := setupEngine(t)
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob", "carol")

	rows := contextRows(t, db, task.ID, "Documents collect")
	require.Len(t, rows, 3)
	for i, want := range []string{"alice", "bob", "carol"} {
		assert.Equal(t, want, rows[i].UserID)
		assert.Equal(t, i+1, rows[i].Order)
		assert.False(t, rows[i].IsCompleted)
	}

	// 重复初始化不产生新记录
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return engine.InitializeStage(tx, task)
	}))
	assert.Len(t, contextRows(t, db, task.ID, "Documents collect"), 3)
}

// TestInitializeStage_NoAssigneesOrTerminal 测试无负责人与终态任务
func TestInitializeStage_NoAssigneesOrTerminal(t *testing.T) {
	db, engine, _ := setupEngine(t)

	waiting := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect")
	assert.Empty(t, contextRows(t, db, waiting.ID, "Documents collect"))

	closed := createTask(t, db, engine, workflow.ServiceGSTReturn, model.TaskStatusCompleted, "alice")
	assert.Empty(t, contextRows(t, db, closed.ID, model.TaskStatusCompleted))
}

// TestCompleteStep_SequentialGate 测试同阶段内必须按顺序完成
func TestCompleteStep_SequentialGate(t *testing.T) {
	db, engine, rec := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob", "carol")

	// 1. bob 不能先于 alice
	_, err := engine.CompleteStep(ctx, bob, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrPreviousPending)

	// 2. alice 完成,阶段不推进
	res, err := engine.CompleteStep(ctx, alice, task.ID, "", "docs received")
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "Documents collect", res.Status)
	require.NotNil(t, res.ActiveStep)
	assert.Equal(t, "bob", res.ActiveStep.UserID)

	active, err := engine.ActiveStep(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", active.UserID)

	// 3. bob、carol 完成后推进
	_, err = engine.CompleteStep(ctx, bob, task.ID, "", "")
	require.NoError(t, err)
	res, err = engine.CompleteStep(ctx, carol, task.ID, "", "")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.False(t, res.Completed)
	assert.Equal(t, "Accounts Ready", res.Status)
	require.NotNil(t, res.ActiveStep)
	assert.Equal(t, "alice", res.ActiveStep.UserID)

	assert.Equal(t, "Accounts Ready", loadTask(t, db, task.ID).Status)

	// 新阶段的记录全部未完成,旧阶段记录保留
	next := contextRows(t, db, task.ID, "Accounts Ready")
	require.Len(t, next, 3)
	for _, r := range next {
		assert.False(t, r.IsCompleted)
	}
	for _, r := range contextRows(t, db, task.ID, "Documents collect") {
		assert.True(t, r.IsCompleted)
	}

	logs, err := repository.NewStatusLogRepository(db).FindByTaskID(task.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Documents collect", logs[0].OldStatus)
	assert.Equal(t, "Accounts Ready", logs[0].NewStatus)

	assert.Equal(t, []string{
		workflow.EventStepCompleted, workflow.EventStepCompleted,
		workflow.EventStepCompleted, workflow.EventStageAdvanced,
	}, rec.types())
}

// TestCompleteStep_Permissions 测试权限与重复完成
func TestCompleteStep_Permissions(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob")

	// 非管理员不能代他人完成
	_, err := engine.CompleteStep(ctx, bob, task.ID, "alice", "")
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	// 代未分配的用户完成同样返回无权限,不暴露分配情况
	_, err = engine.CompleteStep(ctx, bob, task.ID, "dave", "")
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)
	_, err = engine.CompleteStep(ctx, carol, task.ID, "alice", "")
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	// 不在分配列表中
	_, err = engine.CompleteStep(ctx, carol, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrAssignmentNotFound)

	// 任务不存在
	_, err = engine.CompleteStep(ctx, alice, "missing", "", "")
	assert.ErrorIs(t, err, workflow.ErrTaskNotFound)

	_, err = engine.CompleteStep(ctx, alice, task.ID, "", "")
	require.NoError(t, err)

	// 重复完成,管理员同样拒绝
	_, err = engine.CompleteStep(ctx, alice, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyCompleted)
	_, err = engine.CompleteStep(ctx, admin, task.ID, "alice", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyCompleted)
}

// TestCompleteStep_AdminOnBehalf 测试管理员代为完成且可跳过顺序
func TestCompleteStep_AdminOnBehalf(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob")

	res, err := engine.CompleteStep(ctx, admin, task.ID, "bob", "")
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "root", res.Assignment.CompletedBy)

	comments, err := repository.NewCommentRepository(db).FindByTaskID(task.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Documents collect: step completed by admin Admin on behalf of bob", comments[0].Text)
	assert.True(t, comments[0].IsSystem)

	// alice 之后不再被 bob 阻塞
	res, err = engine.CompleteStep(ctx, alice, task.ID, "", "")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "Accounts Ready", res.Status)
}

// TestCompleteStep_FinalStepCompletesTask 测试最后一步完成任务
func TestCompleteStep_FinalStepCompletesTask(t *testing.T) {
	db, engine, rec := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "GSTR Submit", "alice")

	res, err := engine.CompleteStep(ctx, alice, task.ID, "", "filed")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Nil(t, res.ActiveStep)

	got := loadTask(t, db, task.ID)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedDate)
	assert.True(t, got.CompletedDate.Equal(time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC)))
	assert.Empty(t, contextRows(t, db, task.ID, model.TaskStatusCompleted))
	assert.Contains(t, rec.types(), workflow.EventTaskCompleted)

	// 已结束的任务不可再操作
	_, err = engine.CompleteStep(ctx, alice, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrTaskClosed)

	active, err := engine.ActiveStep(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

// TestCompleteStep_NextStepTerminal 测试下一步为 Completed 时直接完成
func TestCompleteStep_NextStepTerminal(t *testing.T) {
	db, engine, _ := setupEngine(t)
	task := createTask(t, db, engine, workflow.ServiceROCCompliance, "Filed", "alice")

	res, err := engine.CompleteStep(context.Background(), alice, task.ID, "", "")
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, model.TaskStatusCompleted, loadTask(t, db, task.ID).Status)
}

// TestCompleteStep_StatusNotInWorkflowRollsBack 测试未知状态时整体回滚
func TestCompleteStep_StatusNotInWorkflowRollsBack(t *testing.T) {
	db, engine, rec := setupEngine(t)
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Legacy Stage", "alice")

	_, err := engine.CompleteStep(context.Background(), alice, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrStatusNotInWorkflow)

	rows := contextRows(t, db, task.ID, "Legacy Stage")
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsCompleted)
	assert.Equal(t, "Legacy Stage", loadTask(t, db, task.ID).Status)
	assert.Empty(t, rec.types())
}

// TestReassign 测试重新分配只重建未完成记录
func TestReassign(t *testing.T) {
	db, engine, rec := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob")

	_, err := engine.CompleteStep(ctx, alice, task.ID, "", "")
	require.NoError(t, err)

	rows, err := engine.Reassign(ctx, creator, task.ID, []string{"carol", "alice", "carol"})
	require.NoError(t, err)

	byUser := map[string]model.TaskAssignmentStatusModel{}
	for _, r := range rows {
		byUser[r.UserID] = r
	}
	require.Len(t, byUser, 2)
	assert.True(t, byUser["alice"].IsCompleted)
	assert.Equal(t, 1, byUser["alice"].Order)
	assert.False(t, byUser["carol"].IsCompleted)
	assert.Equal(t, 1, byUser["carol"].Order)
	_, hasBob := byUser["bob"]
	assert.False(t, hasBob)

	assert.Equal(t, []string{"carol", "alice"}, loadTask(t, db, task.ID).AssigneeIDs())
	assert.Equal(t, "Documents collect", loadTask(t, db, task.ID).Status)
	assert.Contains(t, rec.types(), workflow.EventAssigneesChanged)
}

// TestReassign_NeverAdvances 测试重新分配后即使全部完成也不推进
func TestReassign_NeverAdvances(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob")

	_, err := engine.CompleteStep(ctx, alice, task.ID, "", "")
	require.NoError(t, err)

	_, err = engine.Reassign(ctx, admin, task.ID, []string{"alice"})
	require.NoError(t, err)

	assert.Equal(t, "Documents collect", loadTask(t, db, task.ID).Status)
	active, err := engine.ActiveStep(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, active)
}

// TestReassign_Errors 测试重新分配的校验
func TestReassign_Errors(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice")

	_, err := engine.Reassign(ctx, bob, task.ID, []string{"bob"})
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	_, err = engine.Reassign(ctx, admin, task.ID, []string{"bob", " "})
	assert.ErrorIs(t, err, workflow.ErrInvalidAssignees)

	_, err = engine.Reassign(ctx, admin, "missing", []string{"bob"})
	assert.ErrorIs(t, err, workflow.ErrTaskNotFound)
}

// TestChangeStatus 测试手动变更阶段
func TestChangeStatus(t *testing.T) {
	db, engine, rec := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceGSTReturn, "Documents collect", "alice", "bob")

	_, err := engine.ChangeStatus(ctx, alice, task.ID, "Complete", "")
	assert.ErrorIs(t, err, workflow.ErrNotPermitted)

	_, err = engine.ChangeStatus(ctx, creator, task.ID, "Drafting", "")
	assert.ErrorIs(t, err, workflow.ErrStatusNotInWorkflow)

	res, err := engine.ChangeStatus(ctx, creator, task.ID, "Documents collect", "")
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Empty(t, rec.types())

	res, err = engine.ChangeStatus(ctx, creator, task.ID, "Complete", "jumped ahead")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "Complete", res.Status)
	assert.Len(t, contextRows(t, db, task.ID, "Complete"), 2)

	res, err = engine.ChangeStatus(ctx, admin, task.ID, model.TaskStatusCancelled, "")
	require.NoError(t, err)
	assert.False(t, res.Completed)
	got := loadTask(t, db, task.ID)
	assert.Equal(t, model.TaskStatusCancelled, got.Status)
	assert.Nil(t, got.CompletedDate)

	assert.Equal(t, []string{workflow.EventStatusChanged, workflow.EventStatusChanged}, rec.types())
}

// TestProgress 测试阶段进度
func TestProgress(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, workflow.ServiceConsultancy, "Pending", "bob", "alice")

	rows, err := engine.Progress(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[0].UserID)
	assert.Equal(t, "alice", rows[1].UserID)

	_, err = engine.Progress(ctx, "missing")
	assert.ErrorIs(t, err, workflow.ErrTaskNotFound)
}

// TestSetCatalog 测试配置热替换
func TestSetCatalog(t *testing.T) {
	db, engine, _ := setupEngine(t)
	ctx := context.Background()
	task := createTask(t, db, engine, "Bookkeeping", "Collect", "alice")

	_, err := engine.CompleteStep(ctx, alice, task.ID, "", "")
	assert.ErrorIs(t, err, workflow.ErrStatusNotInWorkflow)

	cat := workflow.DefaultCatalog()
	cat.Services["Bookkeeping"] = workflow.ServiceConfig{DefaultDueDays: 5, Steps: []string{"Collect", "Post"}}
	engine.SetCatalog(cat)
	assert.Same(t, cat, engine.Catalog())

	res, err := engine.CompleteStep(ctx, alice, task.ID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "Post", res.Status)
}
