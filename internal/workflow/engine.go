package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StepResult 步骤完成或状态变更的结果
type StepResult struct {
	TaskID         string                           `json:"task_id"`
	PreviousStatus string                           `json:"previous_status"`
	Status         string                           `json:"status"`
	Advanced       bool                             `json:"advanced"`
	Completed      bool                             `json:"completed"`
	Assignment     *model.TaskAssignmentStatusModel `json:"assignment,omitempty"`
	ActiveStep     *model.TaskAssignmentStatusModel `json:"active_step,omitempty"`
}

// Option 引擎选项
type Option func(*Engine)

// WithPublisher 设置事件发布器
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock 设置时钟(用于测试)
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger 设置日志记录器
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// Engine 顺序分配闸门:同一阶段内按顺序完成,全部完成后推进到下一阶段
type Engine struct {
	db        *gorm.DB
	mu        sync.RWMutex
	catalog   *Catalog
	publisher EventPublisher
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewEngine 创建工作流引擎
func NewEngine(db *gorm.DB, catalog *Catalog, opts ...Option) *Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	e := &Engine{
		db:        db,
		catalog:   catalog,
		publisher: nopPublisher{},
		now:       time.Now,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog 返回当前工作流配置
func (e *Engine) Catalog() *Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog
}

// SetCatalog 替换工作流配置(配置热更新)
func (e *Engine) SetCatalog(c *Catalog) {
	if c == nil {
		return
	}
	e.mu.Lock()
	e.catalog = c
	e.mu.Unlock()
	e.log.WithField("services", len(c.Services)).Info("Workflow catalog replaced")
}

// Now 返回引擎时钟的当前时间(UTC)
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// InitializeStage 为当前阶段的每个负责人创建分配记录,已存在的记录保持不变
func (e *Engine) InitializeStage(tx *gorm.DB, task *model.TaskModel) error {
	if model.IsTerminalStatus(task.Status) {
		return nil
	}
	repos := repository.New(tx)

	assignees, err := repos.Tasks.FindAssignees(task.ID)
	if err != nil {
		return fmt.Errorf("failed to load assignees: %w", err)
	}

	now := e.Now()
	for _, a := range model.SortAssignees(assignees) {
		row := &model.TaskAssignmentStatusModel{
			ID:            uuid.NewString(),
			TaskID:        task.ID,
			UserID:        a.UserID,
			StatusContext: task.Status,
			Order:         a.Position + 1,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := repos.Assignments.CreateIfAbsent(row); err != nil {
			return fmt.Errorf("failed to initialize assignment for %s: %w", a.UserID, err)
		}
	}
	return nil
}

// CompleteStep 完成 userID 在当前阶段的步骤;本人或管理员可操作
func (e *Engine) CompleteStep(ctx context.Context, actor Actor, taskID, userID, remarks string) (*StepResult, error) {
	if actor.ID == "" {
		return nil, ErrNotPermitted
	}
	if userID == "" {
		userID = actor.ID
	}
	catalog := e.Catalog()

	var result *StepResult
	var events []Event
	var serviceType string
	onBehalf := actor.ID != userID

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		// 1. 锁定任务行
		task, err := e.lockTask(repos, taskID)
		if err != nil {
			return err
		}
		serviceType = task.ServiceType

		// 2. 非管理员只能完成自己的步骤
		if onBehalf && !actor.IsAdmin() {
			return ErrNotPermitted
		}

		// 3. 终态任务不可操作
		if task.IsTerminal() {
			return ErrTaskClosed
		}

		// 4. 查找当前阶段的分配记录
		row, err := repos.Assignments.Find(task.ID, userID, task.Status)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		if err != nil {
			return err
		}

		// 5. 已完成
		if row.IsCompleted {
			return ErrAlreadyCompleted
		}

		// 6. 顺序检查,管理员可跳过
		if !actor.IsAdmin() {
			pending, err := repos.Assignments.CountPendingBefore(task.ID, task.Status, row.Order)
			if err != nil {
				return err
			}
			if pending > 0 {
				return ErrPreviousPending
			}
		}

		// 7. 条件更新
		now := e.Now()
		ok, err := repos.Assignments.MarkCompleted(row.ID, actor.ID, remarks, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyCompleted
		}
		row.IsCompleted = true
		row.CompletedAt = &now
		row.CompletedBy = actor.ID
		row.Remarks = remarks

		// 8. 系统评论
		text := fmt.Sprintf("%s: step completed by %s", task.Status, actor.DisplayName())
		if onBehalf {
			text = fmt.Sprintf("%s: step completed by admin %s on behalf of %s", task.Status, actor.DisplayName(), userID)
		}
		if remarks != "" {
			text += " - " + remarks
		}
		if err := addSystemComment(repos, task.ID, actor.ID, text, now); err != nil {
			return err
		}
		events = append(events, Event{
			Type: EventStepCompleted, TaskID: task.ID, Status: task.Status,
			UserID: userID, ActorID: actor.ID, At: now,
		})

		result = &StepResult{
			TaskID:         task.ID,
			PreviousStatus: task.Status,
			Status:         task.Status,
			Assignment:     row,
		}

		// 9. 阶段内全部完成时推进
		remaining, err := repos.Assignments.CountPending(task.ID, task.Status)
		if err != nil {
			return err
		}
		if remaining > 0 {
			result.ActiveStep, err = repos.Assignments.ActiveStep(task.ID, task.Status)
			return err
		}

		next, _, err := catalog.Next(task.ServiceType, task.Status)
		if err != nil {
			return err
		}
		if err := e.transition(tx, task, next, actor.ID, "All assignments completed", now); err != nil {
			return err
		}

		result.Status = task.Status
		result.Advanced = true
		result.Completed = task.Status == model.TaskStatusCompleted
		if !result.Completed {
			if result.ActiveStep, err = repos.Assignments.ActiveStep(task.ID, task.Status); err != nil {
				return err
			}
		}

		eventType := EventStageAdvanced
		if result.Completed {
			eventType = EventTaskCompleted
		}
		events = append(events, Event{
			Type: eventType, TaskID: task.ID, Status: task.Status, ActorID: actor.ID, At: now,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordStepCompleted(onBehalf)
	if result.Advanced {
		metrics.RecordStageAdvanced(serviceType)
	}
	e.log.WithFields(logrus.Fields{
		"task_id":  result.TaskID,
		"status":   result.Status,
		"user_id":  userID,
		"actor_id": actor.ID,
		"advanced": result.Advanced,
	}).Info("Assignment step completed")
	e.publish(events)

	return result, nil
}

// Reassign 替换负责人列表;仅重建当前阶段未完成的记录,不推进阶段
func (e *Engine) Reassign(ctx context.Context, actor Actor, taskID string, userIDs []string) ([]model.TaskAssignmentStatusModel, error) {
	ids, err := NormalizeAssignees(userIDs)
	if err != nil {
		return nil, err
	}

	var rows []model.TaskAssignmentStatusModel
	var event Event

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		task, err := e.lockTask(repos, taskID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.ID != task.CreatedBy {
			return ErrNotPermitted
		}

		now := e.Now()
		if err := repos.Tasks.ReplaceAssignees(task.ID, ids, now); err != nil {
			return fmt.Errorf("failed to replace assignees: %w", err)
		}

		if !task.IsTerminal() {
			if err := repos.Assignments.DeletePending(task.ID, task.Status); err != nil {
				return err
			}
			existing, err := repos.Assignments.ListByContext(task.ID, task.Status)
			if err != nil {
				return err
			}
			done := make(map[string]bool, len(existing))
			for _, r := range existing {
				done[r.UserID] = true
			}
			for i, id := range ids {
				if done[id] {
					continue
				}
				if err := repos.Assignments.Create(&model.TaskAssignmentStatusModel{
					ID:            uuid.NewString(),
					TaskID:        task.ID,
					UserID:        id,
					StatusContext: task.Status,
					Order:         i + 1,
					CreatedAt:     now,
					UpdatedAt:     now,
				}); err != nil {
					return err
				}
			}
			if rows, err = repos.Assignments.ListByContext(task.ID, task.Status); err != nil {
				return err
			}
		}

		text := fmt.Sprintf("%s: assignees changed to [%s] by %s", task.Status, strings.Join(ids, ", "), actor.DisplayName())
		if err := addSystemComment(repos, task.ID, actor.ID, text, now); err != nil {
			return err
		}
		event = Event{Type: EventAssigneesChanged, TaskID: task.ID, Status: task.Status, ActorID: actor.ID, At: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{"task_id": taskID, "assignees": ids, "actor_id": actor.ID}).Info("Task reassigned")
	e.publish([]Event{event})
	return rows, nil
}

// ChangeStatus 手动变更阶段;目标必须是工作流步骤或终态
func (e *Engine) ChangeStatus(ctx context.Context, actor Actor, taskID, status, remarks string) (*StepResult, error) {
	status = strings.TrimSpace(status)
	catalog := e.Catalog()

	var result *StepResult
	var event *Event

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		task, err := e.lockTask(repos, taskID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.ID != task.CreatedBy {
			return ErrNotPermitted
		}

		result = &StepResult{TaskID: task.ID, PreviousStatus: task.Status, Status: task.Status}
		if status == task.Status {
			return nil
		}
		if !catalog.HasStep(task.ServiceType, status) && !model.IsTerminalStatus(status) {
			return fmt.Errorf("%w: %q for %q", ErrStatusNotInWorkflow, status, task.ServiceType)
		}

		now := e.Now()
		if remarks == "" {
			remarks = "Status changed manually"
		}
		if err := e.transition(tx, task, status, actor.ID, remarks, now); err != nil {
			return err
		}
		text := fmt.Sprintf("Status changed from %s to %s by %s", result.PreviousStatus, status, actor.DisplayName())
		if err := addSystemComment(repos, task.ID, actor.ID, text, now); err != nil {
			return err
		}

		result.Status = task.Status
		result.Advanced = true
		result.Completed = task.Status == model.TaskStatusCompleted
		if !task.IsTerminal() {
			if result.ActiveStep, err = repos.Assignments.ActiveStep(task.ID, task.Status); err != nil {
				return err
			}
		}
		event = &Event{Type: EventStatusChanged, TaskID: task.ID, Status: task.Status, ActorID: actor.ID, At: now}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if event != nil {
		e.log.WithFields(logrus.Fields{
			"task_id":  result.TaskID,
			"from":     result.PreviousStatus,
			"status":   result.Status,
			"actor_id": actor.ID,
		}).Info("Task status changed")
		e.publish([]Event{*event})
	}
	return result, nil
}

// ActiveStep 返回当前阶段顺序最小的未完成记录,没有时返回 nil
func (e *Engine) ActiveStep(ctx context.Context, taskID string) (*model.TaskAssignmentStatusModel, error) {
	repos := repository.New(e.db.WithContext(ctx))
	task, err := e.findTask(repos, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsTerminal() {
		return nil, nil
	}
	return repos.Assignments.ActiveStep(task.ID, task.Status)
}

// Progress 按顺序返回当前阶段的全部记录
func (e *Engine) Progress(ctx context.Context, taskID string) ([]model.TaskAssignmentStatusModel, error) {
	repos := repository.New(e.db.WithContext(ctx))
	task, err := e.findTask(repos, taskID)
	if err != nil {
		return nil, err
	}
	return repos.Assignments.ListByContext(task.ID, task.Status)
}

// transition 条件更新状态、写状态日志,并初始化新阶段
func (e *Engine) transition(tx *gorm.DB, task *model.TaskModel, newStatus, actorID, remarks string, now time.Time) error {
	repos := repository.New(tx)
	old := task.Status

	var completedDate *time.Time
	if newStatus == model.TaskStatusCompleted {
		d := schedule.DateOf(now)
		completedDate = &d
	}

	ok, err := repos.Tasks.UpdateStatus(task.ID, old, newStatus, completedDate, now)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if !ok {
		return ErrConcurrentUpdate
	}

	if err := repos.StatusLogs.Save(&model.TaskStatusLogModel{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		OldStatus: old,
		NewStatus: newStatus,
		ChangedBy: actorID,
		Remarks:   remarks,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to write status log: %w", err)
	}

	task.Status = newStatus
	task.CompletedDate = completedDate
	task.UpdatedAt = now

	return e.InitializeStage(tx, task)
}

func (e *Engine) lockTask(repos *repository.Repositories, taskID string) (*model.TaskModel, error) {
	task, err := repos.Tasks.LockByID(taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

func (e *Engine) findTask(repos *repository.Repositories, taskID string) (*model.TaskModel, error) {
	task, err := repos.Tasks.FindByID(taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	return task, err
}

func (e *Engine) publish(events []Event) {
	for _, ev := range events {
		e.publisher.Publish(ev)
	}
}

func addSystemComment(repos *repository.Repositories, taskID, author, text string, at time.Time) error {
	return repos.Comments.Save(&model.TaskCommentModel{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		Author:    author,
		Text:      text,
		IsSystem:  true,
		CreatedAt: at,
	})
}

// NormalizeAssignees 去除空白并按首次出现去重;存在空 ID 时返回 ErrInvalidAssignees
func NormalizeAssignees(userIDs []string) ([]string, error) {
	seen := make(map[string]bool, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, raw := range userIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			return nil, fmt.Errorf("%w: empty user id", ErrInvalidAssignees)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out, nil
}
