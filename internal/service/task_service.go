package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TaskService 任务服务接口
type TaskService interface {
	Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error)
	Get(ctx context.Context, id string) (*model.TaskModel, error)
	Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error)
	Delete(ctx context.Context, id string) error
	// 工作流操作
	CompleteStep(ctx context.Context, id string, req *CompleteStepRequest) (*workflow.StepResult, error)
	Reassign(ctx context.Context, id string, req *ReassignRequest) ([]model.TaskAssignmentStatusModel, error)
	ChangeStatus(ctx context.Context, id string, req *ChangeStatusRequest) (*workflow.StepResult, error)
	ActiveStep(ctx context.Context, id string) (*model.TaskAssignmentStatusModel, error)
	Copy(ctx context.Context, id string) (*model.TaskModel, error)
	AddComment(ctx context.Context, id string, req *AddCommentRequest) (*model.TaskCommentModel, error)
	// 批量操作
	BatchComplete(ctx context.Context, req *BatchCompleteRequest) ([]BatchOperationResult, error)
}

// CreateTaskRequest 创建任务请求
type CreateTaskRequest struct {
	ClientID           string                             `json:"client_id" binding:"required"`
	ClientServiceID    *string                            `json:"client_service_id"`
	ServiceType        string                             `json:"service_type" binding:"required"`
	Title              string                             `json:"title" binding:"required"`
	Description        string                             `json:"description"`
	Status             string                             `json:"status"`   // 为空时取工作流第一步
	Priority           string                             `json:"priority"` // High/Medium/Low
	DueDate            *time.Time                         `json:"due_date"` // 为空时按服务默认天数计算
	AgreedFee          decimal.Decimal                    `json:"agreed_fee"`
	IsRecurring        bool                               `json:"is_recurring"`
	RecurrencePeriod   string                             `json:"recurrence_period"`
	AssigneeIDs        []string                           `json:"assignee_ids"`
	ExtendedAttributes *model.TaskExtendedAttributesModel `json:"extended_attributes"`
}

// UpdateTaskRequest 更新任务请求,nil 字段保持不变
type UpdateTaskRequest struct {
	Title            *string          `json:"title"`
	Description      *string          `json:"description"`
	Priority         *string          `json:"priority"`
	DueDate          *time.Time       `json:"due_date"`
	AgreedFee        *decimal.Decimal `json:"agreed_fee"`
	FeeStatus        *string          `json:"fee_status"`
	IsRecurring      *bool            `json:"is_recurring"`
	RecurrencePeriod *string          `json:"recurrence_period"`
}

// CompleteStepRequest 完成步骤请求
type CompleteStepRequest struct {
	UserID  string `json:"user_id"` // 管理员代为完成时指定
	Remarks string `json:"remarks"`
}

// ReassignRequest 重新分配请求
type ReassignRequest struct {
	AssigneeIDs []string `json:"assignee_ids" binding:"required"`
}

// ChangeStatusRequest 手动变更阶段请求
type ChangeStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	Remarks string `json:"remarks"`
}

// AddCommentRequest 添加评论请求
type AddCommentRequest struct {
	Text string `json:"text" binding:"required"`
}

// BatchCompleteRequest 批量完成请求
type BatchCompleteRequest struct {
	TaskIDs []string `json:"task_ids" binding:"required"`
	Remarks string   `json:"remarks"`
}

// BatchOperationResult 批量操作结果
type BatchOperationResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

const maxCommentLength = 5000

type taskService struct {
	db          *gorm.DB
	engine      *workflow.Engine
	copier      *recurrence.Copier
	auditLogSvc AuditLogService
	log         logrus.FieldLogger
}

// NewTaskService 创建任务服务
func NewTaskService(db *gorm.DB, engine *workflow.Engine, auditLogSvc AuditLogService, log logrus.FieldLogger) TaskService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &taskService{
		db:          db,
		engine:      engine,
		copier:      recurrence.NewCopier(engine),
		auditLogSvc: auditLogSvc,
		log:         log,
	}
}

// Create 创建任务
func (s *taskService) Create(ctx context.Context, req *CreateTaskRequest) (*model.TaskModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	if err := utils.ValidateTitle(req.Title); err != nil {
		return nil, invalid("%v", err)
	}
	assignees, err := workflow.NormalizeAssignees(req.AssigneeIDs)
	if err != nil {
		return nil, err
	}

	catalog := s.engine.Catalog()
	now := s.engine.Now()

	task := &model.TaskModel{
		ID:               uuid.NewString(),
		ClientID:         req.ClientID,
		ClientServiceID:  req.ClientServiceID,
		ServiceType:      strings.TrimSpace(req.ServiceType),
		Title:            strings.TrimSpace(req.Title),
		Description:      utils.SanitizeString(req.Description),
		Status:           strings.TrimSpace(req.Status),
		Priority:         req.Priority,
		AgreedFee:        req.AgreedFee,
		FeeStatus:        model.FeeStatusUnbilled,
		IsRecurring:      req.IsRecurring,
		RecurrencePeriod: req.RecurrencePeriod,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	// 1. 默认值
	if task.Status == "" {
		task.Status = catalog.InitialStatus(task.ServiceType)
	} else if !catalog.HasStep(task.ServiceType, task.Status) {
		return nil, fmt.Errorf("%w: %q for %q", workflow.ErrStatusNotInWorkflow, task.Status, task.ServiceType)
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.RecurrencePeriod == "" {
		task.RecurrencePeriod = schedule.PeriodNone
	}
	if req.DueDate != nil {
		due := schedule.DateOf(*req.DueDate)
		task.DueDate = &due
	} else {
		due := schedule.DateOf(now).AddDate(0, 0, catalog.DueDaysFor(task.ServiceType))
		task.DueDate = &due
	}
	if err := task.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		// 2. 客户必须存在
		client, err := repos.Clients.FindByID(task.ClientID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}
		if task.ClientServiceID != nil {
			svc, err := repos.Clients.FindServiceByID(*task.ClientServiceID)
			if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && svc.ClientID != client.ID) {
				return ErrEngagementMissing
			}
			if err != nil {
				return err
			}
		}

		// 3. 任务与负责人
		if err := repos.Tasks.Create(task); err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		if err := repos.Tasks.ReplaceAssignees(task.ID, assignees, now); err != nil {
			return fmt.Errorf("failed to save assignees: %w", err)
		}

		// 4. 扩展属性,按服务配置从客户资料预填
		attrs := req.ExtendedAttributes
		defaults := catalog.DynamicDefaultsFor(task.ServiceType)
		if attrs == nil && len(defaults) > 0 {
			attrs = &model.TaskExtendedAttributesModel{}
		}
		if attrs != nil {
			applyDynamicDefaults(attrs, defaults, client)
			attrs.ID = uuid.NewString()
			attrs.TaskID = task.ID
			attrs.CreatedAt = now
			attrs.UpdatedAt = now
			if err := repos.Tasks.SaveExtendedAttributes(attrs); err != nil {
				return fmt.Errorf("failed to save extended attributes: %w", err)
			}
		}

		// 5. 初始化阶段、重复设置与状态日志
		if err := s.engine.InitializeStage(tx, task); err != nil {
			return err
		}
		if err := recurrence.Sync(tx, task, now); err != nil {
			return err
		}
		return repos.StatusLogs.Save(&model.TaskStatusLogModel{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			NewStatus: task.Status,
			ChangedBy: actor.ID,
			Remarks:   "Task created",
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskCreated(metrics.SourceManual)
	record(ctx, s.auditLogSvc, s.log, actor.ID, "create", "task", task.ID, map[string]interface{}{
		"client_id":    task.ClientID,
		"service_type": task.ServiceType,
		"status":       task.Status,
		"assignees":    assignees,
	})
	s.log.WithFields(logrus.Fields{"task_id": task.ID, "status": task.Status, "user_id": actor.ID}).Info("Task created")

	return s.Get(ctx, task.ID)
}

// Get 获取任务详情
func (s *taskService) Get(ctx context.Context, id string) (*model.TaskModel, error) {
	task, err := repository.NewTaskRepository(s.db.WithContext(ctx)).FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrTaskNotFound
	}
	return task, err
}

// Update 更新任务基本信息与重复设置
func (s *taskService) Update(ctx context.Context, id string, req *UpdateTaskRequest) (*model.TaskModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		task, err := repos.Tasks.LockByID(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		if !actor.IsAdmin() && actor.ID != task.CreatedBy {
			assignees, err := repos.Tasks.FindAssignees(task.ID)
			if err != nil {
				return err
			}
			if !isAssignee(assignees, actor.ID) {
				return workflow.ErrNotPermitted
			}
		}

		// 1. 合并字段
		if req.Title != nil {
			if err := utils.ValidateTitle(*req.Title); err != nil {
				return invalid("%v", err)
			}
			task.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			task.Description = utils.SanitizeString(*req.Description)
		}
		if req.Priority != nil {
			task.Priority = *req.Priority
		}
		if req.DueDate != nil {
			due := schedule.DateOf(*req.DueDate)
			task.DueDate = &due
		}
		if req.AgreedFee != nil {
			task.AgreedFee = *req.AgreedFee
		}
		if req.FeeStatus != nil {
			task.FeeStatus = *req.FeeStatus
		}
		if req.IsRecurring != nil {
			task.IsRecurring = *req.IsRecurring
		}
		if req.RecurrencePeriod != nil {
			task.RecurrencePeriod = *req.RecurrencePeriod
		}
		if err := task.Validate(); err != nil {
			return invalid("%v", err)
		}

		// 2. 保存并同步重复设置
		now := s.engine.Now()
		if err := repos.Tasks.UpdateFields(task.ID, map[string]interface{}{
			"title":             task.Title,
			"description":       task.Description,
			"priority":          task.Priority,
			"due_date":          task.DueDate,
			"agreed_fee":        task.AgreedFee,
			"fee_status":        task.FeeStatus,
			"is_recurring":      task.IsRecurring,
			"recurrence_period": task.RecurrencePeriod,
			"updated_at":        now,
		}); err != nil {
			return err
		}
		return recurrence.Sync(tx, task, now)
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "update", "task", id, req)
	return s.Get(ctx, id)
}

// Delete 删除任务(仅管理员)
func (s *taskService) Delete(ctx context.Context, id string) error {
	actor, err := actorFrom(ctx)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return workflow.ErrNotPermitted
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.NewTaskRepository(tx).Delete(id)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.ErrTaskNotFound
	}
	if err != nil {
		return err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "delete", "task", id, nil)
	s.log.WithFields(logrus.Fields{"task_id": id, "user_id": actor.ID}).Info("Task deleted")
	return nil
}

// CompleteStep 完成当前阶段的步骤
func (s *taskService) CompleteStep(ctx context.Context, id string, req *CompleteStepRequest) (*workflow.StepResult, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.CompleteStep(ctx, actor, id, strings.TrimSpace(req.UserID), req.Remarks)
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "complete_step", "task", id, map[string]interface{}{
		"user_id":  result.Assignment.UserID,
		"status":   result.PreviousStatus,
		"advanced": result.Advanced,
	})
	return result, nil
}

// Reassign 重新分配负责人
func (s *taskService) Reassign(ctx context.Context, id string, req *ReassignRequest) ([]model.TaskAssignmentStatusModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.engine.Reassign(ctx, actor, id, req.AssigneeIDs)
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "reassign", "task", id, map[string]interface{}{
		"assignee_ids": req.AssigneeIDs,
	})
	return rows, nil
}

// ChangeStatus 手动变更阶段
func (s *taskService) ChangeStatus(ctx context.Context, id string, req *ChangeStatusRequest) (*workflow.StepResult, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.engine.ChangeStatus(ctx, actor, id, req.Status, req.Remarks)
	if err != nil {
		return nil, err
	}

	if result.Advanced {
		record(ctx, s.auditLogSvc, s.log, actor.ID, "change_status", "task", id, map[string]interface{}{
			"from": result.PreviousStatus,
			"to":   result.Status,
		})
	}
	return result, nil
}

// ActiveStep 当前阶段应处理的负责人
func (s *taskService) ActiveStep(ctx context.Context, id string) (*model.TaskAssignmentStatusModel, error) {
	return s.engine.ActiveStep(ctx, id)
}

// Copy 手动复制任务
func (s *taskService) Copy(ctx context.Context, id string) (*model.TaskModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}

	var copied *model.TaskModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		original, err := repository.NewTaskRepository(tx).FindByID(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		copied, err = s.copier.Copy(tx, original, recurrence.CopyOptions{CreatedBy: actor.ID})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordTaskCreated(metrics.SourceCopy)
	record(ctx, s.auditLogSvc, s.log, actor.ID, "copy", "task", copied.ID, map[string]interface{}{"source_task_id": id})
	s.log.WithFields(logrus.Fields{"task_id": copied.ID, "source_task_id": id, "user_id": actor.ID}).Info("Task copied")

	return s.Get(ctx, copied.ID)
}

// AddComment 添加评论
func (s *taskService) AddComment(ctx context.Context, id string, req *AddCommentRequest) (*model.TaskCommentModel, error) {
	actor, err := actorFrom(ctx)
	if err != nil {
		return nil, err
	}
	text, err := utils.TrimAndValidate(req.Text, maxCommentLength)
	if err != nil {
		return nil, invalid("%v", err)
	}

	comment := &model.TaskCommentModel{
		ID:        uuid.NewString(),
		TaskID:    id,
		Author:    actor.ID,
		Text:      text,
		CreatedAt: s.engine.Now(),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		if _, err := repos.Tasks.FindByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return workflow.ErrTaskNotFound
			}
			return err
		}
		return repos.Comments.Save(comment)
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "comment", "task", id, nil)
	return comment, nil
}

// BatchComplete 批量完成当前用户的步骤
func (s *taskService) BatchComplete(ctx context.Context, req *BatchCompleteRequest) ([]BatchOperationResult, error) {
	if _, err := writerFrom(ctx); err != nil {
		return nil, err
	}
	results := make([]BatchOperationResult, 0, len(req.TaskIDs))

	for _, taskID := range req.TaskIDs {
		_, err := s.CompleteStep(ctx, taskID, &CompleteStepRequest{Remarks: req.Remarks})
		result := BatchOperationResult{
			ID:      taskID,
			Success: err == nil,
		}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}

	return results, nil
}

func isAssignee(assignees []model.TaskAssigneeModel, userID string) bool {
	for _, a := range assignees {
		if a.UserID == userID {
			return true
		}
	}
	return false
}

// applyDynamicDefaults 用客户资料填充为空的扩展属性
func applyDynamicDefaults(attrs *model.TaskExtendedAttributesModel, defaults map[string]string, client *model.ClientModel) {
	for attr, source := range defaults {
		value := clientField(client, source)
		if value == "" {
			continue
		}
		switch attr {
		case "pan_number":
			if attrs.PANNumber == "" {
				attrs.PANNumber = value
			}
		case "din_numbers":
			if attrs.DINNumbers == "" {
				attrs.DINNumbers = value
			}
		case "gstin":
			if attrs.GSTIN == "" {
				attrs.GSTIN = value
			}
		}
	}
}

func clientField(client *model.ClientModel, field string) string {
	switch field {
	case "pan":
		return client.PAN
	case "din":
		return client.DIN
	case "email":
		return client.Email
	case "name":
		return client.Name
	default:
		return ""
	}
}
