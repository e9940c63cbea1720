package repository

import (
	"errors"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssignmentRepository 分配记录仓储接口
type AssignmentRepository interface {
	Create(row *model.TaskAssignmentStatusModel) error
	CreateIfAbsent(row *model.TaskAssignmentStatusModel) error
	Find(taskID, userID, statusContext string) (*model.TaskAssignmentStatusModel, error)
	CountPendingBefore(taskID, statusContext string, order int) (int64, error)
	CountPending(taskID, statusContext string) (int64, error)
	MarkCompleted(id, completedBy, remarks string, at time.Time) (bool, error)
	ActiveStep(taskID, statusContext string) (*model.TaskAssignmentStatusModel, error)
	ListByContext(taskID, statusContext string) ([]model.TaskAssignmentStatusModel, error)
	ListByTask(taskID string) ([]model.TaskAssignmentStatusModel, error)
	DeletePending(taskID, statusContext string) error
	PendingForUser(userID string) ([]model.TaskAssignmentStatusModel, error)
}

// assignmentRepository 分配记录仓储实现
type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository 创建分配记录仓储
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

// Create 创建分配记录
func (r *assignmentRepository) Create(row *model.TaskAssignmentStatusModel) error {
	return r.db.Create(row).Error
}

// CreateIfAbsent (任务, 用户, 阶段) 已存在时保持原记录不变
func (r *assignmentRepository) CreateIfAbsent(row *model.TaskAssignmentStatusModel) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(row).Error
}

// Find 查找用户在某阶段的分配记录
func (r *assignmentRepository) Find(taskID, userID, statusContext string) (*model.TaskAssignmentStatusModel, error) {
	var row model.TaskAssignmentStatusModel
	err := r.db.Where("task_id = ? AND user_id = ? AND status_context = ?", taskID, userID, statusContext).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CountPendingBefore 统计顺序在 order 之前且未完成的记录数
func (r *assignmentRepository) CountPendingBefore(taskID, statusContext string, order int) (int64, error) {
	var count int64
	err := r.db.Model(&model.TaskAssignmentStatusModel{}).
		Where("task_id = ? AND status_context = ? AND is_completed = ? AND step_order < ?",
			taskID, statusContext, false, order).
		Count(&count).Error
	return count, err
}

// CountPending 统计阶段内未完成的记录数
func (r *assignmentRepository) CountPending(taskID, statusContext string) (int64, error) {
	var count int64
	err := r.db.Model(&model.TaskAssignmentStatusModel{}).
		Where("task_id = ? AND status_context = ? AND is_completed = ?", taskID, statusContext, false).
		Count(&count).Error
	return count, err
}

// MarkCompleted 条件更新为已完成,记录已完成时返回 false
func (r *assignmentRepository) MarkCompleted(id, completedBy, remarks string, at time.Time) (bool, error) {
	result := r.db.Model(&model.TaskAssignmentStatusModel{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"completed_at": at,
			"completed_by": completedBy,
			"remarks":      remarks,
			"updated_at":   at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ActiveStep 返回阶段内顺序最小的未完成记录,没有时返回 nil
func (r *assignmentRepository) ActiveStep(taskID, statusContext string) (*model.TaskAssignmentStatusModel, error) {
	var row model.TaskAssignmentStatusModel
	err := r.db.Where("task_id = ? AND status_context = ? AND is_completed = ?", taskID, statusContext, false).
		Order("step_order ASC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByContext 按顺序返回阶段内的记录
func (r *assignmentRepository) ListByContext(taskID, statusContext string) ([]model.TaskAssignmentStatusModel, error) {
	var rows []model.TaskAssignmentStatusModel
	err := r.db.Where("task_id = ? AND status_context = ?", taskID, statusContext).
		Order("step_order ASC").
		Find(&rows).Error
	return rows, err
}

// ListByTask 返回任务所有阶段的记录
func (r *assignmentRepository) ListByTask(taskID string) ([]model.TaskAssignmentStatusModel, error) {
	var rows []model.TaskAssignmentStatusModel
	err := r.db.Where("task_id = ?", taskID).
		Order("created_at ASC, step_order ASC").
		Find(&rows).Error
	return rows, err
}

// DeletePending 删除阶段内未完成的记录
func (r *assignmentRepository) DeletePending(taskID, statusContext string) error {
	return r.db.Where("task_id = ? AND status_context = ? AND is_completed = ?", taskID, statusContext, false).
		Delete(&model.TaskAssignmentStatusModel{}).Error
}

// PendingForUser 返回用户在任务当前阶段中未完成的记录
func (r *assignmentRepository) PendingForUser(userID string) ([]model.TaskAssignmentStatusModel, error) {
	var rows []model.TaskAssignmentStatusModel
	err := r.db.Model(&model.TaskAssignmentStatusModel{}).
		Joins("JOIN tasks ON tasks.id = task_assignment_statuses.task_id AND tasks.status = task_assignment_statuses.status_context").
		Where("task_assignment_statuses.user_id = ? AND task_assignment_statuses.is_completed = ?", userID, false).
		Order("task_assignment_statuses.created_at ASC").
		Find(&rows).Error
	return rows, err
}
