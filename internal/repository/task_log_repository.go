package repository

import (
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
)

// StatusLogRepository 状态日志仓储接口
type StatusLogRepository interface {
	Save(log *model.TaskStatusLogModel) error
	FindByTaskID(taskID string) ([]*model.TaskStatusLogModel, error)
}

// statusLogRepository 状态日志仓储实现
type statusLogRepository struct {
	db *gorm.DB
}

// NewStatusLogRepository 创建状态日志仓储
func NewStatusLogRepository(db *gorm.DB) StatusLogRepository {
	return &statusLogRepository{db: db}
}

// Save 保存状态日志
func (r *statusLogRepository) Save(log *model.TaskStatusLogModel) error {
	return r.db.Create(log).Error
}

// FindByTaskID 根据任务 ID 查找状态日志
func (r *statusLogRepository) FindByTaskID(taskID string) ([]*model.TaskStatusLogModel, error) {
	var logs []*model.TaskStatusLogModel
	err := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&logs).Error
	return logs, err
}

// CommentRepository 任务评论仓储接口
type CommentRepository interface {
	Save(comment *model.TaskCommentModel) error
	FindByTaskID(taskID string) ([]*model.TaskCommentModel, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建评论仓储
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Save(comment *model.TaskCommentModel) error {
	return r.db.Create(comment).Error
}

func (r *commentRepository) FindByTaskID(taskID string) ([]*model.TaskCommentModel, error) {
	var comments []*model.TaskCommentModel
	err := r.db.Where("task_id = ?", taskID).Order("created_at ASC").Find(&comments).Error
	return comments, err
}
