package repository

import (
	"errors"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TaskRepository 任务仓储接口
type TaskRepository interface {
	Create(task *model.TaskModel) error
	CreateIfAbsent(task *model.TaskModel) (bool, error)
	Save(task *model.TaskModel) error
	FindByID(id string) (*model.TaskModel, error)
	LockByID(id string) (*model.TaskModel, error)
	UpdateStatus(id, from, to string, completedDate *time.Time, at time.Time) (bool, error)
	UpdateFields(id string, fields map[string]interface{}) error
	Delete(id string) error
	FindByFilter(filter *TaskFilter) ([]*model.TaskModel, int64, error)
	LastPeriodTask(clientServiceID string) (*model.TaskModel, error)
	LatestForService(clientServiceID string) (*model.TaskModel, error)
	ExistsForPeriod(clientServiceID string, from, to time.Time) (bool, error)
	FindAssignees(taskID string) ([]model.TaskAssigneeModel, error)
	ReplaceAssignees(taskID string, userIDs []string, at time.Time) error
	FindExtendedAttributes(taskID string) (*model.TaskExtendedAttributesModel, error)
	SaveExtendedAttributes(attrs *model.TaskExtendedAttributesModel) error
}

// taskRepository 任务仓储实现
type taskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

// Create 创建任务(不级联关联)
func (r *taskRepository) Create(task *model.TaskModel) error {
	return r.db.Omit(clause.Associations).Create(task).Error
}

// CreateIfAbsent 创建任务,账期唯一索引冲突时不插入并返回 false
func (r *taskRepository) CreateIfAbsent(task *model.TaskModel) (bool, error) {
	result := r.db.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(task)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Save 保存任务
func (r *taskRepository) Save(task *model.TaskModel) error {
	return r.db.Omit(clause.Associations).Save(task).Error
}

// FindByID 根据 ID 查找任务(含负责人与扩展属性)
func (r *taskRepository) FindByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	err := r.db.Preload("Assignees", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Preload("ExtendedAttributes").Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// LockByID 对任务行加排他锁(SELECT ... FOR UPDATE)
func (r *taskRepository) LockByID(id string) (*model.TaskModel, error) {
	var task model.TaskModel
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateStatus 条件更新状态,旧状态不匹配时返回 false
func (r *taskRepository) UpdateStatus(id, from, to string, completedDate *time.Time, at time.Time) (bool, error) {
	result := r.db.Model(&model.TaskModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{
			"status":         to,
			"completed_date": completedDate,
			"updated_at":     at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// UpdateFields 更新指定字段
func (r *taskRepository) UpdateFields(id string, fields map[string]interface{}) error {
	result := r.db.Model(&model.TaskModel{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 删除任务及其所有从属记录
func (r *taskRepository) Delete(id string) error {
	children := []interface{}{
		&model.TaskAssignmentStatusModel{},
		&model.TaskAssigneeModel{},
		&model.TaskStatusLogModel{},
		&model.TaskCommentModel{},
		&model.TaskExtendedAttributesModel{},
		&model.TaskRecurrenceModel{},
	}
	for _, child := range children {
		if err := r.db.Where("task_id = ?", id).Delete(child).Error; err != nil {
			return err
		}
	}
	result := r.db.Where("id = ?", id).Delete(&model.TaskModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByFilter 根据过滤器分页查找任务
func (r *taskRepository) FindByFilter(filter *TaskFilter) ([]*model.TaskModel, int64, error) {
	if filter == nil {
		filter = &TaskFilter{}
	}
	query := filter.apply(r.db.Model(&model.TaskModel{})).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.pagination()
	var tasks []*model.TaskModel
	err := query.Preload("Assignees", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).
		Order(filter.orderClause()).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&tasks).Error
	return tasks, total, err
}

// LastPeriodTask 返回服务最近一个账期的任务,没有时返回 nil
func (r *taskRepository) LastPeriodTask(clientServiceID string) (*model.TaskModel, error) {
	var task model.TaskModel
	err := r.db.Where("client_service_id = ? AND period_to IS NOT NULL", clientServiceID).
		Order("period_to DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// LatestForService 返回服务最近创建的任务(含负责人),没有时返回 nil
func (r *taskRepository) LatestForService(clientServiceID string) (*model.TaskModel, error) {
	var task model.TaskModel
	err := r.db.Preload("Assignees", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).Where("client_service_id = ?", clientServiceID).
		Order("created_at DESC").
		First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ExistsForPeriod 判断账期任务是否已存在
func (r *taskRepository) ExistsForPeriod(clientServiceID string, from, to time.Time) (bool, error) {
	var count int64
	err := r.db.Model(&model.TaskModel{}).
		Where("client_service_id = ? AND period_from = ? AND period_to = ?", clientServiceID, from, to).
		Count(&count).Error
	return count > 0, err
}

// FindAssignees 按位置返回负责人
func (r *taskRepository) FindAssignees(taskID string) ([]model.TaskAssigneeModel, error) {
	var assignees []model.TaskAssigneeModel
	err := r.db.Where("task_id = ?", taskID).Order("position ASC").Find(&assignees).Error
	return assignees, err
}

// ReplaceAssignees 替换负责人列表,位置即列表下标
func (r *taskRepository) ReplaceAssignees(taskID string, userIDs []string, at time.Time) error {
	if err := r.db.Where("task_id = ?", taskID).Delete(&model.TaskAssigneeModel{}).Error; err != nil {
		return err
	}
	if len(userIDs) == 0 {
		return nil
	}
	assignees := make([]model.TaskAssigneeModel, 0, len(userIDs))
	for i, userID := range userIDs {
		assignees = append(assignees, model.TaskAssigneeModel{
			ID:        uuid.NewString(),
			TaskID:    taskID,
			UserID:    userID,
			Position:  i,
			CreatedAt: at,
		})
	}
	return r.db.Create(&assignees).Error
}

// FindExtendedAttributes 查找扩展属性,没有时返回 nil
func (r *taskRepository) FindExtendedAttributes(taskID string) (*model.TaskExtendedAttributesModel, error) {
	var attrs model.TaskExtendedAttributesModel
	err := r.db.Where("task_id = ?", taskID).First(&attrs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attrs, nil
}

// SaveExtendedAttributes 保存扩展属性
func (r *taskRepository) SaveExtendedAttributes(attrs *model.TaskExtendedAttributesModel) error {
	if attrs.ID == "" {
		attrs.ID = uuid.NewString()
	}
	return r.db.Save(attrs).Error
}
