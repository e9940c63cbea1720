package repository

import (
	"errors"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecurrenceRepository 重复任务影子记录仓储接口
type RecurrenceRepository interface {
	Save(rec *model.TaskRecurrenceModel) error
	FindByTaskID(taskID string) (*model.TaskRecurrenceModel, error)
	LockByID(id string) (*model.TaskRecurrenceModel, error)
	DeleteByTaskID(taskID string) error
	FindDue(now time.Time) ([]*model.TaskRecurrenceModel, error)
	CountActive() (int64, error)
	NextRun() (*time.Time, error)
}

type recurrenceRepository struct {
	db *gorm.DB
}

// NewRecurrenceRepository 创建影子记录仓储
func NewRecurrenceRepository(db *gorm.DB) RecurrenceRepository {
	return &recurrenceRepository{db: db}
}

// Save 保存影子记录
func (r *recurrenceRepository) Save(rec *model.TaskRecurrenceModel) error {
	return r.db.Omit(clause.Associations).Save(rec).Error
}

// FindByTaskID 查找任务的影子记录,没有时返回 nil
func (r *recurrenceRepository) FindByTaskID(taskID string) (*model.TaskRecurrenceModel, error) {
	var rec model.TaskRecurrenceModel
	err := r.db.Where("task_id = ?", taskID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// LockByID 加锁读取影子记录
func (r *recurrenceRepository) LockByID(id string) (*model.TaskRecurrenceModel, error) {
	var rec model.TaskRecurrenceModel
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteByTaskID 删除任务的影子记录
func (r *recurrenceRepository) DeleteByTaskID(taskID string) error {
	return r.db.Where("task_id = ?", taskID).Delete(&model.TaskRecurrenceModel{}).Error
}

// FindDue 查找已到期的有效影子记录
func (r *recurrenceRepository) FindDue(now time.Time) ([]*model.TaskRecurrenceModel, error) {
	var recs []*model.TaskRecurrenceModel
	err := r.db.Where("is_active = ? AND next_run_at <= ?", true, now).
		Order("next_run_at ASC").
		Find(&recs).Error
	return recs, err
}

// CountActive 统计有效影子记录
func (r *recurrenceRepository) CountActive() (int64, error) {
	var count int64
	err := r.db.Model(&model.TaskRecurrenceModel{}).Where("is_active = ?", true).Count(&count).Error
	return count, err
}

// NextRun 返回最近一次待执行时间,没有时返回 nil
func (r *recurrenceRepository) NextRun() (*time.Time, error) {
	var rec model.TaskRecurrenceModel
	err := r.db.Where("is_active = ?", true).Order("next_run_at ASC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec.NextRunAt, nil
}
