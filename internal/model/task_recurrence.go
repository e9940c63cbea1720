package model

import (
	"errors"
	"time"
)

// TaskRecurrenceModel 重复任务影子记录,与任务一对一
type TaskRecurrenceModel struct {
	ID                string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID            string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"task_id"`
	Period            string     `gorm:"type:varchar(20);not null" json:"period"`
	AnchorDay         int        `gorm:"not null" json:"anchor_day"` // 首次创建日期的日
	NextRunAt         time.Time  `gorm:"not null;index" json:"next_run_at"`
	LastAutoCreatedAt *time.Time `json:"last_auto_created_at,omitempty"`
	IsActive          bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt         time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updated_at"`

	Task *TaskModel `gorm:"foreignKey:TaskID" json:"-"`
}

// TableName 指定表名
func (TaskRecurrenceModel) TableName() string {
	return "task_recurrences"
}

// Validate 验证影子记录
func (m *TaskRecurrenceModel) Validate() error {
	if m.TaskID == "" {
		return errors.New("task ID is required")
	}
	if m.Period == "" {
		return errors.New("period is required")
	}
	if m.AnchorDay < 1 || m.AnchorDay > 31 {
		return errors.New("anchor day must be between 1 and 31")
	}
	if m.NextRunAt.IsZero() {
		return errors.New("next run time is required")
	}
	return nil
}
