package model

import (
	"errors"
	"time"
)

// TaskStatusLogModel 任务状态变更日志(只追加,不修改)
type TaskStatusLogModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID    string    `gorm:"type:varchar(64);not null;index" json:"task_id"`
	OldStatus string    `gorm:"type:varchar(50)" json:"old_status"`
	NewStatus string    `gorm:"type:varchar(50);not null" json:"new_status"`
	ChangedBy string    `gorm:"type:varchar(64);not null" json:"changed_by"`
	Remarks   string    `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (TaskStatusLogModel) TableName() string {
	return "task_status_logs"
}

// Validate 验证状态日志模型
func (m *TaskStatusLogModel) Validate() error {
	if m.ID == "" {
		return errors.New("status log ID is required")
	}
	if m.TaskID == "" {
		return errors.New("task ID is required")
	}
	if m.NewStatus == "" {
		return errors.New("new status is required")
	}
	if m.ChangedBy == "" {
		return errors.New("changed by is required")
	}
	return nil
}
