package model

import (
	"errors"
	"sort"
	"time"
)

// TaskAssigneeModel 任务负责人(有序)
type TaskAssigneeModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignee_task_user" json:"task_id"`
	UserID    string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignee_task_user;index" json:"user_id"`
	Position  int       `gorm:"not null" json:"position"` // 从 0 开始
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (TaskAssigneeModel) TableName() string {
	return "task_assignees"
}

// SortAssignees 按位置排序
func SortAssignees(in []TaskAssigneeModel) []TaskAssigneeModel {
	out := make([]TaskAssigneeModel, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// TaskAssignmentStatusModel 某用户在某工作流阶段的职责
type TaskAssignmentStatusModel struct {
	ID            string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID        string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignment_task_user_ctx;index:idx_assignment_task_ctx" json:"task_id"`
	UserID        string     `gorm:"type:varchar(64);not null;uniqueIndex:idx_assignment_task_user_ctx;index" json:"user_id"`
	StatusContext string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_assignment_task_user_ctx;index:idx_assignment_task_ctx" json:"status_context"`
	Order         int        `gorm:"column:step_order;not null" json:"order"` // 从 1 开始
	IsCompleted   bool       `gorm:"not null;default:false" json:"is_completed"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	CompletedBy   string     `gorm:"type:varchar(64)" json:"completed_by,omitempty"`
	Remarks       string     `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt     time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (TaskAssignmentStatusModel) TableName() string {
	return "task_assignment_statuses"
}

// Validate 验证分配记录
func (m *TaskAssignmentStatusModel) Validate() error {
	if m.ID == "" {
		return errors.New("assignment ID is required")
	}
	if m.TaskID == "" {
		return errors.New("task ID is required")
	}
	if m.UserID == "" {
		return errors.New("user ID is required")
	}
	if m.StatusContext == "" {
		return errors.New("status context is required")
	}
	if m.Order < 1 {
		return errors.New("order must be positive")
	}
	return nil
}
