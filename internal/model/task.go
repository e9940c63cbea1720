package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 任务状态(终态)
const (
	TaskStatusCompleted = "Completed"
	TaskStatusCancelled = "Cancelled"
)

// 优先级
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// 费用状态
const (
	FeeStatusUnbilled = "Unbilled"
	FeeStatusBilled   = "Billed"
	FeeStatusPaid     = "Paid"
)

// TaskModel 任务数据模型
type TaskModel struct {
	ID                string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ClientID          string          `gorm:"type:varchar(64);not null;index" json:"client_id"`
	ClientServiceID   *string         `gorm:"type:varchar(64);index" json:"client_service_id,omitempty"` // 账期任务所属服务
	ServiceType       string          `gorm:"type:varchar(50);not null;index" json:"service_type"`
	Title             string          `gorm:"type:varchar(255);not null" json:"title"`
	Description       string          `gorm:"type:text" json:"description"`
	DueDate           *time.Time      `gorm:"index" json:"due_date,omitempty"`
	CompletedDate     *time.Time      `json:"completed_date,omitempty"`
	Priority          string          `gorm:"type:varchar(20);not null;default:Medium" json:"priority"`
	Status            string          `gorm:"type:varchar(50);not null;index" json:"status"` // 当前工作流阶段
	IsRecurring       bool            `gorm:"not null;default:false" json:"is_recurring"`
	RecurrencePeriod  string          `gorm:"type:varchar(20);not null;default:None" json:"recurrence_period"`
	AgreedFee         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"agreed_fee"`
	FeeStatus         string          `gorm:"type:varchar(20);not null;default:Unbilled;index" json:"fee_status"`
	PeriodFrom        *time.Time      `json:"period_from,omitempty"`
	PeriodTo          *time.Time      `json:"period_to,omitempty"`
	LastAutoCreatedAt *time.Time      `json:"last_auto_created_at,omitempty"`
	CreatedBy         string          `gorm:"type:varchar(64);index" json:"created_by"`
	CreatedAt         time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;index" json:"updated_at"`

	Assignees          []TaskAssigneeModel          `gorm:"foreignKey:TaskID" json:"assignees,omitempty"`
	ExtendedAttributes *TaskExtendedAttributesModel `gorm:"foreignKey:TaskID" json:"extended_attributes,omitempty"`
}

// TableName 指定表名
func (TaskModel) TableName() string {
	return "tasks"
}

// IsTerminal 任务是否处于终态
func (tm *TaskModel) IsTerminal() bool {
	return IsTerminalStatus(tm.Status)
}

// AssigneeIDs 按顺序返回负责人 ID
func (tm *TaskModel) AssigneeIDs() []string {
	ids := make([]string, 0, len(tm.Assignees))
	for _, a := range SortAssignees(tm.Assignees) {
		ids = append(ids, a.UserID)
	}
	return ids
}

// Validate 验证任务模型
func (tm *TaskModel) Validate() error {
	if tm.ID == "" {
		return errors.New("task ID is required")
	}
	if tm.ClientID == "" {
		return errors.New("client ID is required")
	}
	if tm.ServiceType == "" {
		return errors.New("service type is required")
	}
	if tm.Title == "" {
		return errors.New("task title is required")
	}
	if tm.Status == "" {
		return errors.New("task status is required")
	}
	switch tm.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return errors.New("priority must be High, Medium or Low")
	}
	switch tm.FeeStatus {
	case FeeStatusUnbilled, FeeStatusBilled, FeeStatusPaid:
	default:
		return errors.New("fee status must be Unbilled, Billed or Paid")
	}
	if tm.AgreedFee.IsNegative() {
		return errors.New("agreed fee must not be negative")
	}
	if tm.PeriodFrom != nil && tm.PeriodTo != nil && tm.PeriodTo.Before(*tm.PeriodFrom) {
		return errors.New("period end must not be before period start")
	}
	return nil
}

// IsTerminalStatus 判断状态是否为终态
func IsTerminalStatus(status string) bool {
	return status == TaskStatusCompleted || status == TaskStatusCancelled
}
