package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 收款状态
const (
	PaymentStatusPending  = "PENDING"
	PaymentStatusPaid     = "PAID"
	PaymentStatusUnpaid   = "UNPAID"
	PaymentStatusCanceled = "CANCELED"
)

// 审批状态
const (
	ApprovalStatusPending  = "PENDING"
	ApprovalStatusApproved = "APPROVED"
	ApprovalStatusRejected = "REJECTED"
	ApprovalStatusCanceled = "CANCELED"
)

// PaymentModel 收款记录
type PaymentModel struct {
	ID             string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	InvoiceID      string          `gorm:"type:varchar(64);not null;index" json:"invoice_id"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	PaymentDate    time.Time       `gorm:"not null;index" json:"payment_date"`
	Method         string          `gorm:"type:varchar(30)" json:"method"`
	Reference      string          `gorm:"type:varchar(100)" json:"reference,omitempty"`
	PaymentStatus  string          `gorm:"type:varchar(20);not null;default:PENDING;index" json:"payment_status"`
	ApprovalStatus string          `gorm:"type:varchar(20);not null;default:PENDING;index" json:"approval_status"`
	CreatedBy      string          `gorm:"type:varchar(64);not null" json:"created_by"`
	ApprovedBy     string          `gorm:"type:varchar(64)" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time      `json:"approved_at,omitempty"`
	Remarks        string          `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (PaymentModel) TableName() string {
	return "payments"
}

// IsPending 收款与审批均待处理
func (m *PaymentModel) IsPending() bool {
	return m.PaymentStatus == PaymentStatusPending && m.ApprovalStatus == ApprovalStatusPending
}

// Counts 是否计入已收金额
func (m *PaymentModel) Counts() bool {
	return m.PaymentStatus == PaymentStatusPaid && m.ApprovalStatus == ApprovalStatusApproved
}

// Validate 验证收款记录
func (m *PaymentModel) Validate() error {
	if m.ID == "" {
		return errors.New("payment ID is required")
	}
	if m.InvoiceID == "" {
		return errors.New("invoice ID is required")
	}
	if !m.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if m.CreatedBy == "" {
		return errors.New("created by is required")
	}
	return nil
}
