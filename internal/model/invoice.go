package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 发票状态
const (
	InvoiceStatusDraft         = "DRAFT"
	InvoiceStatusOpen          = "OPEN"
	InvoiceStatusPartiallyPaid = "PARTIALLY_PAID"
	InvoiceStatusPaid          = "PAID"
)

// InvoiceModel 发票数据模型
type InvoiceModel struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ClientID    string     `gorm:"type:varchar(64);not null;index" json:"client_id"`
	InvoiceDate time.Time  `gorm:"not null" json:"invoice_date"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	Status      string     `gorm:"type:varchar(20);not null;default:DRAFT;index" json:"status"`
	Remarks     string     `gorm:"type:text" json:"remarks,omitempty"`
	CreatedBy   string     `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt   time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null" json:"updated_at"`

	Items    []InvoiceItemModel `gorm:"foreignKey:InvoiceID" json:"items,omitempty"`
	Payments []PaymentModel     `gorm:"foreignKey:InvoiceID" json:"payments,omitempty"`
}

// TableName 指定表名
func (InvoiceModel) TableName() string {
	return "invoices"
}

// Validate 验证发票
func (m *InvoiceModel) Validate() error {
	if m.ID == "" {
		return errors.New("invoice ID is required")
	}
	if m.ClientID == "" {
		return errors.New("client ID is required")
	}
	switch m.Status {
	case InvoiceStatusDraft, InvoiceStatusOpen, InvoiceStatusPartiallyPaid, InvoiceStatusPaid:
	default:
		return errors.New("invalid invoice status")
	}
	return nil
}

// InvoiceItemModel 发票明细
type InvoiceItemModel struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	InvoiceID   string          `gorm:"type:varchar(64);not null;index" json:"invoice_id"`
	TaskID      *string         `gorm:"type:varchar(64);index" json:"task_id,omitempty"`
	Description string          `gorm:"type:varchar(255);not null" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Discount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount"`
	NetTotal    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"net_total"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName 指定表名
func (InvoiceItemModel) TableName() string {
	return "invoice_items"
}

// Validate 验证发票明细
func (m *InvoiceItemModel) Validate() error {
	if m.InvoiceID == "" {
		return errors.New("invoice ID is required")
	}
	if m.Description == "" {
		return errors.New("description is required")
	}
	if !m.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if m.Discount.IsNegative() || m.Discount.GreaterThan(m.Amount) {
		return errors.New("discount must be between zero and the amount")
	}
	return nil
}
