package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PeriodAttributes 报告期信息
type PeriodAttributes struct {
	PeriodMonth    string `gorm:"type:varchar(20)" json:"period_month,omitempty"`
	PeriodYear     string `gorm:"type:varchar(10)" json:"period_year,omitempty"`
	FinancialYear  string `gorm:"type:varchar(10)" json:"financial_year,omitempty"`
	AssessmentYear string `gorm:"type:varchar(10)" json:"assessment_year,omitempty"`
}

// IncomeTaxAttributes 所得税/审计金额
type IncomeTaxAttributes struct {
	TotalTurnover    decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"total_turnover"`
	GrossTotalIncome decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"gross_total_income"`
	TaxPayable       decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"tax_payable"`
	RefundAmount     decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"refund_amount"`
	AuditFee         decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"audit_fee"`
}

// FilingAttributes 申报凭证信息
type FilingAttributes struct {
	PANNumber     string     `gorm:"type:varchar(20)" json:"pan_number,omitempty"`
	GSTIN         string     `gorm:"column:gstin;type:varchar(15)" json:"gstin,omitempty"`
	AckNumber     string     `gorm:"type:varchar(50)" json:"ack_number,omitempty"`
	ARNNumber     string     `gorm:"column:arn_number;type:varchar(50)" json:"arn_number,omitempty"`
	UDINNumber    string     `gorm:"column:udin_number;type:varchar(50)" json:"udin_number,omitempty"`
	SRNNumber     string     `gorm:"column:srn_number;type:varchar(50)" json:"srn_number,omitempty"`
	DINNumbers    string     `gorm:"column:din_numbers;type:text" json:"din_numbers,omitempty"`
	FilingDate    *time.Time `json:"filing_date,omitempty"`
	DateOfSigning *time.Time `json:"date_of_signing,omitempty"`
	MeetingDate   *time.Time `json:"meeting_date,omitempty"`
}

// GSTAttributes GST 申报金额
type GSTAttributes struct {
	GSTReturnType  string              `gorm:"column:gst_return_type;type:varchar(20)" json:"gst_return_type,omitempty"`
	TaxableValue   decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"taxable_value"`
	IGSTAmount     decimal.NullDecimal `gorm:"column:igst_amount;type:decimal(15,2)" json:"igst_amount"`
	CGSTAmount     decimal.NullDecimal `gorm:"column:cgst_amount;type:decimal(15,2)" json:"cgst_amount"`
	SGSTAmount     decimal.NullDecimal `gorm:"column:sgst_amount;type:decimal(15,2)" json:"sgst_amount"`
	CessAmount     decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"cess_amount"`
	ITCAvailable   decimal.NullDecimal `gorm:"column:itc_available;type:decimal(15,2)" json:"itc_available"`
	ITCClaimed     decimal.NullDecimal `gorm:"column:itc_claimed;type:decimal(15,2)" json:"itc_claimed"`
	LateFeeAmount  decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"late_fee_amount"`
	InterestAmount decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"interest_amount"`
	ChallanAmount  decimal.NullDecimal `gorm:"type:decimal(15,2)" json:"challan_amount"`
	ChallanDate    *time.Time          `json:"challan_date,omitempty"`
}

// TaskExtendedAttributesModel 任务扩展属性(与任务一对一)
type TaskExtendedAttributesModel struct {
	ID     string `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID string `gorm:"type:varchar(64);not null;uniqueIndex" json:"task_id"`

	PeriodAttributes    `gorm:"embedded"`
	IncomeTaxAttributes `gorm:"embedded"`
	FilingAttributes    `gorm:"embedded"`
	GSTAttributes       `gorm:"embedded"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (TaskExtendedAttributesModel) TableName() string {
	return "task_extended_attributes"
}

// Validate 验证扩展属性
func (m *TaskExtendedAttributesModel) Validate() error {
	if m.TaskID == "" {
		return errors.New("task ID is required")
	}
	return nil
}

// Clone 按字段显式复制到新任务,不复制 ID、TaskID 与时间戳
func (m *TaskExtendedAttributesModel) Clone(id, taskID string) *TaskExtendedAttributesModel {
	if m == nil {
		return nil
	}
	return &TaskExtendedAttributesModel{
		ID:                  id,
		TaskID:              taskID,
		PeriodAttributes:    m.PeriodAttributes,
		IncomeTaxAttributes: m.IncomeTaxAttributes,
		FilingAttributes:    m.FilingAttributes.clone(),
		GSTAttributes:       m.GSTAttributes.clone(),
	}
}

func (a FilingAttributes) clone() FilingAttributes {
	out := a
	out.FilingDate = copyTime(a.FilingDate)
	out.DateOfSigning = copyTime(a.DateOfSigning)
	out.MeetingDate = copyTime(a.MeetingDate)
	return out
}

func (a GSTAttributes) clone() GSTAttributes {
	out := a
	out.ChallanDate = copyTime(a.ChallanDate)
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
