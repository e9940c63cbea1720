package model

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 客户状态
const (
	ClientStatusProspect = "Prospect"
	ClientStatusActive   = "Active"
	ClientStatusInactive = "Inactive"
)

// 服务频率
const (
	FrequencyOneTime   = "One-time"
	FrequencyMonthly   = "Monthly"
	FrequencyQuarterly = "Quarterly"
	FrequencyYearly    = "Yearly"
)

// ClientModel 客户数据模型
type ClientModel struct {
	ID                 string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name               string    `gorm:"type:varchar(255);not null;index" json:"name"`
	PrimaryContactName string    `gorm:"type:varchar(255)" json:"primary_contact_name"`
	PAN                string    `gorm:"column:pan;type:varchar(20);not null;uniqueIndex" json:"pan"`
	Email              string    `gorm:"type:varchar(255)" json:"email"`
	PhoneNumber        string    `gorm:"type:varchar(20)" json:"phone_number"`
	ClientType         string    `gorm:"type:varchar(20)" json:"client_type"`
	Status             string    `gorm:"type:varchar(20);not null;default:Prospect;index" json:"status"`
	DIN                string    `gorm:"column:din;type:varchar(100)" json:"din,omitempty"`
	AssignedCA         string    `gorm:"column:assigned_ca;type:varchar(64)" json:"assigned_ca,omitempty"`
	CreatedBy          string    `gorm:"type:varchar(64)" json:"created_by"`
	CreatedAt          time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time `gorm:"not null" json:"updated_at"`
}

// TableName 指定表名
func (ClientModel) TableName() string {
	return "clients"
}

// Validate 验证客户模型
func (m *ClientModel) Validate() error {
	if m.ID == "" {
		return errors.New("client ID is required")
	}
	if m.Name == "" {
		return errors.New("client name is required")
	}
	if m.PAN == "" {
		return errors.New("PAN is required")
	}
	switch m.Status {
	case ClientStatusProspect, ClientStatusActive, ClientStatusInactive:
	default:
		return errors.New("invalid client status")
	}
	return nil
}

// ClientServiceModel 客户签约的服务(账期任务来源)
type ClientServiceModel struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)" json:"id"`
	ClientID    string          `gorm:"type:varchar(64);not null;index" json:"client_id"`
	ServiceType string          `gorm:"type:varchar(50);not null" json:"service_type"`
	Frequency   string          `gorm:"type:varchar(20);not null" json:"frequency"`
	StartDate   time.Time       `gorm:"not null" json:"start_date"`
	EndDate     *time.Time      `json:"end_date,omitempty"`
	AgreedFee   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"agreed_fee"`
	IsActive    bool            `gorm:"not null;index" json:"is_active"`
	Remarks     string          `gorm:"type:text" json:"remarks,omitempty"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`

	Client *ClientModel `gorm:"foreignKey:ClientID" json:"client,omitempty"`
}

// TableName 指定表名
func (ClientServiceModel) TableName() string {
	return "client_services"
}

// Validate 验证客户服务
func (m *ClientServiceModel) Validate() error {
	if m.ID == "" {
		return errors.New("client service ID is required")
	}
	if m.ClientID == "" {
		return errors.New("client ID is required")
	}
	if m.ServiceType == "" {
		return errors.New("service type is required")
	}
	switch m.Frequency {
	case FrequencyOneTime, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
	default:
		return errors.New("frequency must be One-time, Monthly, Quarterly or Yearly")
	}
	if m.StartDate.IsZero() {
		return errors.New("start date is required")
	}
	if m.EndDate != nil && m.EndDate.Before(m.StartDate) {
		return errors.New("end date must not be before start date")
	}
	if m.AgreedFee.IsNegative() {
		return errors.New("agreed fee must not be negative")
	}
	return nil
}
