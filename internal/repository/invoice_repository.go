package repository

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InvoiceRepository 发票与收款仓储接口
type InvoiceRepository interface {
	Create(invoice *model.InvoiceModel) error
	FindByID(id string) (*model.InvoiceModel, error)
	LockByID(id string) (*model.InvoiceModel, error)
	List(clientID, status string, page, pageSize int) ([]*model.InvoiceModel, int64, error)
	UpdateStatus(id, status string, at time.Time) error
	AddItem(item *model.InvoiceItemModel) error
	FindItems(invoiceID string) ([]model.InvoiceItemModel, error)
	CreatePayment(payment *model.PaymentModel) error
	FindPayment(id string) (*model.PaymentModel, error)
	FindPayments(invoiceID string) ([]model.PaymentModel, error)
	UpdatePayment(payment *model.PaymentModel) error
	SetTaskFeeStatus(taskIDs []string, feeStatus string, at time.Time) error
}

type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建发票仓储
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

// Create 创建发票及明细
func (r *invoiceRepository) Create(invoice *model.InvoiceModel) error {
	return r.db.Omit("Payments").Create(invoice).Error
}

// FindByID 查找发票(含明细与收款)
func (r *invoiceRepository) FindByID(id string) (*model.InvoiceModel, error) {
	var invoice model.InvoiceModel
	err := r.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("payment_date ASC")
	}).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// LockByID 加锁读取发票(不含关联)
func (r *invoiceRepository) LockByID(id string) (*model.InvoiceModel, error) {
	var invoice model.InvoiceModel
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// List 分页查询发票
func (r *invoiceRepository) List(clientID, status string, page, pageSize int) ([]*model.InvoiceModel, int64, error) {
	f := TaskFilter{Page: page, PageSize: pageSize}
	page, pageSize = f.pagination()

	query := r.db.Model(&model.InvoiceModel{})
	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []*model.InvoiceModel
	err := query.Order("invoice_date DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&invoices).Error
	return invoices, total, err
}

func (r *invoiceRepository) UpdateStatus(id, status string, at time.Time) error {
	return r.db.Model(&model.InvoiceModel{}).Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": at}).Error
}

func (r *invoiceRepository) AddItem(item *model.InvoiceItemModel) error {
	return r.db.Create(item).Error
}

func (r *invoiceRepository) FindItems(invoiceID string) ([]model.InvoiceItemModel, error) {
	var items []model.InvoiceItemModel
	err := r.db.Where("invoice_id = ?", invoiceID).Order("created_at ASC").Find(&items).Error
	return items, err
}

func (r *invoiceRepository) CreatePayment(payment *model.PaymentModel) error {
	return r.db.Create(payment).Error
}

func (r *invoiceRepository) FindPayment(id string) (*model.PaymentModel, error) {
	var payment model.PaymentModel
	if err := r.db.Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *invoiceRepository) FindPayments(invoiceID string) ([]model.PaymentModel, error) {
	var payments []model.PaymentModel
	err := r.db.Where("invoice_id = ?", invoiceID).Order("payment_date ASC").Find(&payments).Error
	return payments, err
}

func (r *invoiceRepository) UpdatePayment(payment *model.PaymentModel) error {
	return r.db.Save(payment).Error
}

// SetTaskFeeStatus 批量更新任务费用状态
func (r *invoiceRepository) SetTaskFeeStatus(taskIDs []string, feeStatus string, at time.Time) error {
	if len(taskIDs) == 0 {
		return nil
	}
	return r.db.Model(&model.TaskModel{}).Where("id IN ?", taskIDs).
		Updates(map[string]interface{}{"fee_status": feeStatus, "updated_at": at}).Error
}
