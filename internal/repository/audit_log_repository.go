package repository

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
)

// AuditLogFilter 审计日志查询条件
type AuditLogFilter struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	Since        *time.Time
	Page         int
	PageSize     int
}

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Save(log *model.AuditLogModel) error
	FindByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error)
	List(filter AuditLogFilter) ([]*model.AuditLogModel, int64, error)
}

// auditLogRepository 审计日志仓储实现
type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 追加审计日志
func (r *auditLogRepository) Save(log *model.AuditLogModel) error {
	return r.db.Create(log).Error
}

// FindByResource 查找某资源的全部审计日志(新的在前)
func (r *auditLogRepository) FindByResource(resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at DESC").
		Find(&logs).Error
	return logs, err
}

// List 按条件分页查询
func (r *auditLogRepository) List(filter AuditLogFilter) ([]*model.AuditLogModel, int64, error) {
	query := r.db.Model(&model.AuditLogModel{})
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != "" {
		query = query.Where("resource_id = ?", filter.ResourceID)
	}
	if filter.Since != nil {
		query = query.Where("created_at >= ?", *filter.Since)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	pf := TaskFilter{Page: filter.Page, PageSize: filter.PageSize}
	page, pageSize := pf.pagination()

	var logs []*model.AuditLogModel
	err := query.Order("created_at DESC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&logs).Error
	return logs, total, err
}
