package repository

import (
	"strings"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ClientRepository 客户与签约服务仓储接口
type ClientRepository interface {
	Create(client *model.ClientModel) error
	FindByID(id string) (*model.ClientModel, error)
	FindByPAN(pan string) (*model.ClientModel, error)
	List(search string, page, pageSize int) ([]*model.ClientModel, int64, error)
	CreateService(svc *model.ClientServiceModel) error
	FindServiceByID(id string) (*model.ClientServiceModel, error)
	ListServices(clientID string) ([]*model.ClientServiceModel, error)
	ListRecurringServices() ([]*model.ClientServiceModel, error)
	SetServiceActive(id string, active bool) error
}

type clientRepository struct {
	db *gorm.DB
}

// NewClientRepository 创建客户仓储
func NewClientRepository(db *gorm.DB) ClientRepository {
	return &clientRepository{db: db}
}

func (r *clientRepository) Create(client *model.ClientModel) error {
	return r.db.Create(client).Error
}

func (r *clientRepository) FindByID(id string) (*model.ClientModel, error) {
	var client model.ClientModel
	if err := r.db.Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepository) FindByPAN(pan string) (*model.ClientModel, error) {
	var client model.ClientModel
	if err := r.db.Where("pan = ?", pan).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// List 分页查询客户,search 匹配名称或 PAN
func (r *clientRepository) List(search string, page, pageSize int) ([]*model.ClientModel, int64, error) {
	f := TaskFilter{Page: page, PageSize: pageSize}
	page, pageSize = f.pagination()

	query := r.db.Model(&model.ClientModel{})
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(pan) LIKE ?", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var clients []*model.ClientModel
	err := query.Order("name ASC").Offset((page - 1) * pageSize).Limit(pageSize).Find(&clients).Error
	return clients, total, err
}

func (r *clientRepository) CreateService(svc *model.ClientServiceModel) error {
	return r.db.Omit(clause.Associations).Create(svc).Error
}

func (r *clientRepository) FindServiceByID(id string) (*model.ClientServiceModel, error) {
	var svc model.ClientServiceModel
	if err := r.db.Where("id = ?", id).First(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *clientRepository) ListServices(clientID string) ([]*model.ClientServiceModel, error) {
	var services []*model.ClientServiceModel
	err := r.db.Where("client_id = ?", clientID).Order("start_date ASC").Find(&services).Error
	return services, err
}

// ListRecurringServices 返回需要生成账期任务的有效服务
func (r *clientRepository) ListRecurringServices() ([]*model.ClientServiceModel, error) {
	var services []*model.ClientServiceModel
	err := r.db.Where("is_active = ? AND frequency <> ?", true, model.FrequencyOneTime).
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}

func (r *clientRepository) SetServiceActive(id string, active bool) error {
	result := r.db.Model(&model.ClientServiceModel{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
