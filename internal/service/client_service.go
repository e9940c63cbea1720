package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ClientService 客户与签约服务接口
type ClientService interface {
	CreateClient(ctx context.Context, req *CreateClientRequest) (*model.ClientModel, error)
	GetClient(ctx context.Context, id string) (*model.ClientModel, error)
	ListClients(ctx context.Context, search string, page, pageSize int) ([]*model.ClientModel, int64, error)
	CreateEngagement(ctx context.Context, clientID string, req *CreateEngagementRequest) (*model.ClientServiceModel, error)
	ListEngagements(ctx context.Context, clientID string) ([]*model.ClientServiceModel, error)
	SetEngagementActive(ctx context.Context, id string, active bool) error
}

// CreateClientRequest 创建客户请求
type CreateClientRequest struct {
	Name               string `json:"name" binding:"required"`
	PAN                string `json:"pan" binding:"required"`
	PrimaryContactName string `json:"primary_contact_name"`
	Email              string `json:"email" binding:"omitempty,email"`
	PhoneNumber        string `json:"phone_number"`
	ClientType         string `json:"client_type"`
	Status             string `json:"status"`
	DIN                string `json:"din"`
	AssignedCA         string `json:"assigned_ca"`
}

// CreateEngagementRequest 创建签约服务请求
type CreateEngagementRequest struct {
	ServiceType string          `json:"service_type" binding:"required"`
	Frequency   string          `json:"frequency" binding:"required,oneof=One-time Monthly Quarterly Yearly"`
	StartDate   time.Time       `json:"start_date" binding:"required"`
	EndDate     *time.Time      `json:"end_date"`
	AgreedFee   decimal.Decimal `json:"agreed_fee"`
	Remarks     string          `json:"remarks"`
}

type clientService struct {
	db          *gorm.DB
	auditLogSvc AuditLogService
	log         logrus.FieldLogger
}

// NewClientService 创建客户服务
func NewClientService(db *gorm.DB, auditLogSvc AuditLogService, log logrus.FieldLogger) ClientService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &clientService{db: db, auditLogSvc: auditLogSvc, log: log}
}

// CreateClient 创建客户,PAN 唯一
func (s *clientService) CreateClient(ctx context.Context, req *CreateClientRequest) (*model.ClientModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}

	// 1. 校验
	pan := strings.ToUpper(strings.TrimSpace(req.PAN))
	if err := utils.ValidatePAN(pan); err != nil {
		return nil, invalid("%v", err)
	}
	if err := utils.ValidateTitle(req.Name); err != nil {
		return nil, invalid("%v", err)
	}

	now := time.Now().UTC()
	client := &model.ClientModel{
		ID:                 uuid.NewString(),
		Name:               strings.TrimSpace(req.Name),
		PrimaryContactName: strings.TrimSpace(req.PrimaryContactName),
		PAN:                pan,
		Email:              strings.TrimSpace(req.Email),
		PhoneNumber:        strings.TrimSpace(req.PhoneNumber),
		ClientType:         req.ClientType,
		Status:             req.Status,
		DIN:                strings.TrimSpace(req.DIN),
		AssignedCA:         req.AssignedCA,
		CreatedBy:          actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if client.Status == "" {
		client.Status = model.ClientStatusProspect
	}
	if err := client.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	// 2. PAN 唯一
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clients := repository.NewClientRepository(tx)
		if _, err := clients.FindByPAN(pan); err == nil {
			return ErrDuplicatePAN
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return clients.Create(client)
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "create", "client", client.ID, map[string]interface{}{"pan": pan})
	return client, nil
}

// GetClient 获取客户
func (s *clientService) GetClient(ctx context.Context, id string) (*model.ClientModel, error) {
	client, err := repository.NewClientRepository(s.db.WithContext(ctx)).FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	return client, err
}

// ListClients 分页查询客户
func (s *clientService) ListClients(ctx context.Context, search string, page, pageSize int) ([]*model.ClientModel, int64, error) {
	return repository.NewClientRepository(s.db.WithContext(ctx)).List(search, page, pageSize)
}

// CreateEngagement 为客户创建签约服务
func (s *clientService) CreateEngagement(ctx context.Context, clientID string, req *CreateEngagementRequest) (*model.ClientServiceModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	svc := &model.ClientServiceModel{
		ID:          uuid.NewString(),
		ClientID:    clientID,
		ServiceType: strings.TrimSpace(req.ServiceType),
		Frequency:   req.Frequency,
		StartDate:   schedule.DateOf(req.StartDate),
		AgreedFee:   req.AgreedFee,
		IsActive:    true,
		Remarks:     utils.SanitizeString(req.Remarks),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.EndDate != nil {
		end := schedule.DateOf(*req.EndDate)
		svc.EndDate = &end
	}
	if err := svc.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		clients := repository.NewClientRepository(tx)
		if _, err := clients.FindByID(clientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return err
		}
		return clients.CreateService(svc)
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "create", "client_service", svc.ID, map[string]interface{}{
		"client_id":    clientID,
		"service_type": svc.ServiceType,
		"frequency":    svc.Frequency,
	})
	s.log.WithFields(logrus.Fields{"client_service_id": svc.ID, "user_id": actor.ID}).Info("Client service created")
	return svc, nil
}

// ListEngagements 列出客户的签约服务
func (s *clientService) ListEngagements(ctx context.Context, clientID string) ([]*model.ClientServiceModel, error) {
	clients := repository.NewClientRepository(s.db.WithContext(ctx))
	if _, err := clients.FindByID(clientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return clients.ListServices(clientID)
}

// SetEngagementActive 启用或停用签约服务
func (s *clientService) SetEngagementActive(ctx context.Context, id string, active bool) error {
	actor, err := writerFrom(ctx)
	if err != nil {
		return err
	}
	err = repository.NewClientRepository(s.db.WithContext(ctx)).SetServiceActive(id, active)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrEngagementMissing
	}
	if err != nil {
		return err
	}

	action := "deactivate"
	if active {
		action = "activate"
	}
	record(ctx, s.auditLogSvc, s.log, actor.ID, action, "client_service", id, nil)
	return nil
}
