package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type requestInfoKey struct{}

// RequestInfo 请求来源信息,由 API 中间件写入 context
type RequestInfo struct {
	RequestID string
	IP        string
	UserAgent string
}

// WithRequestInfo 将请求信息写入 context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFrom 从 context 获取请求信息
func RequestInfoFrom(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, userID string, action string, resourceType string, resourceID string, details interface{}) error
	ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error)
	List(ctx context.Context, filter repository.AuditLogFilter) ([]*model.AuditLogModel, int64, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
	log       logrus.FieldLogger
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository, log logrus.FieldLogger) AuditLogService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &auditLogService{
		auditRepo: auditRepo,
		log:       log,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	userID string,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	// 序列化详情
	var detailsJSON []byte
	switch d := details.(type) {
	case nil:
	case string:
		detailsJSON = []byte(d)
	default:
		var err error
		if detailsJSON, err = json.Marshal(d); err != nil {
			return err
		}
	}

	info := RequestInfoFrom(ctx)
	return s.auditRepo.Save(&model.AuditLogModel{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		RequestID:    info.RequestID,
		IP:           info.IP,
		UserAgent:    info.UserAgent,
		Details:      string(detailsJSON),
		CreatedAt:    time.Now().UTC(),
	})
}

// ListByResource 查询某资源的审计日志
func (s *auditLogService) ListByResource(ctx context.Context, resourceType, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(resourceType, resourceID)
}

// List 分页查询审计日志
func (s *auditLogService) List(ctx context.Context, filter repository.AuditLogFilter) ([]*model.AuditLogModel, int64, error) {
	return s.auditRepo.List(filter)
}

// record 记录审计日志,失败只写日志不影响业务
func record(ctx context.Context, svc AuditLogService, log logrus.FieldLogger, userID, action, resourceType, resourceID string, details interface{}) {
	if svc == nil || userID == "" {
		return
	}
	if err := svc.RecordAction(ctx, userID, action, resourceType, resourceID, details); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"action":        action,
			"resource_type": resourceType,
			"resource_id":   resourceID,
		}).Warn("Failed to record audit log")
	}
}
