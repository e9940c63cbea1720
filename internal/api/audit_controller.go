package api

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// AuditController 审计日志控制器
type AuditController struct {
	auditLogSvc service.AuditLogService
}

// NewAuditController 创建审计日志控制器
func NewAuditController(auditLogSvc service.AuditLogService) *AuditController {
	return &AuditController{auditLogSvc: auditLogSvc}
}

type listAuditQuery struct {
	UserID       string    `form:"user_id"`
	Action       string    `form:"action"`
	ResourceType string    `form:"resource_type"`
	ResourceID   string    `form:"resource_id"`
	Since        time.Time `form:"since" time_format:"2006-01-02"`
	pageQuery
}

// List 审计日志列表
// @Router       /audit-logs [get]
func (c *AuditController) List(ctx *gin.Context) {
	var query listAuditQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		badRequest(ctx, err)
		return
	}

	filter := repository.AuditLogFilter{
		UserID:       query.UserID,
		Action:       query.Action,
		ResourceType: query.ResourceType,
		ResourceID:   query.ResourceID,
		Page:         query.Page,
		PageSize:     query.PageSize,
	}
	if !query.Since.IsZero() {
		filter.Since = &query.Since
	}

	logs, total, err := c.auditLogSvc.List(ctx.Request.Context(), filter)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Paginated(ctx, logs, query.Page, query.PageSize, total)
}
