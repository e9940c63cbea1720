package api

import (
	"strings"

	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// ClientController 客户控制器
type ClientController struct {
	clientService service.ClientService
}

// NewClientController 创建客户控制器
func NewClientController(clientService service.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

// pageQuery 分页参数
type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1"`
}

// Create 创建客户
// @Router       /clients [post]
func (c *ClientController) Create(ctx *gin.Context) {
	var req service.CreateClientRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	client, err := c.clientService.CreateClient(ctx.Request.Context(), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Created(ctx, client)
}

// Get 获取客户
// @Router       /clients/{id} [get]
func (c *ClientController) Get(ctx *gin.Context) {
	client, err := c.clientService.GetClient(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, client)
}

// List 客户列表,q 按名称或 PAN 搜索
// @Router       /clients [get]
func (c *ClientController) List(ctx *gin.Context) {
	var page pageQuery
	if err := ctx.ShouldBindQuery(&page); err != nil {
		badRequest(ctx, err)
		return
	}

	search := strings.TrimSpace(ctx.Query("q"))
	clients, total, err := c.clientService.ListClients(ctx.Request.Context(), search, page.Page, page.PageSize)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Paginated(ctx, clients, page.Page, page.PageSize, total)
}

// CreateEngagement 为客户签约服务
// @Router       /clients/{id}/services [post]
func (c *ClientController) CreateEngagement(ctx *gin.Context) {
	var req service.CreateEngagementRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	svc, err := c.clientService.CreateEngagement(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Created(ctx, svc)
}

// ListEngagements 客户的签约服务
// @Router       /clients/{id}/services [get]
func (c *ClientController) ListEngagements(ctx *gin.Context) {
	services, err := c.clientService.ListEngagements(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, services)
}

// setActiveRequest 启停签约服务
type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetEngagementActive 启用或停用签约服务
// @Router       /client-services/{id}/active [put]
func (c *ClientController) SetEngagementActive(ctx *gin.Context) {
	var req setActiveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	id := ctx.Param("id")
	if err := c.clientService.SetEngagementActive(ctx.Request.Context(), id, *req.Active); err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, gin.H{"id": id, "is_active": *req.Active})
}
