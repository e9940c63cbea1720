package api

import (
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
)

// CatalogController 工作流配置控制器
type CatalogController struct {
	engine *workflow.Engine
}

// NewCatalogController 创建工作流配置控制器
func NewCatalogController(engine *workflow.Engine) *CatalogController {
	return &CatalogController{engine: engine}
}

// serviceSteps 单个服务类型的步骤
type serviceSteps struct {
	ServiceType    string   `json:"service_type"`
	Steps          []string `json:"workflow_steps"`
	DefaultDueDays int      `json:"default_due_days"`
}

// Get 当前生效的工作流配置
// @Router       /catalog [get]
func (c *CatalogController) Get(ctx *gin.Context) {
	Success(ctx, c.engine.Catalog())
}

// Steps 指定服务类型的步骤,未配置时返回默认步骤
// @Router       /catalog/{service} [get]
func (c *CatalogController) Steps(ctx *gin.Context) {
	catalog := c.engine.Catalog()
	serviceType := ctx.Param("service")
	Success(ctx, serviceSteps{
		ServiceType:    serviceType,
		Steps:          catalog.StepsFor(serviceType),
		DefaultDueDays: catalog.DueDaysFor(serviceType),
	})
}
