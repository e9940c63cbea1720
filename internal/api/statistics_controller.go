package api

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// StatisticsController 统计控制器
type StatisticsController struct {
	statsService service.StatisticsService
	now          func() time.Time
}

// NewStatisticsController 创建统计控制器
func NewStatisticsController(statsService service.StatisticsService, now func() time.Time) *StatisticsController {
	if now == nil {
		now = time.Now
	}
	return &StatisticsController{statsService: statsService, now: now}
}

// Summary 仪表盘汇总
// @Router       /statistics/summary [get]
func (c *StatisticsController) Summary(ctx *gin.Context) {
	summary, err := c.statsService.Summary(ctx.Request.Context(), c.now().UTC())
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, summary)
}

// ByStatus 按阶段统计
// @Router       /statistics/tasks/by-status [get]
func (c *StatisticsController) ByStatus(ctx *gin.Context) {
	counts, err := c.statsService.TasksByStatus(ctx.Request.Context())
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, counts)
}

// ByServiceType 按服务类型统计
// @Router       /statistics/tasks/by-service [get]
func (c *StatisticsController) ByServiceType(ctx *gin.Context) {
	counts, err := c.statsService.TasksByServiceType(ctx.Request.Context())
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, counts)
}
