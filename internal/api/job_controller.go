package api

import (
	"context"

	"github.com/Zapuzallp/CASUITE-sub000/internal/recurrence"
	"github.com/gin-gonic/gin"
)

// JobRunner 手动触发定时任务
type JobRunner interface {
	RunNow(ctx context.Context, name string) (*recurrence.JobResult, error)
	Jobs() map[string]string
}

// JobController 定时任务控制器
type JobController struct {
	runner JobRunner
}

// NewJobController 创建定时任务控制器
func NewJobController(runner JobRunner) *JobController {
	return &JobController{runner: runner}
}

// List 已注册的定时任务及其 cron 表达式
// @Router       /jobs [get]
func (c *JobController) List(ctx *gin.Context) {
	Success(ctx, c.runner.Jobs())
}

// Run 立即执行定时任务
// @Router       /jobs/{name}/run [post]
func (c *JobController) Run(ctx *gin.Context) {
	result, err := c.runner.RunNow(ctx.Request.Context(), ctx.Param("name"))
	if err != nil && result == nil {
		handleError(ctx, err)
		return
	}
	// 部分失败时仍返回执行结果
	Success(ctx, result)
}
