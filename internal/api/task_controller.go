package api

import (
	"net/http"

	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/gin-gonic/gin"
)

// TaskController 任务控制器
type TaskController struct {
	taskService service.TaskService
}

// NewTaskController 创建任务控制器
func NewTaskController(taskService service.TaskService) *TaskController {
	return &TaskController{
		taskService: taskService,
	}
}

// taskID 读取并校验路径中的任务 ID
func taskID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if err := utils.ValidateID(id); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid task ID", err.Error())
		return "", false
	}
	return id, true
}

// Create 创建任务
// @Summary      创建任务
// @Description  创建任务并初始化第一个阶段的步骤分配
// @Tags         任务管理
// @Accept       json
// @Produce      json
// @Param        request body service.CreateTaskRequest true "任务信息"
// @Success      201  {object}  Response
// @Failure      400  {object}  ErrorResponse
// @Router       /tasks [post]
// @Security     BearerAuth
func (c *TaskController) Create(ctx *gin.Context) {
	var req service.CreateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	task, err := c.taskService.Create(ctx.Request.Context(), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Created(ctx, task)
}

// Get 获取任务详情
// @Router       /tasks/{id} [get]
func (c *TaskController) Get(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	task, err := c.taskService.Get(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Update 更新任务
// @Router       /tasks/{id} [put]
func (c *TaskController) Update(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	var req service.UpdateTaskRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	task, err := c.taskService.Update(ctx.Request.Context(), id, &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, task)
}

// Delete 删除任务
// @Router       /tasks/{id} [delete]
func (c *TaskController) Delete(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	if err := c.taskService.Delete(ctx.Request.Context(), id); err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, gin.H{"id": id})
}

// CompleteStep 完成当前用户在当前阶段的步骤
// @Summary      完成步骤
// @Description  按顺序完成步骤,全部完成后推进到下一阶段;管理员可通过 user_id 代为完成
// @Tags         工作流
// @Param        id path string true "任务 ID"
// @Param        request body service.CompleteStepRequest false "备注"
// @Success      200  {object}  Response
// @Failure      409  {object}  ErrorResponse
// @Router       /tasks/{id}/complete [post]
// @Security     BearerAuth
func (c *TaskController) CompleteStep(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	var req service.CompleteStepRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
	}

	result, err := c.taskService.CompleteStep(ctx.Request.Context(), id, &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// Reassign 重新分配当前阶段的负责人
// @Router       /tasks/{id}/assignees [put]
func (c *TaskController) Reassign(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	var req service.ReassignRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	assignments, err := c.taskService.Reassign(ctx.Request.Context(), id, &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, assignments)
}

// ChangeStatus 手动变更阶段
// @Router       /tasks/{id}/status [put]
func (c *TaskController) ChangeStatus(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	var req service.ChangeStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := c.taskService.ChangeStatus(ctx.Request.Context(), id, &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, result)
}

// ActiveStep 当前应执行的步骤,没有时返回 null
// @Router       /tasks/{id}/active-step [get]
func (c *TaskController) ActiveStep(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	step, err := c.taskService.ActiveStep(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, step)
}

// Copy 复制任务
// @Router       /tasks/{id}/copy [post]
func (c *TaskController) Copy(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	task, err := c.taskService.Copy(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Created(ctx, task)
}

// AddComment 添加评论
// @Router       /tasks/{id}/comments [post]
func (c *TaskController) AddComment(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	var req service.AddCommentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	comment, err := c.taskService.AddComment(ctx.Request.Context(), id, &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Created(ctx, comment)
}

// BatchComplete 批量完成步骤
// @Summary      批量完成
// @Description  对多个任务分别完成当前用户的步骤,单个失败不影响其他任务
// @Tags         工作流
// @Param        request body service.BatchCompleteRequest true "任务 ID 列表"
// @Success      200  {object}  Response
// @Router       /batch/tasks/complete [post]
// @Security     BearerAuth
func (c *TaskController) BatchComplete(ctx *gin.Context) {
	var req service.BatchCompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	results, err := c.taskService.BatchComplete(ctx.Request.Context(), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, results)
}
