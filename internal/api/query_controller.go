package api

import (
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// QueryController 查询控制器
type QueryController struct {
	queryService service.QueryService
	now          func() time.Time
}

// NewQueryController 创建查询控制器
func NewQueryController(queryService service.QueryService, now func() time.Time) *QueryController {
	if now == nil {
		now = time.Now
	}
	return &QueryController{
		queryService: queryService,
		now:          now,
	}
}

// listTasksQuery 任务列表查询参数
type listTasksQuery struct {
	Status          string    `form:"status"`
	ServiceType     string    `form:"service_type"`
	ClientID        string    `form:"client_id"`
	ClientServiceID string    `form:"client_service_id"`
	AssigneeID      string    `form:"assignee_id"`
	Priority        string    `form:"priority" binding:"omitempty,oneof=High Medium Low"`
	FeeStatus       string    `form:"fee_status"`
	Search          string    `form:"q"`
	DueFrom         time.Time `form:"due_from" time_format:"2006-01-02"`
	DueTo           time.Time `form:"due_to" time_format:"2006-01-02"`
	Overdue         bool      `form:"overdue"`
	SortBy          string    `form:"sort_by"`
	SortOrder       string    `form:"order"`
	Page            int       `form:"page" binding:"omitempty,min=1"`
	PageSize        int       `form:"page_size" binding:"omitempty,min=1"`
}

func (q *listTasksQuery) filter(today time.Time) *repository.TaskFilter {
	f := &repository.TaskFilter{
		Status:          q.Status,
		ServiceType:     q.ServiceType,
		ClientID:        q.ClientID,
		ClientServiceID: q.ClientServiceID,
		AssigneeID:      q.AssigneeID,
		Priority:        q.Priority,
		FeeStatus:       q.FeeStatus,
		Search:          q.Search,
		SortBy:          q.SortBy,
		SortOrder:       q.SortOrder,
		Page:            q.Page,
		PageSize:        q.PageSize,
	}
	if !q.DueFrom.IsZero() {
		f.DueFrom = &q.DueFrom
	}
	if !q.DueTo.IsZero() {
		f.DueTo = &q.DueTo
	}
	if q.Overdue {
		f.OverdueAsOf = &today
	}
	return f
}

// ListTasks 列出任务
// @Summary      获取任务列表
// @Description  分页获取任务列表,支持按阶段、服务类型、客户、负责人过滤
// @Tags         查询统计
// @Param        status query string false "当前阶段"
// @Param        service_type query string false "服务类型"
// @Param        assignee_id query string false "负责人"
// @Param        overdue query bool false "仅逾期"
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Param        sort_by query string false "排序字段" default(created_at)
// @Param        order query string false "排序方向" Enums(asc, desc) default(desc)
// @Success      200  {object}  PaginatedResponse
// @Router       /tasks [get]
// @Security     BearerAuth
func (c *QueryController) ListTasks(ctx *gin.Context) {
	var query listTasksQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		badRequest(ctx, err)
		return
	}

	filter := query.filter(c.now().UTC())
	tasks, total, err := c.queryService.ListTasks(ctx.Request.Context(), filter)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Paginated(ctx, tasks, filter.Page, filter.PageSize, total)
}

// GetAssignments 获取任务的步骤分配
// @Router       /tasks/{id}/assignments [get]
func (c *QueryController) GetAssignments(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	assignments, err := c.queryService.GetAssignments(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, assignments)
}

// GetHistory 获取阶段变更历史
// @Router       /tasks/{id}/history [get]
func (c *QueryController) GetHistory(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	logs, err := c.queryService.GetStatusLogs(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, logs)
}

// GetComments 获取评论
// @Router       /tasks/{id}/comments [get]
func (c *QueryController) GetComments(ctx *gin.Context) {
	id, ok := taskID(ctx)
	if !ok {
		return
	}

	comments, err := c.queryService.GetComments(ctx.Request.Context(), id)
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, comments)
}

// MyQueue 当前用户的待办队列
// @Router       /me/queue [get]
func (c *QueryController) MyQueue(ctx *gin.Context) {
	queue, err := c.queryService.MyQueue(ctx.Request.Context(), ctx.GetString("user_id"))
	if err != nil {
		handleError(ctx, err)
		return
	}

	Success(ctx, queue)
}
