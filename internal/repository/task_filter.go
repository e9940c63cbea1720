package repository

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"gorm.io/gorm"
)

// 分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TaskSortFields 允许排序的任务字段
var TaskSortFields = []string{"created_at", "updated_at", "due_date", "priority", "status", "title", "service_type"}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	Status          string
	ServiceType     string
	ClientID        string
	ClientServiceID string
	AssigneeID      string
	Priority        string
	FeeStatus       string
	Search          string
	DueFrom         *time.Time
	DueTo           *time.Time
	OverdueAsOf     *time.Time // 截止日期早于该日且未结束
	SortBy          string
	SortOrder       string
	Page            int
	PageSize        int
}

func (f *TaskFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ServiceType != "" {
		query = query.Where("service_type = ?", f.ServiceType)
	}
	if f.ClientID != "" {
		query = query.Where("client_id = ?", f.ClientID)
	}
	if f.ClientServiceID != "" {
		query = query.Where("client_service_id = ?", f.ClientServiceID)
	}
	if f.AssigneeID != "" {
		query = query.Where("id IN (?)",
			query.Session(&gorm.Session{NewDB: true}).
				Model(&model.TaskAssigneeModel{}).
				Select("task_id").
				Where("user_id = ?", f.AssigneeID))
	}
	if f.Priority != "" {
		query = query.Where("priority = ?", f.Priority)
	}
	if f.FeeStatus != "" {
		query = query.Where("fee_status = ?", f.FeeStatus)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}
	if f.DueFrom != nil {
		query = query.Where("due_date >= ?", *f.DueFrom)
	}
	if f.DueTo != nil {
		query = query.Where("due_date <= ?", *f.DueTo)
	}
	if f.OverdueAsOf != nil {
		query = query.Where("due_date < ? AND status NOT IN ?", *f.OverdueAsOf,
			[]string{model.TaskStatusCompleted, model.TaskStatusCancelled})
	}
	return query
}

func (f *TaskFilter) pagination() (int, int) {
	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func (f *TaskFilter) orderClause() string {
	field := f.SortBy
	if utils.ValidateSortField(field, TaskSortFields...) != nil {
		field = "created_at"
	}
	return fmt.Sprintf("%s %s", field, utils.SanitizeSortOrder(f.SortOrder))
}
