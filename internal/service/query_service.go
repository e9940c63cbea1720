package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"gorm.io/gorm"
)

// QueryService 查询服务接口
type QueryService interface {
	ListTasks(ctx context.Context, filter *repository.TaskFilter) ([]*model.TaskModel, int64, error)
	GetAssignments(ctx context.Context, taskID string) ([]model.TaskAssignmentStatusModel, error)
	GetStatusLogs(ctx context.Context, taskID string) ([]*model.TaskStatusLogModel, error)
	GetComments(ctx context.Context, taskID string) ([]*model.TaskCommentModel, error)
	MyQueue(ctx context.Context, userID string) ([]*QueueItem, error)
}

// QueueItem 待办队列条目:用户为当前阶段的活动步骤
type QueueItem struct {
	Task       *model.TaskModel                 `json:"task"`
	Assignment *model.TaskAssignmentStatusModel `json:"assignment"`
	DueState   string                           `json:"due_state,omitempty"`
}

// queryService 查询服务实现
type queryService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewQueryService 创建查询服务
func NewQueryService(db *gorm.DB, now func() time.Time) QueryService {
	if now == nil {
		now = time.Now
	}
	return &queryService{db: db, now: now}
}

// ListTasks 列出任务
func (s *queryService) ListTasks(ctx context.Context, filter *repository.TaskFilter) ([]*model.TaskModel, int64, error) {
	if filter == nil {
		filter = &repository.TaskFilter{}
	}
	// 1. 校验排序参数
	if filter.SortBy != "" {
		if err := utils.ValidateSortField(filter.SortBy, repository.TaskSortFields...); err != nil {
			return nil, 0, invalid("%v", err)
		}
	}
	if filter.SortOrder != "" {
		if err := utils.ValidateSortOrder(filter.SortOrder); err != nil {
			return nil, 0, invalid("%v", err)
		}
	}
	if filter.PageSize > repository.MaxPageSize {
		return nil, 0, invalid("page_size must not exceed %d", repository.MaxPageSize)
	}

	// 2. 查询
	return repository.NewTaskRepository(s.db.WithContext(ctx)).FindByFilter(filter)
}

// GetAssignments 获取任务全部阶段的分配记录
func (s *queryService) GetAssignments(ctx context.Context, taskID string) ([]model.TaskAssignmentStatusModel, error) {
	repos := repository.New(s.db.WithContext(ctx))
	if err := s.ensureTask(repos, taskID); err != nil {
		return nil, err
	}
	return repos.Assignments.ListByTask(taskID)
}

// GetStatusLogs 获取状态变更历史
func (s *queryService) GetStatusLogs(ctx context.Context, taskID string) ([]*model.TaskStatusLogModel, error) {
	repos := repository.New(s.db.WithContext(ctx))
	if err := s.ensureTask(repos, taskID); err != nil {
		return nil, err
	}
	return repos.StatusLogs.FindByTaskID(taskID)
}

// GetComments 获取任务评论
func (s *queryService) GetComments(ctx context.Context, taskID string) ([]*model.TaskCommentModel, error) {
	repos := repository.New(s.db.WithContext(ctx))
	if err := s.ensureTask(repos, taskID); err != nil {
		return nil, err
	}
	return repos.Comments.FindByTaskID(taskID)
}

// MyQueue 返回轮到 userID 处理的任务,按截止日期排序
func (s *queryService) MyQueue(ctx context.Context, userID string) ([]*QueueItem, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	repos := repository.New(s.db.WithContext(ctx))

	// 1. 用户在当前阶段未完成的记录
	rows, err := repos.Assignments.PendingForUser(userID)
	if err != nil {
		return nil, err
	}

	// 2. 只保留前序已全部完成的记录
	today := s.now()
	items := make([]*QueueItem, 0, len(rows))
	for i := range rows {
		row := rows[i]
		before, err := repos.Assignments.CountPendingBefore(row.TaskID, row.StatusContext, row.Order)
		if err != nil {
			return nil, err
		}
		if before > 0 {
			continue
		}
		task, err := repos.Tasks.FindByID(row.TaskID)
		if err != nil {
			return nil, err
		}
		if task.IsTerminal() {
			continue
		}
		items = append(items, &QueueItem{
			Task:       task,
			Assignment: &row,
			DueState:   schedule.DueState(task.DueDate, today),
		})
	}

	// 3. 有截止日期的在前,早到期的在前
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Task.DueDate, items[j].Task.DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return items, nil
}

func (s *queryService) ensureTask(repos *repository.Repositories, taskID string) error {
	_, err := repos.Tasks.FindByID(taskID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return workflow.ErrTaskNotFound
	}
	return err
}
