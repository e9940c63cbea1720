package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"gorm.io/gorm"
)

// StatisticsService 统计服务接口
type StatisticsService interface {
	TasksByStatus(ctx context.Context) ([]*CountByKey, error)
	TasksByServiceType(ctx context.Context) ([]*CountByKey, error)
	TasksByFeeStatus(ctx context.Context) ([]*CountByKey, error)
	OverdueCount(ctx context.Context, today time.Time) (int64, error)
	Recurrence(ctx context.Context) (*RecurrenceSummary, error)
	Summary(ctx context.Context, today time.Time) (*Summary, error)
}

// CountByKey 分组计数
type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// RecurrenceSummary 重复任务概况
type RecurrenceSummary struct {
	ActiveCount int64      `json:"active_count"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

// Summary 仪表盘汇总
type Summary struct {
	ByStatus      []*CountByKey      `json:"by_status"`
	ByServiceType []*CountByKey      `json:"by_service_type"`
	ByFeeStatus   []*CountByKey      `json:"by_fee_status"`
	Overdue       int64              `json:"overdue"`
	Recurrence    *RecurrenceSummary `json:"recurrence"`
}

// statisticsService 统计服务实现
type statisticsService struct {
	db *gorm.DB
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB) StatisticsService {
	return &statisticsService{db: db}
}

// TasksByStatus 按状态统计任务
func (s *statisticsService) TasksByStatus(ctx context.Context) ([]*CountByKey, error) {
	return s.countBy(ctx, "status")
}

// TasksByServiceType 按服务类型统计任务
func (s *statisticsService) TasksByServiceType(ctx context.Context) ([]*CountByKey, error) {
	return s.countBy(ctx, "service_type")
}

// TasksByFeeStatus 按费用状态统计任务
func (s *statisticsService) TasksByFeeStatus(ctx context.Context) ([]*CountByKey, error) {
	return s.countBy(ctx, "fee_status")
}

// OverdueCount 统计逾期未结束的任务
func (s *statisticsService) OverdueCount(ctx context.Context, today time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.TaskModel{}).
		Where("due_date < ? AND status NOT IN ?", schedule.DateOf(today),
			[]string{model.TaskStatusCompleted, model.TaskStatusCancelled}).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue tasks: %w", err)
	}
	return count, nil
}

// Recurrence 重复任务概况
func (s *statisticsService) Recurrence(ctx context.Context) (*RecurrenceSummary, error) {
	recs := repository.NewRecurrenceRepository(s.db.WithContext(ctx))
	active, err := recs.CountActive()
	if err != nil {
		return nil, err
	}
	next, err := recs.NextRun()
	if err != nil {
		return nil, err
	}
	return &RecurrenceSummary{ActiveCount: active, NextRunAt: next}, nil
}

// Summary 汇总统计
func (s *statisticsService) Summary(ctx context.Context, today time.Time) (*Summary, error) {
	var (
		out = &Summary{}
		err error
	)
	if out.ByStatus, err = s.TasksByStatus(ctx); err != nil {
		return nil, err
	}
	if out.ByServiceType, err = s.TasksByServiceType(ctx); err != nil {
		return nil, err
	}
	if out.ByFeeStatus, err = s.TasksByFeeStatus(ctx); err != nil {
		return nil, err
	}
	if out.Overdue, err = s.OverdueCount(ctx, today); err != nil {
		return nil, err
	}
	if out.Recurrence, err = s.Recurrence(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// countBy 按列分组计数,column 为内部常量
func (s *statisticsService) countBy(ctx context.Context, column string) ([]*CountByKey, error) {
	var results []struct {
		GroupKey string
		Count    int64
	}
	err := s.db.WithContext(ctx).Model(&model.TaskModel{}).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Order(column).
		Scan(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks by %s: %w", column, err)
	}

	out := make([]*CountByKey, 0, len(results))
	for _, r := range results {
		out = append(out, &CountByKey{Key: r.GroupKey, Count: r.Count})
	}
	return out, nil
}
