package recurrence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 定时任务名称
const (
	JobRecurring = "recurring"
	JobPeriods   = "periods"
)

// JobResult 定时任务执行结果
type JobResult struct {
	Job       string   `json:"job"`
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	TaskIDs   []string `json:"task_ids,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// Job 重复任务生成
type Job struct {
	db     *gorm.DB
	copier *Copier
	log    logrus.FieldLogger
}

// NewJob 创建重复任务生成器
func NewJob(db *gorm.DB, copier *Copier, log logrus.FieldLogger) *Job {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Job{db: db, copier: copier, log: log.WithField("job", JobRecurring)}
}

// RunRecurring 为所有到期的影子记录补齐副本;单条失败不影响其他记录
func (j *Job) RunRecurring(ctx context.Context, now time.Time) (*JobResult, error) {
	now = now.UTC()
	result := &JobResult{Job: JobRecurring}

	due, err := repository.NewRecurrenceRepository(j.db.WithContext(ctx)).FindDue(now)
	if err != nil {
		metrics.RecordJobRun(JobRecurring, err)
		return nil, fmt.Errorf("failed to load due recurrences: %w", err)
	}

	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			metrics.RecordJobRun(JobRecurring, err)
			return result, err
		}
		result.Processed++

		created, err := j.runOne(ctx, rec.ID, now)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.TaskID, err))
			j.log.WithError(err).WithField("task_id", rec.TaskID).Error("Failed to create recurring task")
			continue
		}
		if len(created) == 0 {
			result.Skipped++
		}
		for _, id := range created {
			metrics.RecordTaskCreated(metrics.SourceRecurrence)
			result.TaskIDs = append(result.TaskIDs, id)
		}
		result.Created += len(created)
	}

	var runErr error
	if result.Failed > 0 {
		runErr = fmt.Errorf("%d recurrences failed", result.Failed)
	}
	metrics.RecordJobRun(JobRecurring, runErr)
	j.log.WithFields(logrus.Fields{
		"processed": result.Processed,
		"created":   result.Created,
		"failed":    result.Failed,
	}).Info("Recurring task run finished")

	return result, nil
}

// runOne 在独立事务中处理一条影子记录
func (j *Job) runOne(ctx context.Context, recID string, now time.Time) ([]string, error) {
	var created []string

	err := j.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		// 1. 加锁后重新判断,并发运行时只有一方生效
		rec, err := repos.Recurrences.LockByID(recID)
		if err != nil {
			return err
		}
		if !rec.IsActive || rec.NextRunAt.After(now) {
			return nil
		}

		original, err := repos.Tasks.FindByID(rec.TaskID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOriginalMissing
		}
		if err != nil {
			return err
		}

		// 2. 补齐错过的每一次
		for !rec.NextRunAt.After(now) {
			copied, err := j.copier.Copy(tx, original, CopyOptions{Auto: true, Occurrence: rec.NextRunAt})
			if err != nil {
				return err
			}
			created = append(created, copied.ID)

			next, err := schedule.CalculateNextRun(rec.AnchorDay, rec.NextRunAt, rec.Period)
			if err != nil {
				return err
			}
			rec.NextRunAt = next
		}

		// 3. 记录最近生成时间
		rec.LastAutoCreatedAt = &now
		rec.UpdatedAt = now
		if err := repos.Tasks.UpdateFields(original.ID, map[string]interface{}{
			"last_auto_created_at": now,
		}); err != nil {
			return err
		}
		return repos.Recurrences.Save(rec)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

