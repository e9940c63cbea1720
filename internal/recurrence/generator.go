package recurrence

import (
	"context"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SystemUser 定时任务写入日志时使用的操作人
const SystemUser = "system"

// Generator 按客户签约服务生成账期任务
type Generator struct {
	db     *gorm.DB
	engine *workflow.Engine
	log    logrus.FieldLogger
}

// NewGenerator 创建账期任务生成器
func NewGenerator(db *gorm.DB, engine *workflow.Engine, log logrus.FieldLogger) *Generator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Generator{db: db, engine: engine, log: log.WithField("job", JobPeriods)}
}

// GeneratePeriods 为截至 today 的每个账期补齐任务,已存在的账期跳过
func (g *Generator) GeneratePeriods(ctx context.Context, today time.Time) (*JobResult, error) {
	today = schedule.DateOf(today)
	result := &JobResult{Job: JobPeriods}

	services, err := repository.NewClientRepository(g.db.WithContext(ctx)).ListRecurringServices()
	if err != nil {
		metrics.RecordJobRun(JobPeriods, err)
		return nil, fmt.Errorf("failed to load client services: %w", err)
	}

	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			metrics.RecordJobRun(JobPeriods, err)
			return result, err
		}
		result.Processed++

		created, skipped, err := g.generateForService(ctx, svc, today)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", svc.ID, err))
			g.log.WithError(err).WithField("client_service_id", svc.ID).Error("Failed to generate period tasks")
			continue
		}
		result.Skipped += skipped
		result.Created += len(created)
		result.TaskIDs = append(result.TaskIDs, created...)
		for range created {
			metrics.RecordTaskCreated(metrics.SourcePeriod)
		}
	}

	var runErr error
	if result.Failed > 0 {
		runErr = fmt.Errorf("%d client services failed", result.Failed)
	}
	metrics.RecordJobRun(JobPeriods, runErr)
	g.log.WithFields(logrus.Fields{
		"date":      today.Format("2006-01-02"),
		"processed": result.Processed,
		"created":   result.Created,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	}).Info("Period generation finished")

	return result, nil
}

// generateForService 在独立事务中为单个签约服务生成账期
func (g *Generator) generateForService(ctx context.Context, svc *model.ClientServiceModel, today time.Time) ([]string, int, error) {
	var created []string
	skipped := 0
	catalog := g.engine.Catalog()

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		// 1. 起始日期:上一账期结束的次日,或服务开始日期
		start := schedule.DateOf(svc.StartDate)
		last, err := repos.Tasks.LastPeriodTask(svc.ID)
		if err != nil {
			return err
		}
		if last != nil && last.PeriodTo != nil {
			start = schedule.DateOf(*last.PeriodTo).AddDate(0, 0, 1)
		}

		// 2. 负责人沿用最近创建的任务
		var assignees []string
		latest, err := repos.Tasks.LatestForService(svc.ID)
		if err != nil {
			return err
		}
		if latest != nil {
			assignees = latest.AssigneeIDs()
		}

		now := g.engine.Now()
		for !start.After(today) {
			if svc.EndDate != nil && start.After(schedule.DateOf(*svc.EndDate)) {
				break
			}
			end, err := schedule.PeriodEnd(start, svc.Frequency)
			if err != nil {
				return err
			}

			exists, err := repos.Tasks.ExistsForPeriod(svc.ID, start, end)
			if err != nil {
				return err
			}
			if exists {
				skipped++
				start = end.AddDate(0, 0, 1)
				continue
			}

			task, ok, err := g.createPeriodTask(tx, svc, start, end, assignees, catalog, now)
			if err != nil {
				return err
			}
			if ok {
				created = append(created, task.ID)
			} else {
				skipped++
			}
			start = end.AddDate(0, 0, 1)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return created, skipped, nil
}

// createPeriodTask 插入账期任务;唯一索引冲突时返回 false
func (g *Generator) createPeriodTask(tx *gorm.DB, svc *model.ClientServiceModel, from, to time.Time, assignees []string, catalog *workflow.Catalog, now time.Time) (*model.TaskModel, bool, error) {
	repos := repository.New(tx)

	svcID := svc.ID
	periodFrom, periodTo := from, to
	due := to.AddDate(0, 0, catalog.DueDaysFor(svc.ServiceType))

	task := &model.TaskModel{
		ID:               uuid.NewString(),
		ClientID:         svc.ClientID,
		ClientServiceID:  &svcID,
		ServiceType:      svc.ServiceType,
		Title:            schedule.PeriodTitle(svc.ServiceType, from, to),
		Status:           catalog.InitialStatus(svc.ServiceType),
		Priority:         model.PriorityMedium,
		AgreedFee:        svc.AgreedFee,
		FeeStatus:        model.FeeStatusUnbilled,
		RecurrencePeriod: schedule.PeriodNone,
		PeriodFrom:       &periodFrom,
		PeriodTo:         &periodTo,
		DueDate:          &due,
		CreatedBy:        SystemUser,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	ok, err := repos.Tasks.CreateIfAbsent(task)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create period task: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	if err := repos.Tasks.ReplaceAssignees(task.ID, assignees, now); err != nil {
		return nil, false, err
	}
	if err := g.engine.InitializeStage(tx, task); err != nil {
		return nil, false, err
	}
	if err := repos.StatusLogs.Save(&model.TaskStatusLogModel{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		NewStatus: task.Status,
		ChangedBy: SystemUser,
		Remarks:   fmt.Sprintf("Generated for period %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		CreatedAt: now,
	}); err != nil {
		return nil, false, err
	}

	g.log.WithFields(logrus.Fields{
		"task_id":           task.ID,
		"client_service_id": svc.ID,
		"status":            task.Status,
	}).Debug("Period task created")
	return task, true, nil
}
