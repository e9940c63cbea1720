package recurrence

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrOriginalMissing 影子记录指向的任务不存在
var ErrOriginalMissing = errors.New("recurring task no longer exists")

// Enabled 任务是否开启重复
func Enabled(task *model.TaskModel) bool {
	return task.IsRecurring && task.RecurrencePeriod != "" && task.RecurrencePeriod != schedule.PeriodNone
}

// Sync 保存任务后同步其重复影子记录
//
// 关闭重复时删除影子;开启时以创建日为锚定日,从创建时间、上次自动生成时间
// 与 now 中最晚者计算下次运行时间;周期变化时以 now 为基准重新计算;其余情况保持不变。
func Sync(tx *gorm.DB, task *model.TaskModel, now time.Time) error {
	recs := repository.NewRecurrenceRepository(tx)

	if !Enabled(task) {
		return recs.DeleteByTaskID(task.ID)
	}
	if !schedule.IsRecurringPeriod(task.RecurrencePeriod) {
		return fmt.Errorf("%w: %q", schedule.ErrInvalidPeriod, task.RecurrencePeriod)
	}

	rec, err := recs.FindByTaskID(task.ID)
	if err != nil {
		return fmt.Errorf("failed to load recurrence: %w", err)
	}

	now = now.UTC()
	if rec == nil {
		created := task.CreatedAt
		if created.IsZero() {
			created = now
		}
		created = created.UTC()
		anchor := created.Day()

		// 重新开启时不回溯已经生成过的周期
		base := created
		if task.LastAutoCreatedAt != nil && task.LastAutoCreatedAt.UTC().After(base) {
			base = task.LastAutoCreatedAt.UTC()
		}
		if now.After(base) {
			base = now
		}
		next, err := schedule.CalculateNextRun(anchor, base, task.RecurrencePeriod)
		if err != nil {
			return err
		}
		return recs.Save(&model.TaskRecurrenceModel{
			ID:        uuid.NewString(),
			TaskID:    task.ID,
			Period:    task.RecurrencePeriod,
			AnchorDay: anchor,
			NextRunAt: next,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	if rec.Period == task.RecurrencePeriod && rec.IsActive {
		return nil
	}

	next, err := schedule.CalculateNextRun(rec.AnchorDay, now, task.RecurrencePeriod)
	if err != nil {
		return err
	}
	rec.Period = task.RecurrencePeriod
	rec.NextRunAt = next
	rec.IsActive = true
	rec.UpdatedAt = now
	return recs.Save(rec)
}
