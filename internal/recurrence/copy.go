package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const copiedSuffix = " (Copied)"

// CopyOptions 复制选项
type CopyOptions struct {
	Auto       bool      // 由重复任务定时生成
	Occurrence time.Time // 自动复制对应的运行时间,同时作为截止日期
	CreatedBy  string
}

// Copier 任务复制器
type Copier struct {
	engine *workflow.Engine
}

// NewCopier 创建任务复制器
func NewCopier(engine *workflow.Engine) *Copier {
	return &Copier{engine: engine}
}

// CopyTitle 计算副本标题
func CopyTitle(original *model.TaskModel, opts CopyOptions) string {
	if opts.Auto {
		base := strings.ReplaceAll(original.Title, copiedSuffix, "")
		return base + " - " + schedule.OccurrenceLabel(original.RecurrencePeriod, opts.Occurrence)
	}
	return original.Title + copiedSuffix
}

// Copy 在 tx 中复制任务,返回新任务
func (c *Copier) Copy(tx *gorm.DB, original *model.TaskModel, opts CopyOptions) (*model.TaskModel, error) {
	repos := repository.New(tx)
	catalog := c.engine.Catalog()
	now := c.engine.Now()

	createdBy := opts.CreatedBy
	if createdBy == "" {
		createdBy = original.CreatedBy
	}

	// 1. 构造新任务
	copied := &model.TaskModel{
		ID:               uuid.NewString(),
		ClientID:         original.ClientID,
		ClientServiceID:  original.ClientServiceID,
		ServiceType:      original.ServiceType,
		Title:            CopyTitle(original, opts),
		Description:      original.Description,
		Priority:         original.Priority,
		Status:           catalog.InitialStatus(original.ServiceType),
		AgreedFee:        original.AgreedFee,
		FeeStatus:        model.FeeStatusUnbilled,
		IsRecurring:      original.IsRecurring,
		RecurrencePeriod: original.RecurrencePeriod,
		CreatedBy:        createdBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if copied.Priority == "" {
		copied.Priority = model.PriorityMedium
	}
	if opts.Auto {
		due := schedule.DateOf(opts.Occurrence)
		copied.DueDate = &due
		copied.IsRecurring = false
		copied.RecurrencePeriod = schedule.PeriodNone
	}
	if copied.RecurrencePeriod == "" {
		copied.RecurrencePeriod = schedule.PeriodNone
	}

	if err := repos.Tasks.Create(copied); err != nil {
		return nil, fmt.Errorf("failed to create copy: %w", err)
	}

	// 2. 负责人
	assignees, err := repos.Tasks.FindAssignees(original.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignees: %w", err)
	}
	ids := make([]string, 0, len(assignees))
	for _, a := range assignees {
		ids = append(ids, a.UserID)
	}
	if err := repos.Tasks.ReplaceAssignees(copied.ID, ids, now); err != nil {
		return nil, fmt.Errorf("failed to copy assignees: %w", err)
	}

	// 3. 分配记录:保留阶段与顺序,重置完成状态
	rows, err := repos.Assignments.ListByTask(original.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignments: %w", err)
	}
	for _, r := range rows {
		if err := repos.Assignments.CreateIfAbsent(&model.TaskAssignmentStatusModel{
			ID:            uuid.NewString(),
			TaskID:        copied.ID,
			UserID:        r.UserID,
			StatusContext: r.StatusContext,
			Order:         r.Order,
			CreatedAt:     now,
			UpdatedAt:     now,
		}); err != nil {
			return nil, fmt.Errorf("failed to copy assignment: %w", err)
		}
	}
	if err := c.engine.InitializeStage(tx, copied); err != nil {
		return nil, err
	}

	// 4. 扩展属性
	attrs, err := repos.Tasks.FindExtendedAttributes(original.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load extended attributes: %w", err)
	}
	if attrs != nil {
		cloned := attrs.Clone(uuid.NewString(), copied.ID)
		cloned.CreatedAt = now
		cloned.UpdatedAt = now
		if err := repos.Tasks.SaveExtendedAttributes(cloned); err != nil {
			return nil, fmt.Errorf("failed to copy extended attributes: %w", err)
		}
	}

	// 5. 状态日志
	if err := repos.StatusLogs.Save(&model.TaskStatusLogModel{
		ID:        uuid.NewString(),
		TaskID:    copied.ID,
		OldStatus: "",
		NewStatus: copied.Status,
		ChangedBy: createdBy,
		Remarks:   "Copied from task " + original.ID,
		CreatedAt: now,
	}); err != nil {
		return nil, fmt.Errorf("failed to write status log: %w", err)
	}

	// 6. 手动复制保留重复设置
	if !opts.Auto {
		if err := Sync(tx, copied, now); err != nil {
			return nil, err
		}
	}

	return copied, nil
}
