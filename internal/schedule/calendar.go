package schedule

import (
	"errors"
	"fmt"
	"time"
)

// 重复周期
const (
	PeriodNone      = "None"
	PeriodOneTime   = "One-time"
	PeriodMonthly   = "Monthly"
	PeriodQuarterly = "Quarterly"
	PeriodYearly    = "Yearly"
)

// 到期状态
const (
	DueOverdue  = "overdue"
	DueToday    = "due_today"
	DueNotDue   = "not_due"
	DueNotDated = ""
)

// ErrInvalidPeriod 无效的重复周期
var ErrInvalidPeriod = errors.New("invalid recurrence period")

// PeriodMonths 返回周期对应的月数偏移
func PeriodMonths(period string) (int, error) {
	switch period {
	case PeriodMonthly:
		return 1, nil
	case PeriodQuarterly:
		return 3, nil
	case PeriodYearly:
		return 12, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}
}

// IsRecurringPeriod 判断周期是否会产生后续实例
func IsRecurringPeriod(period string) bool {
	_, err := PeriodMonths(period)
	return err == nil
}

// DaysIn 返回指定年月的天数
func DaysIn(year int, month time.Month) int {
	// 下个月第 0 天即本月最后一天
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonthsClamped 增加自然月,目标月份较短时日期收敛到月末
func AddMonthsClamped(t time.Time, months int) time.Time {
	return addMonthsWithDay(t, months, t.Day())
}

// CalculateNextRun 计算下一次运行时间
// anchorDay 为锚定日(首次创建时的日期),目标月份不足时取月末
func CalculateNextRun(anchorDay int, base time.Time, period string) (time.Time, error) {
	months, err := PeriodMonths(period)
	if err != nil {
		return time.Time{}, err
	}
	if anchorDay < 1 || anchorDay > 31 {
		return time.Time{}, fmt.Errorf("anchor day %d out of range", anchorDay)
	}
	return addMonthsWithDay(base, months, anchorDay), nil
}

func addMonthsWithDay(t time.Time, months int, day int) time.Time {
	// 先定位到目标月份的 1 号,避免 time.Date 溢出到下个月
	first := time.Date(t.Year(), t.Month(), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, months, 0)

	last := DaysIn(target.Year(), target.Month())
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// PeriodEnd 计算账期结束日期(开始日期加上周期后减一天)
func PeriodEnd(start time.Time, frequency string) (time.Time, error) {
	months, err := PeriodMonths(frequency)
	if err != nil {
		return time.Time{}, err
	}
	return AddMonthsClamped(start, months).AddDate(0, 0, -1), nil
}

// OccurrenceLabel 生成自动复制任务的标题后缀
func OccurrenceLabel(period string, t time.Time) string {
	switch period {
	case PeriodQuarterly:
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("Q%d %d (%s)", quarter, t.Year(), t.Format("Jan"))
	case PeriodYearly:
		return fmt.Sprintf("%d (%s)", t.Year(), t.Format("Jan"))
	default:
		return t.Format("Jan 2006")
	}
}

// PeriodTitle 生成账期任务标题
func PeriodTitle(serviceType string, from, to time.Time) string {
	return fmt.Sprintf("%s - %s to %s", serviceType, from.Format("02 Jan 2006"), to.Format("02 Jan 2006"))
}

// DateOf 截断到 UTC 零点
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DueState 返回到期状态
func DueState(due *time.Time, today time.Time) string {
	if due == nil {
		return DueNotDated
	}
	d := DateOf(*due)
	now := DateOf(today)
	switch {
	case d.Before(now):
		return DueOverdue
	case d.Equal(now):
		return DueToday
	default:
		return DueNotDue
	}
}
