package schedule_test

import (
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TestCalculateNextRun 测试下一次运行时间计算(月末锚定)
func TestCalculateNextRun(t *testing.T) {
	tests := []struct {
		name   string
		anchor int
		base   time.Time
		period string
		want   time.Time
	}{
		{"月末锚定到非闰年二月", 31, date(2023, time.January, 31), schedule.PeriodMonthly, date(2023, time.February, 28)},
		{"月末锚定到闰年二月", 31, date(2024, time.January, 31), schedule.PeriodMonthly, date(2024, time.February, 29)},
		{"二月之后恢复锚定日", 31, date(2023, time.February, 28), schedule.PeriodMonthly, date(2023, time.March, 31)},
		{"三十日锚定到四月", 31, date(2023, time.March, 31), schedule.PeriodMonthly, date(2023, time.April, 30)},
		{"普通日期", 15, date(2023, time.June, 15), schedule.PeriodMonthly, date(2023, time.July, 15)},
		{"跨年", 10, date(2023, time.December, 10), schedule.PeriodMonthly, date(2024, time.January, 10)},
		{"季度", 30, date(2023, time.November, 30), schedule.PeriodQuarterly, date(2024, time.February, 29)},
		{"年度闰日", 29, date(2024, time.February, 29), schedule.PeriodYearly, date(2025, time.February, 28)},
		{"年度恢复闰日", 29, date(2027, time.February, 28), schedule.PeriodYearly, date(2028, time.February, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := schedule.CalculateNextRun(tt.anchor, tt.base, tt.period)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

// TestCalculateNextRun_PreservesClock 测试保留时分秒与时区
func TestCalculateNextRun_PreservesClock(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	base := time.Date(2024, time.January, 31, 2, 30, 0, 0, loc)

	got, err := schedule.CalculateNextRun(31, base, schedule.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.February, 29, 2, 30, 0, 0, loc), got)
}

// TestCalculateNextRun_InvalidPeriod 测试无效周期
func TestCalculateNextRun_InvalidPeriod(t *testing.T) {
	for _, period := range []string{"Weekly", "", schedule.PeriodNone, schedule.PeriodOneTime} {
		_, err := schedule.CalculateNextRun(1, date(2024, time.January, 1), period)
		assert.ErrorIs(t, err, schedule.ErrInvalidPeriod, period)
	}

	_, err := schedule.CalculateNextRun(0, date(2024, time.January, 1), schedule.PeriodMonthly)
	assert.Error(t, err)
}

// TestAddMonthsClamped 测试不溢出的月份加法
func TestAddMonthsClamped(t *testing.T) {
	assert.Equal(t, date(2023, time.February, 28), schedule.AddMonthsClamped(date(2023, time.January, 31), 1))
	assert.Equal(t, date(2023, time.April, 30), schedule.AddMonthsClamped(date(2023, time.January, 31), 3))
	assert.Equal(t, date(2022, time.December, 31), schedule.AddMonthsClamped(date(2023, time.January, 31), -1))
}

// TestPeriodEnd 测试账期结束日期
func TestPeriodEnd(t *testing.T) {
	end, err := schedule.PeriodEnd(date(2024, time.April, 1), schedule.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.April, 30), end)

	end, err = schedule.PeriodEnd(date(2024, time.April, 1), schedule.PeriodQuarterly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.June, 30), end)

	end, err = schedule.PeriodEnd(date(2024, time.April, 1), schedule.PeriodYearly)
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.March, 31), end)

	end, err = schedule.PeriodEnd(date(2024, time.January, 31), schedule.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.February, 28), end)

	_, err = schedule.PeriodEnd(date(2024, time.April, 1), schedule.PeriodOneTime)
	assert.ErrorIs(t, err, schedule.ErrInvalidPeriod)
}

// TestOccurrenceLabel 测试复制任务标题后缀
func TestOccurrenceLabel(t *testing.T) {
	at := date(2024, time.August, 5)
	assert.Equal(t, "Aug 2024", schedule.OccurrenceLabel(schedule.PeriodMonthly, at))
	assert.Equal(t, "Q3 2024 (Aug)", schedule.OccurrenceLabel(schedule.PeriodQuarterly, at))
	assert.Equal(t, "2024 (Aug)", schedule.OccurrenceLabel(schedule.PeriodYearly, at))
	assert.Equal(t, "Q1 2025 (Jan)", schedule.OccurrenceLabel(schedule.PeriodQuarterly, date(2025, time.January, 1)))
}

// TestPeriodTitle 测试账期任务标题
func TestPeriodTitle(t *testing.T) {
	title := schedule.PeriodTitle("GST Return", date(2024, time.April, 1), date(2024, time.April, 30))
	assert.Equal(t, "GST Return - 01 Apr 2024 to 30 Apr 2024", title)
}

// TestDueState 测试到期状态
func TestDueState(t *testing.T) {
	today := time.Date(2024, time.May, 10, 18, 0, 0, 0, time.UTC)
	past := date(2024, time.May, 9)
	same := date(2024, time.May, 10)
	future := date(2024, time.May, 11)

	assert.Equal(t, schedule.DueOverdue, schedule.DueState(&past, today))
	assert.Equal(t, schedule.DueToday, schedule.DueState(&same, today))
	assert.Equal(t, schedule.DueNotDue, schedule.DueState(&future, today))
	assert.Equal(t, schedule.DueNotDated, schedule.DueState(nil, today))
}
