package recurrence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ErrUnknownJob 未注册的定时任务
var ErrUnknownJob = errors.New("unknown job")

// RunFunc 定时任务函数
type RunFunc func(ctx context.Context, now time.Time) (*JobResult, error)

// SchedulerConfig 调度配置
type SchedulerConfig struct {
	Location      *time.Location
	PeriodsSpec   string // 账期生成 cron 表达式
	RecurringSpec string // 重复任务 cron 表达式
}

// Scheduler 定时任务调度器
type Scheduler struct {
	cron   *cron.Cron
	jobs   map[string]RunFunc
	specs  map[string]string
	now    func() time.Time
	log    logrus.FieldLogger
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建调度器,注册账期生成与重复任务两个作业
func NewScheduler(cfg SchedulerConfig, generator *Generator, job *Job, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	periodsSpec := cfg.PeriodsSpec
	if periodsSpec == "" {
		periodsSpec = "0 2 * * *"
	}
	recurringSpec := cfg.RecurringSpec
	if recurringSpec == "" {
		recurringSpec = "0 2 * * *"
	}

	cronLog := cronLogger{log: log.WithField("component", "scheduler")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		jobs: map[string]RunFunc{
			JobPeriods:   generator.GeneratePeriods,
			JobRecurring: job.RunRecurring,
		},
		specs: map[string]string{
			JobPeriods:   periodsSpec,
			JobRecurring: recurringSpec,
		},
		now: func() time.Time { return time.Now().In(loc) },
		log: log,
	}
}

// Start 注册作业并启动调度
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range []string{JobPeriods, JobRecurring} {
		name := name
		if _, err := s.cron.AddFunc(s.specs[name], func() { s.run(s.ctx, name) }); err != nil {
			s.cancel()
			s.cancel = nil
			return fmt.Errorf("invalid cron spec for %s: %w", name, err)
		}
		s.log.WithFields(logrus.Fields{"job": name, "spec": s.specs[name]}).Info("Job scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop 停止调度并等待运行中的作业结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	<-s.cron.Stop().Done()
	cancel()
}

// RunNow 立即执行指定作业
func (s *Scheduler) RunNow(ctx context.Context, name string) (*JobResult, error) {
	fn, ok := s.jobs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return fn(ctx, s.now())
}

// Jobs 返回已注册作业及其表达式
func (s *Scheduler) Jobs() map[string]string {
	out := make(map[string]string, len(s.specs))
	for k, v := range s.specs {
		out[k] = v
	}
	return out
}

func (s *Scheduler) run(ctx context.Context, name string) {
	start := time.Now()
	result, err := s.RunNow(ctx, name)
	entry := s.log.WithFields(logrus.Fields{"job": name, "duration": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("Scheduled job failed")
		return
	}
	entry.WithFields(logrus.Fields{"created": result.Created, "failed": result.Failed}).Info("Scheduled job finished")
}

// cronLogger 将 cron 日志转到 logrus
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(kvFields(keysAndValues)).WithError(err).Error(msg)
}

func kvFields(kv []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
