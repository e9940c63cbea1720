package metrics

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Collector 指标收集器,定期刷新连接池与任务状态分布
type Collector struct {
	db       *gorm.DB
	interval time.Duration
	log      logrus.FieldLogger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCollector 创建指标收集器
func NewCollector(db *gorm.DB, interval time.Duration, log logrus.FieldLogger) *Collector {
	ctx, cancel := context.WithCancel(context.Background())
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Collector{
		db:       db,
		interval: interval,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start 启动指标收集器
func (c *Collector) Start() {
	go c.collect()
}

// Stop 停止指标收集器
func (c *Collector) Stop() {
	c.cancel()
	<-c.done
}

// CollectOnce 收集一次指标
func (c *Collector) CollectOnce(ctx context.Context) error {
	if err := UpdateDatabaseConnections(c.db); err != nil {
		return err
	}

	var rows []struct {
		Status string
		Count  int64
	}
	if err := c.db.WithContext(ctx).Table("tasks").
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	UpdateTasksByStatus(counts)
	return nil
}

// collect 定期收集指标
func (c *Collector) collect() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	defer close(c.done)

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if err := c.CollectOnce(c.ctx); err != nil {
				c.log.WithError(err).Warn("Failed to collect metrics")
			}
		}
	}
}
