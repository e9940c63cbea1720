package api

import (
	"net/http"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/database"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// JobLister 列出已注册的定时任务
type JobLister interface {
	Jobs() map[string]string
}

// HealthController 健康检查控制器
type HealthController struct {
	db        *gorm.DB
	scheduler JobLister
}

// NewHealthController 创建健康检查控制器
func NewHealthController(db *gorm.DB, scheduler JobLister) *HealthController {
	return &HealthController{
		db:        db,
		scheduler: scheduler,
	}
}

// Check 健康检查
func (h *HealthController) Check(c *gin.Context) {
	status := "healthy"
	checks := make(map[string]string)

	// 检查数据库连接
	if h.db != nil {
		if err := database.CheckHealth(c.Request.Context(), h.db); err != nil {
			status = "unhealthy"
			checks["database"] = "unhealthy: " + err.Error()
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "not configured"
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().Unix(),
		"checks":    checks,
	}
	if h.scheduler != nil {
		checks["scheduler"] = "running"
		body["jobs"] = h.scheduler.Jobs()
	} else {
		checks["scheduler"] = "disabled"
	}

	httpStatus := http.StatusOK
	if status == "unhealthy" {
		httpStatus = http.StatusServiceUnavailable
	}
	c.JSON(httpStatus, body)
}
