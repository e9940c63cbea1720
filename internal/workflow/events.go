package workflow

import "time"

// 事件类型
const (
	EventStepCompleted    = "step_completed"
	EventStageAdvanced    = "stage_advanced"
	EventTaskCompleted    = "task_completed"
	EventAssigneesChanged = "assignees_changed"
	EventStatusChanged    = "status_changed"
)

// Event 工作流事件,事务提交后发布
type Event struct {
	Type    string    `json:"type"`
	TaskID  string    `json:"task_id"`
	Status  string    `json:"status"`
	UserID  string    `json:"user_id,omitempty"`
	ActorID string    `json:"actor_id"`
	At      time.Time `json:"at"`
}

// EventPublisher 事件发布接口
type EventPublisher interface {
	Publish(event Event)
}

// PublisherFunc 函数形式的发布器
type PublisherFunc func(Event)

// Publish 实现 EventPublisher
func (f PublisherFunc) Publish(event Event) {
	f(event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}
