package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// 客户端发送队列长度,写满视为慢客户端
	sendBufferSize = 64
	// 待广播消息队列长度
	broadcastBufferSize = 256
)

type message struct {
	taskID string
	data   []byte
}

// Hub 按任务管理订阅连接
type Hub struct {
	// 任务 ID -> 订阅的客户端
	tasks map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}

	// 互斥锁,保护 tasks map
	mu  sync.RWMutex
	log logrus.FieldLogger
}

// NewHub 创建新的 Hub
func NewHub(log logrus.FieldLogger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		tasks:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, broadcastBufferSize),
		done:       make(chan struct{}),
		log:        log.WithField("component", "websocket_hub"),
	}
}

// Run 运行 Hub,ctx 结束时关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			subs, ok := h.tasks[client.TaskID]
			if !ok {
				subs = make(map[*Client]bool)
				h.tasks[client.TaskID] = subs
			}
			subs[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.tasks[msg.taskID] {
				select {
				case client.Send <- msg.data:
				default:
					h.log.WithFields(logrus.Fields{
						"task_id": msg.taskID,
						"user_id": client.UserID,
					}).Warn("Dropping slow websocket client")
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Subscribe 订阅任务事件;返回的客户端在 Send 关闭后失效
func (h *Hub) Subscribe(taskID, userID string) *Client {
	client := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		TaskID: taskID,
		hub:    h,
		Send:   make(chan []byte, sendBufferSize),
	}
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
	return client
}

// Unsubscribe 取消订阅
func (h *Hub) Unsubscribe(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish 实现 workflow.EventPublisher,事件投递给该任务的订阅者
func (h *Hub) Publish(event workflow.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.WithError(err).WithField("task_id", event.TaskID).Error("Failed to marshal event")
		return
	}
	select {
	case h.broadcast <- message{taskID: event.TaskID, data: data}:
	default:
		h.log.WithField("task_id", event.TaskID).Warn("Websocket broadcast queue full, event dropped")
	}
}

// ClientCount 某任务的订阅数;taskID 为空时返回总数
func (h *Hub) ClientCount(taskID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if taskID != "" {
		return len(h.tasks[taskID])
	}
	total := 0
	for _, subs := range h.tasks {
		total += len(subs)
	}
	return total
}

// remove 调用方持有写锁
func (h *Hub) remove(client *Client) {
	subs, ok := h.tasks[client.TaskID]
	if !ok || !subs[client] {
		return
	}
	delete(subs, client)
	close(client.Send)
	if len(subs) == 0 {
		delete(h.tasks, client.TaskID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, subs := range h.tasks {
		for client := range subs {
			h.remove(client)
		}
	}
}
