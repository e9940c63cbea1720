package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/logger"
	"github.com/Zapuzallp/CASUITE-sub000/internal/websocket"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *websocket.Hub {
	t.Helper()
	hub := websocket.NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, ch <-chan []byte) workflow.Event {
	t.Helper()
	select {
	case data, ok := <-ch:
		require.True(t, ok, "channel closed")
		var ev workflow.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return workflow.Event{}
}

// TestHub_PublishByTask 测试事件只投递给该任务的订阅者
func TestHub_PublishByTask(t *testing.T) {
	hub := startHub(t)
	first := hub.Subscribe("task-1", "alice")
	other := hub.Subscribe("task-2", "bob")
	assert.Eventually(t, func() bool { return hub.ClientCount("") == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount("task-1"))

	hub.Publish(workflow.Event{Type: workflow.EventStepCompleted, TaskID: "task-1", Status: "Review", UserID: "alice"})

	ev := receive(t, first.Send)
	assert.Equal(t, workflow.EventStepCompleted, ev.Type)
	assert.Equal(t, "Review", ev.Status)

	select {
	case <-other.Send:
		t.Fatal("unexpected event for another task")
	case <-time.After(50 * time.Millisecond):
	}
}

// TestHub_DropsSlowClient 测试发送队列写满的客户端被移除
func TestHub_DropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := hub.Subscribe("task-1", "alice")

	for i := 0; i < 100; i++ {
		hub.Publish(workflow.Event{Type: workflow.EventStatusChanged, TaskID: "task-1"})
	}

	assert.Eventually(t, func() bool { return hub.ClientCount("task-1") == 0 }, 2*time.Second, 10*time.Millisecond)

	// 已缓冲的消息读完后 channel 关闭
	count := 0
	for range slow.Send {
		count++
	}
	assert.Greater(t, count, 0)
}

// TestHub_Unsubscribe 测试取消订阅与停止
func TestHub_Unsubscribe(t *testing.T) {
	hub := websocket.NewHub(logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	client := hub.Subscribe("task-1", "alice")
	hub.Unsubscribe(client)
	_, ok := <-client.Send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount(""))

	// 重复取消不报错
	hub.Unsubscribe(client)

	kept := hub.Subscribe("task-1", "bob")
	cancel()
	_, ok = <-kept.Send
	assert.False(t, ok)

	// 停止后订阅立即失效
	late := hub.Subscribe("task-1", "carol")
	_, ok = <-late.Send
	assert.False(t, ok)
}

// TestHandler 测试 WebSocket 认证与事件推送
func TestHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := startHub(t)
	tokens := auth.NewTokenManager("websocket-test-secret-012345", "casuite", time.Hour)

	router := gin.New()
	router.GET("/ws/tasks/:id", websocket.Handler(hub, tokens, nil))
	srv := httptest.NewServer(router)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/tasks/task-9"

	t.Run("无效令牌", func(t *testing.T) {
		_, resp, err := gorillaWS.DefaultDialer.Dial(base+"?token=bogus", nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("接收事件", func(t *testing.T) {
		token, err := tokens.Issue("alice", workflow.RoleStaff, "Alice")
		require.NoError(t, err)

		conn, _, err := gorillaWS.DefaultDialer.Dial(base+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.ClientCount("task-9") == 1 }, 2*time.Second, 10*time.Millisecond)
		hub.Publish(workflow.Event{Type: workflow.EventTaskCompleted, TaskID: "task-9", Status: "Completed"})

		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev workflow.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, workflow.EventTaskCompleted, ev.Type)
		assert.Equal(t, "task-9", ev.TaskID)
	})
}
