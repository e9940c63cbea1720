package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/websocket"
	"github.com/gin-gonic/gin"
)

const sseHeartbeatInterval = 30 * time.Second

// SSEHandler SSE 处理器,推送任务的工作流事件
func SSEHandler(hub *websocket.Hub, tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 query 参数或 Authorization 头获取 token
		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.GetHeader("Authorization"))
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			Error(c, http.StatusUnauthorized, "invalid token", "")
			return
		}

		taskID := c.Param("id")
		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			Error(c, http.StatusInternalServerError, "streaming not supported", "")
			return
		}

		// 2. 设置 SSE 响应头
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Status(http.StatusOK)

		// 3. 订阅任务事件
		client := hub.Subscribe(taskID, claims.UserID)
		defer hub.Unsubscribe(client)

		connected, _ := json.Marshal(gin.H{
			"type":    "connected",
			"task_id": taskID,
			"user_id": claims.UserID,
		})
		if err := sendSSEMessage(c.Writer, connected); err != nil {
			return
		}
		flusher.Flush()

		heartbeat := time.NewTicker(sseHeartbeatInterval)
		defer heartbeat.Stop()

		// 4. 持续发送事件
		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-heartbeat.C:
				if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case data, ok := <-client.Send:
				if !ok {
					return
				}
				if err := sendSSEMessage(c.Writer, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}

// sendSSEMessage 发送 SSE 消息
func sendSSEMessage(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
