package websocket

import (
	"net/http"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/gin-gonic/gin"
	gorillaWS "github.com/gorilla/websocket"
)

// Handler 任务事件 WebSocket 处理器,令牌通过 ?token= 或 Authorization 头传递
func Handler(hub *Hub, tokens *auth.TokenManager, allowedOrigins []string) gin.HandlerFunc {
	upgrader := gorillaWS.Upgrader{
		CheckOrigin: originChecker(allowedOrigins),
	}

	return func(c *gin.Context) {
		// 1. 验证 token
		token := c.Query("token")
		if token == "" {
			token, _ = auth.BearerToken(c.GetHeader("Authorization"))
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid token"})
			return
		}

		// 2. 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade 已写入错误响应
			return
		}

		// 3. 订阅并启动读写
		client := hub.Subscribe(c.Param("id"), claims.UserID)
		client.conn = conn

		go client.writePump()
		go client.readPump()
	}
}

// originChecker 未配置或包含 * 时允许所有来源
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
