package api

import (
	"net/http"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

// AuthMiddleware 校验 Bearer 令牌,并将操作人写入请求上下文
func AuthMiddleware(tokens *auth.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			Error(c, http.StatusUnauthorized, "unauthenticated", err.Error())
			return
		}
		claims, err := tokens.Parse(token)
		if err != nil {
			Error(c, http.StatusUnauthorized, "invalid token", "")
			return
		}

		actor := claims.Actor()
		c.Set("user_id", actor.ID)
		c.Set("role", actor.Role)
		c.Set("name", actor.Name)
		c.Set(actorKey, actor)
		c.Request = c.Request.WithContext(workflow.WithActor(c.Request.Context(), actor))

		c.Next()
	}
}

// RequirePermission 角色权限校验
func RequirePermission(perm auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := currentActor(c)
		if !ok {
			Error(c, http.StatusUnauthorized, "unauthenticated", "")
			return
		}
		if !auth.Allowed(actor.Role, perm) {
			Error(c, http.StatusForbidden, "forbidden", string(perm))
			return
		}
		c.Next()
	}
}

// currentActor 获取当前操作人
func currentActor(c *gin.Context) (workflow.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return workflow.Actor{}, false
	}
	actor, ok := v.(workflow.Actor)
	return actor, ok
}
