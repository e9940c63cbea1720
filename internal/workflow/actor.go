package workflow

import "context"

// 角色
const (
	RoleAdmin         = "admin"
	RoleBranchManager = "branch_manager"
	RolePartner       = "partner"
	RoleStaff         = "staff"
)

// Roles 返回全部已知角色
func Roles() []string {
	return []string{RoleAdmin, RoleBranchManager, RolePartner, RoleStaff}
}

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// Actor 当前操作人
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IsAdmin 是否为管理员
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManagePayments 是否可以审批付款
func (a Actor) CanManagePayments() bool {
	return a.Role == RoleAdmin || a.Role == RoleBranchManager
}

// ReadOnly 合伙人只读
func (a Actor) ReadOnly() bool {
	return a.Role == RolePartner
}

// DisplayName 用于评论的显示名
func (a Actor) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

type actorKey struct{}

// WithActor 将操作人写入上下文
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext 从上下文读取操作人
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok && actor.ID != ""
}
