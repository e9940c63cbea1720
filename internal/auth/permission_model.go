package auth

import "github.com/Zapuzallp/CASUITE-sub000/internal/workflow"

// Permission 接口级权限
type Permission string

const (
	PermTaskRead       Permission = "task:read"
	PermTaskWrite      Permission = "task:write"
	PermTaskDelete     Permission = "task:delete"
	PermClientWrite    Permission = "client:write"
	PermBillingWrite   Permission = "billing:write"
	PermPaymentApprove Permission = "payment:approve"
	PermAuditRead      Permission = "audit:read"
	PermJobRun         Permission = "job:run"
)

// rolePermissions 角色与权限的对应关系;合伙人只读
var rolePermissions = map[string][]Permission{
	workflow.RoleAdmin: {
		PermTaskRead, PermTaskWrite, PermTaskDelete, PermClientWrite,
		PermBillingWrite, PermPaymentApprove, PermAuditRead, PermJobRun,
	},
	workflow.RoleBranchManager: {
		PermTaskRead, PermTaskWrite, PermClientWrite,
		PermBillingWrite, PermPaymentApprove, PermAuditRead,
	},
	workflow.RoleStaff: {
		PermTaskRead, PermTaskWrite, PermBillingWrite,
	},
	workflow.RolePartner: {
		PermTaskRead, PermAuditRead,
	},
}

// Allowed 判断角色是否拥有权限
func Allowed(role string, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsOf 返回角色的全部权限
func PermissionsOf(role string) []Permission {
	return append([]Permission(nil), rolePermissions[role]...)
}
