package auth_test

import (
	"testing"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/auth"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret-0123456789"

// TestTokenManager_IssueAndParse 测试签发与解析
func TestTokenManager_IssueAndParse(t *testing.T) {
	m := auth.NewTokenManager(testSecret, "casuite", time.Hour)

	token, err := m.Issue("alice", workflow.RoleStaff, "Alice")
	require.NoError(t, err)

	claims, err := m.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)
	assert.Equal(t, workflow.RoleStaff, claims.Role)
	assert.Equal(t, "casuite", claims.Issuer)
	assert.Equal(t, workflow.Actor{ID: "alice", Name: "Alice", Role: workflow.RoleStaff}, claims.Actor())
}

// TestTokenManager_Rejects 测试无效令牌
func TestTokenManager_Rejects(t *testing.T) {
	issuedAt := time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)
	m := auth.NewTokenManager(testSecret, "casuite", time.Hour).
		WithClock(func() time.Time { return issuedAt })
	token, err := m.Issue("alice", workflow.RoleAdmin, "")
	require.NoError(t, err)

	t.Run("过期", func(t *testing.T) {
		late := auth.NewTokenManager(testSecret, "casuite", time.Hour).
			WithClock(func() time.Time { return issuedAt.Add(2 * time.Hour) })
		_, err := late.Parse(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("密钥不同", func(t *testing.T) {
		other := auth.NewTokenManager("another-secret-0123456789", "casuite", time.Hour).
			WithClock(func() time.Time { return issuedAt })
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("签发方不同", func(t *testing.T) {
		other := auth.NewTokenManager(testSecret, "someone-else", time.Hour).
			WithClock(func() time.Time { return issuedAt })
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("格式错误", func(t *testing.T) {
		_, err := m.Parse("not-a-jwt")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("为空", func(t *testing.T) {
		_, err := m.Parse("")
		assert.ErrorIs(t, err, auth.ErrMissingToken)
	})
}

// TestTokenManager_IssueValidation 测试签发参数校验
func TestTokenManager_IssueValidation(t *testing.T) {
	m := auth.NewTokenManager(testSecret, "", time.Hour)

	_, err := m.Issue("", workflow.RoleStaff, "")
	assert.Error(t, err)
	_, err = m.Issue("alice", "superuser", "")
	assert.Error(t, err)
}

// TestBearerToken 测试 Authorization 头解析
func TestBearerToken(t *testing.T) {
	token, err := auth.BearerToken("Bearer abc.def.ghi")
	require.NoError(t, err)
	assert.Equal(t, "abc.def.ghi", token)

	token, err = auth.BearerToken("bearer xyz")
	require.NoError(t, err)
	assert.Equal(t, "xyz", token)

	for _, header := range []string{"", "Bearer", "Basic abc", "Bearer a b"} {
		_, err := auth.BearerToken(header)
		assert.ErrorIs(t, err, auth.ErrMissingToken, header)
	}
}

// TestAllowed 测试角色权限
func TestAllowed(t *testing.T) {
	tests := []struct {
		role string
		perm auth.Permission
		want bool
	}{
		{workflow.RoleAdmin, auth.PermTaskDelete, true},
		{workflow.RoleAdmin, auth.PermJobRun, true},
		{workflow.RoleBranchManager, auth.PermPaymentApprove, true},
		{workflow.RoleBranchManager, auth.PermJobRun, false},
		{workflow.RoleStaff, auth.PermTaskWrite, true},
		{workflow.RoleStaff, auth.PermPaymentApprove, false},
		{workflow.RolePartner, auth.PermTaskRead, true},
		{workflow.RolePartner, auth.PermTaskWrite, false},
		{"unknown", auth.PermTaskRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+string(tt.perm), func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Allowed(tt.role, tt.perm))
		})
	}
	assert.Len(t, auth.PermissionsOf(workflow.RolePartner), 2)
}
