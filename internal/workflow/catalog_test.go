package workflow_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultCatalog_StepsFor 测试步骤列表与默认回退
func TestDefaultCatalog_StepsFor(t *testing.T) {
	cat := workflow.DefaultCatalog()
	require.NoError(t, cat.Validate())

	assert.Equal(t, []string{"Documents collect", "Accounts Ready", "Complete", "GSTR Submit"}, cat.StepsFor(workflow.ServiceGSTReturn))
	assert.Equal(t, cat.DefaultSteps, cat.StepsFor(workflow.ServiceTDSReturn))
	assert.Equal(t, cat.DefaultSteps, cat.StepsFor("Unknown Service"))

	assert.Equal(t, "Phone Call", cat.InitialStatus(workflow.ServiceITRFiling))
	assert.Equal(t, "Pending", cat.InitialStatus(workflow.ServiceConsultancy))

	assert.Equal(t, 20, cat.DueDaysFor(workflow.ServiceGSTReturn))
	assert.Equal(t, 180, cat.DueDaysFor(workflow.ServiceAudit))
	assert.Equal(t, workflow.DefaultDueDays, cat.DueDaysFor("Unknown Service"))

	assert.Equal(t, map[string]string{"pan_number": "pan"}, cat.DynamicDefaultsFor(workflow.ServiceITRFiling))
	assert.Contains(t, cat.ServiceTypes(), workflow.ServiceROCCompliance)
}

// TestCatalog_Next 测试下一步计算
func TestCatalog_Next(t *testing.T) {
	cat := workflow.DefaultCatalog()

	tests := []struct {
		name      string
		service   string
		status    string
		wantNext  string
		wantFinal bool
	}{
		{"中间步骤", workflow.ServiceGSTReturn, "Documents collect", "Accounts Ready", false},
		{"最后一步", workflow.ServiceGSTReturn, "GSTR Submit", model.TaskStatusCompleted, true},
		{"下一步为终态", workflow.ServiceROCCompliance, "Filed", model.TaskStatusCompleted, true},
		{"默认步骤", "Unknown", "Review", model.TaskStatusCompleted, true},
		{"默认步骤中间", "Unknown", "Pending", "In Progress", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, final, err := cat.Next(tt.service, tt.status)
			require.NoError(t, err)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantFinal, final)
		})
	}

	_, _, err := cat.Next(workflow.ServiceGSTReturn, "Drafting")
	assert.ErrorIs(t, err, workflow.ErrStatusNotInWorkflow)
}

// TestCatalog_Validate 测试配置校验
func TestCatalog_Validate(t *testing.T) {
	cat := workflow.DefaultCatalog()
	cat.DefaultSteps = nil
	assert.Error(t, cat.Validate())

	cat = workflow.DefaultCatalog()
	cat.Services["Dup"] = workflow.ServiceConfig{Steps: []string{"A", "B", "A"}}
	assert.Error(t, cat.Validate())

	cat = workflow.DefaultCatalog()
	cat.Services["Blank"] = workflow.ServiceConfig{Steps: []string{"A", ""}}
	assert.Error(t, cat.Validate())

	cat = workflow.DefaultCatalog()
	cat.Services["Negative"] = workflow.ServiceConfig{DefaultDueDays: -1}
	assert.Error(t, cat.Validate())
}

// TestCatalog_Clone 测试深拷贝
func TestCatalog_Clone(t *testing.T) {
	cat := workflow.DefaultCatalog()
	cp := cat.Clone()
	cp.DefaultSteps[0] = "Changed"
	cp.Services[workflow.ServiceITRFiling].DynamicDefaults["pan_number"] = "other"

	assert.Equal(t, "Pending", cat.DefaultSteps[0])
	assert.Equal(t, "pan", cat.DynamicDefaultsFor(workflow.ServiceITRFiling)["pan_number"])
}

// TestParseCatalogYAML 测试 YAML 解析
func TestParseCatalogYAML(t *testing.T) {
	cat, err := workflow.ParseCatalogYAML([]byte(`
default_steps: [Open, Done]
services:
  Bookkeeping:
    default_due_days: 10
    workflow_steps: [Collect, Post, Reconcile]
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"Open", "Done"}, cat.DefaultSteps)
	assert.Equal(t, "Collect", cat.InitialStatus("Bookkeeping"))
	assert.Equal(t, 10, cat.DueDaysFor("Bookkeeping"))
	_, ok := cat.Services[workflow.ServiceGSTReturn]
	assert.False(t, ok)
}

// TestParseCatalogYAML_InheritDefaults 测试继承内置服务
func TestParseCatalogYAML_InheritDefaults(t *testing.T) {
	cat, err := workflow.ParseCatalogYAML([]byte(`
inherit_defaults: true
services:
  GST Return:
    default_due_days: 11
    workflow_steps: [Collect, File]
`))
	require.NoError(t, err)

	assert.Equal(t, workflow.DefaultCatalog().DefaultSteps, cat.DefaultSteps)
	assert.Equal(t, []string{"Collect", "File"}, cat.StepsFor(workflow.ServiceGSTReturn))
	assert.Equal(t, 120, cat.DueDaysFor(workflow.ServiceITRFiling))
}

// TestParseCatalogYAML_Errors 测试非法配置
func TestParseCatalogYAML_Errors(t *testing.T) {
	_, err := workflow.ParseCatalogYAML([]byte("   \n"))
	assert.True(t, errors.Is(err, workflow.ErrEmptyCatalog))

	_, err = workflow.ParseCatalogYAML([]byte("default_steps: [A, A]"))
	assert.Error(t, err)

	_, err = workflow.ParseCatalogYAML([]byte("default_steps: {"))
	assert.Error(t, err)

	_, err = workflow.LoadCatalogReader(strings.NewReader(""))
	assert.ErrorIs(t, err, workflow.ErrEmptyCatalog)
}

// TestLoadCatalogFile 测试从文件加载
func TestLoadCatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_steps: [Todo, Done]\n"), 0o600))

	cat, err := workflow.LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "Todo", cat.InitialStatus("Anything"))

	cat, err = workflow.LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, workflow.DefaultCatalog().DefaultSteps, cat.DefaultSteps)

	_, err = workflow.LoadCatalogFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// TestActor 测试角色判断与上下文
func TestActor(t *testing.T) {
	admin := workflow.Actor{ID: "u1", Role: workflow.RoleAdmin}
	manager := workflow.Actor{ID: "u2", Role: workflow.RoleBranchManager}
	partner := workflow.Actor{ID: "u3", Name: "Pat", Role: workflow.RolePartner}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.CanManagePayments())
	assert.True(t, manager.CanManagePayments())
	assert.False(t, manager.IsAdmin())
	assert.True(t, partner.ReadOnly())
	assert.Equal(t, "Pat", partner.DisplayName())
	assert.Equal(t, "u1", admin.DisplayName())
	assert.True(t, workflow.IsValidRole(workflow.RoleStaff))
	assert.False(t, workflow.IsValidRole("root"))

	ctx := workflow.WithActor(context.Background(), admin)
	got, ok := workflow.ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, admin, got)

	_, ok = workflow.ActorFromContext(context.Background())
	assert.False(t, ok)
}

// TestNormalizeAssignees 测试负责人去重
func TestNormalizeAssignees(t *testing.T) {
	ids, err := workflow.NormalizeAssignees([]string{" a ", "b", "a", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	_, err = workflow.NormalizeAssignees([]string{"a", "  "})
	assert.ErrorIs(t, err, workflow.ErrInvalidAssignees)
}
