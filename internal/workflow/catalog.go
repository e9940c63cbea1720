package workflow

import (
	"fmt"
	"sort"

	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/go-playground/validator/v10"
)

// 服务类型
const (
	ServiceGSTReturn     = "GST Return"
	ServiceITRFiling     = "ITR Filing"
	ServiceAudit         = "Audit"
	ServiceROCCompliance = "ROC Compliance"
	ServiceTDSReturn     = "TDS Return"
	ServiceConsultancy   = "Consultancy"
)

// DefaultDueDays 未配置服务的默认期限(天)
const DefaultDueDays = 30

// ServiceConfig 单个服务类型的工作流配置
type ServiceConfig struct {
	DefaultDueDays int      `yaml:"default_due_days" json:"default_due_days" validate:"gte=0"`
	Steps          []string `yaml:"workflow_steps" json:"workflow_steps" validate:"unique,dive,required"`
	// DynamicDefaults 扩展属性字段 => 客户字段,创建任务时自动填充
	DynamicDefaults map[string]string `yaml:"dynamic_defaults,omitempty" json:"dynamic_defaults,omitempty"`
}

// Catalog 服务类型到步骤列表的配置
type Catalog struct {
	DefaultSteps []string                 `yaml:"default_steps" json:"default_steps" validate:"min=1,unique,dive,required"`
	Services     map[string]ServiceConfig `yaml:"services" json:"services" validate:"dive,keys,required,endkeys"`
}

// DefaultCatalog 内置工作流配置
func DefaultCatalog() *Catalog {
	return &Catalog{
		DefaultSteps: []string{"Pending", "In Progress", "Review", model.TaskStatusCompleted},
		Services: map[string]ServiceConfig{
			ServiceGSTReturn: {
				DefaultDueDays: 20,
				Steps:          []string{"Documents collect", "Accounts Ready", "Complete", "GSTR Submit"},
			},
			ServiceITRFiling: {
				DefaultDueDays: 120,
				Steps: []string{
					"Phone Call", "Documents collection in progress", "Documents collection complete",
					"Manual", "Account Ready", "Form Fill up & Submit", "EVC",
					"Documents ready & billing", "Delivered",
				},
				DynamicDefaults: map[string]string{"pan_number": "pan"},
			},
			ServiceAudit: {
				DefaultDueDays: 180,
				Steps: []string{
					"Phone Call", "Documents collection in progress", "Documents collection complete",
					"Manual", "Account Ready", "Send to Auditor", "Accepts 3CB-3CD",
					"Return Submit & Billing", "Delivered",
				},
			},
			ServiceROCCompliance: {
				DefaultDueDays:  30,
				Steps:           []string{"Pending", "Drafting", "Signatures", "Filed", model.TaskStatusCompleted},
				DynamicDefaults: map[string]string{"din_numbers": "din"},
			},
			ServiceTDSReturn:   {DefaultDueDays: DefaultDueDays},
			ServiceConsultancy: {DefaultDueDays: DefaultDueDays},
		},
	}
}

// StepsFor 返回服务的步骤列表,未知服务或未配置步骤时返回默认步骤
func (c *Catalog) StepsFor(serviceType string) []string {
	if svc, ok := c.Services[serviceType]; ok && len(svc.Steps) > 0 {
		return svc.Steps
	}
	return c.DefaultSteps
}

// InitialStatus 返回服务的第一个步骤
func (c *Catalog) InitialStatus(serviceType string) string {
	steps := c.StepsFor(serviceType)
	if len(steps) == 0 {
		return ""
	}
	return steps[0]
}

// DueDaysFor 返回服务的默认期限
func (c *Catalog) DueDaysFor(serviceType string) int {
	if svc, ok := c.Services[serviceType]; ok {
		return svc.DefaultDueDays
	}
	return DefaultDueDays
}

// DynamicDefaultsFor 返回服务的自动填充规则
func (c *Catalog) DynamicDefaultsFor(serviceType string) map[string]string {
	return c.Services[serviceType].DynamicDefaults
}

// ServiceTypes 返回已配置的服务类型(排序)
func (c *Catalog) ServiceTypes() []string {
	out := make([]string, 0, len(c.Services))
	for name := range c.Services {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsTerminal 判断是否为终态
func (c *Catalog) IsTerminal(status string) bool {
	return model.IsTerminalStatus(status)
}

// HasStep 判断状态是否属于服务的工作流
func (c *Catalog) HasStep(serviceType, status string) bool {
	for _, s := range c.StepsFor(serviceType) {
		if s == status {
			return true
		}
	}
	return false
}

// Next 返回下一个状态;当前为最后一步或下一步为终态时返回 Completed 且 final 为 true
func (c *Catalog) Next(serviceType, status string) (next string, final bool, err error) {
	steps := c.StepsFor(serviceType)
	for i, s := range steps {
		if s != status {
			continue
		}
		if i == len(steps)-1 || model.IsTerminalStatus(steps[i+1]) {
			return model.TaskStatusCompleted, true, nil
		}
		return steps[i+1], false, nil
	}
	return "", false, fmt.Errorf("%w: %q for %q", ErrStatusNotInWorkflow, status, serviceType)
}

var catalogValidator = validator.New()

// Validate 校验配置
func (c *Catalog) Validate() error {
	if err := catalogValidator.Struct(c); err != nil {
		return fmt.Errorf("workflow: invalid catalog: %w", err)
	}
	for name, svc := range c.Services {
		if err := catalogValidator.Struct(svc); err != nil {
			return fmt.Errorf("workflow: invalid service %q: %w", name, err)
		}
	}
	return nil
}

// Clone 深拷贝配置
func (c *Catalog) Clone() *Catalog {
	out := &Catalog{
		DefaultSteps: append([]string(nil), c.DefaultSteps...),
		Services:     make(map[string]ServiceConfig, len(c.Services)),
	}
	for name, svc := range c.Services {
		cp := ServiceConfig{
			DefaultDueDays: svc.DefaultDueDays,
			Steps:          append([]string(nil), svc.Steps...),
		}
		if svc.DynamicDefaults != nil {
			cp.DynamicDefaults = make(map[string]string, len(svc.DynamicDefaults))
			for k, v := range svc.DynamicDefaults {
				cp.DynamicDefaults[k] = v
			}
		}
		out.Services[name] = cp
	}
	return out
}
