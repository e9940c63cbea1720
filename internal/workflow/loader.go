package workflow

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile YAML 文件结构
type catalogFile struct {
	Catalog         `yaml:",inline"`
	InheritDefaults bool `yaml:"inherit_defaults"`
}

// ParseCatalogYAML 解析 YAML 工作流配置
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyCatalog
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("workflow: decode catalog: %w", err)
	}

	cat := file.Catalog
	if file.InheritDefaults {
		defaults := DefaultCatalog()
		if len(cat.DefaultSteps) == 0 {
			cat.DefaultSteps = defaults.DefaultSteps
		}
		if cat.Services == nil {
			cat.Services = make(map[string]ServiceConfig)
		}
		for name, svc := range defaults.Services {
			if _, ok := cat.Services[name]; !ok {
				cat.Services[name] = svc
			}
		}
	}
	if cat.Services == nil {
		cat.Services = make(map[string]ServiceConfig)
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// LoadCatalogReader 从 io.Reader 读取工作流配置
func LoadCatalogReader(r io.Reader) (*Catalog, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("workflow: read catalog: %w", err)
	}
	return ParseCatalogYAML(content)
}

// LoadCatalogFile 从文件读取工作流配置
func LoadCatalogFile(path string) (*Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflow: read %s: %w", path, err)
	}
	cat, err := ParseCatalogYAML(content)
	if err != nil {
		return nil, fmt.Errorf("workflow: %s: %w", path, err)
	}
	return cat, nil
}

// LoadCatalog 路径为空时返回内置配置
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	return LoadCatalogFile(path)
}
