package utils

import (
	"errors"
	"regexp"
	"strings"
)

var sortFieldPattern = regexp.MustCompile(`^[a-zA-Z0-9_.]+$`)

// ValidateSortField 验证排序字段，防止 SQL 注入;allowed 非空时必须在白名单内
func ValidateSortField(field string, allowed ...string) error {
	if field == "" {
		return errors.New("sort field cannot be empty")
	}

	// 只允许字母、数字、下划线和点（用于表名.字段名）
	if !sortFieldPattern.MatchString(field) {
		return errors.New("invalid sort field format")
	}

	if len(allowed) == 0 {
		return nil
	}
	for _, a := range allowed {
		if a == field {
			return nil
		}
	}
	return errors.New("sort field is not allowed: " + field)
}

// ValidateSortOrder 验证排序方向
func ValidateSortOrder(order string) error {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder != "ASC" && upperOrder != "DESC" {
		return errors.New("sort order must be ASC or DESC")
	}
	return nil
}

// SanitizeSortOrder 清理排序方向
func SanitizeSortOrder(order string) string {
	upperOrder := strings.ToUpper(strings.TrimSpace(order))
	if upperOrder == "ASC" || upperOrder == "DESC" {
		return upperOrder
	}
	return "DESC" // 默认降序
}
