package model

import (
	"errors"
	"time"
)

// TaskCommentModel 任务评论
type TaskCommentModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	TaskID    string    `gorm:"type:varchar(64);not null;index" json:"task_id"`
	Author    string    `gorm:"type:varchar(64);not null" json:"author"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	IsSystem  bool      `gorm:"not null;default:false" json:"is_system"` // 由工作流自动生成
	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

// TableName 指定表名
func (TaskCommentModel) TableName() string {
	return "task_comments"
}

// Validate 验证评论
func (m *TaskCommentModel) Validate() error {
	if m.TaskID == "" {
		return errors.New("task ID is required")
	}
	if m.Author == "" {
		return errors.New("author is required")
	}
	if m.Text == "" {
		return errors.New("comment text is required")
	}
	return nil
}
