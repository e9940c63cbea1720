package repository

import "gorm.io/gorm"

// Repositories 绑定到同一连接或事务的仓储集合
type Repositories struct {
	Tasks       TaskRepository
	Assignments AssignmentRepository
	StatusLogs  StatusLogRepository
	Comments    CommentRepository
	Recurrences RecurrenceRepository
	Clients     ClientRepository
	Invoices    InvoiceRepository
	AuditLogs   AuditLogRepository
}

// New 创建仓储集合,在事务中传入 tx
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		Tasks:       NewTaskRepository(db),
		Assignments: NewAssignmentRepository(db),
		StatusLogs:  NewStatusLogRepository(db),
		Comments:    NewCommentRepository(db),
		Recurrences: NewRecurrenceRepository(db),
		Clients:     NewClientRepository(db),
		Invoices:    NewInvoiceRepository(db),
		AuditLogs:   NewAuditLogRepository(db),
	}
}
