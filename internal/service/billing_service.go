package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zapuzallp/CASUITE-sub000/internal/metrics"
	"github.com/Zapuzallp/CASUITE-sub000/internal/model"
	"github.com/Zapuzallp/CASUITE-sub000/internal/repository"
	"github.com/Zapuzallp/CASUITE-sub000/internal/schedule"
	"github.com/Zapuzallp/CASUITE-sub000/internal/utils"
	"github.com/Zapuzallp/CASUITE-sub000/internal/workflow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 收款操作
const (
	PaymentActionRecord  = "record"
	PaymentActionApprove = "approve"
	PaymentActionReject  = "reject"
	PaymentActionCancel  = "cancel"
)

// BillingService 发票与收款服务接口
type BillingService interface {
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*model.InvoiceModel, error)
	GetInvoice(ctx context.Context, id string) (*model.InvoiceModel, error)
	ListInvoices(ctx context.Context, clientID, status string, page, pageSize int) ([]*model.InvoiceModel, int64, error)
	AddInvoiceItem(ctx context.Context, invoiceID string, req *InvoiceItemRequest) (*model.InvoiceItemModel, error)
	SetInvoiceStatus(ctx context.Context, id, status string) (*model.InvoiceModel, error)
	InvoiceSummary(ctx context.Context, id string) (*InvoiceSummary, error)
	// 收款
	RecordPayment(ctx context.Context, invoiceID string, req *RecordPaymentRequest) (*model.PaymentModel, error)
	ApprovePayment(ctx context.Context, id string) (*model.PaymentModel, error)
	RejectPayment(ctx context.Context, id, remarks string) (*model.PaymentModel, error)
	CancelPayment(ctx context.Context, id, remarks string) (*model.PaymentModel, error)
	BulkPaymentAction(ctx context.Context, req *BulkPaymentRequest) ([]BatchOperationResult, error)
}

// InvoiceItemRequest 发票明细
type InvoiceItemRequest struct {
	TaskID      *string         `json:"task_id"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Discount    decimal.Decimal `json:"discount"`
}

// CreateInvoiceRequest 创建发票请求
type CreateInvoiceRequest struct {
	ClientID    string               `json:"client_id" binding:"required"`
	InvoiceDate *time.Time           `json:"invoice_date"`
	DueDate     *time.Time           `json:"due_date"`
	Remarks     string               `json:"remarks"`
	Items       []InvoiceItemRequest `json:"items" binding:"dive"`
}

// RecordPaymentRequest 登记收款请求
type RecordPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate *time.Time      `json:"payment_date"`
	Method      string          `json:"method"`
	Reference   string          `json:"reference"`
	Remarks     string          `json:"remarks"`
}

// BulkPaymentRequest 批量收款操作请求
type BulkPaymentRequest struct {
	PaymentIDs []string `json:"payment_ids" binding:"required"`
	Action     string   `json:"action" binding:"required,oneof=approve reject cancel"`
	Remarks    string   `json:"remarks"`
}

// InvoiceSummary 发票金额汇总
type InvoiceSummary struct {
	InvoiceID string          `json:"invoice_id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Paid      decimal.Decimal `json:"paid"`
	Balance   decimal.Decimal `json:"balance"`
	DueState  string          `json:"due_state,omitempty"`
}

type billingService struct {
	db          *gorm.DB
	auditLogSvc AuditLogService
	now         func() time.Time
	log         logrus.FieldLogger
}

// NewBillingService 创建发票服务
func NewBillingService(db *gorm.DB, auditLogSvc AuditLogService, log logrus.FieldLogger) BillingService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &billingService{
		db:          db,
		auditLogSvc: auditLogSvc,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// CreateInvoice 创建草稿发票
func (s *billingService) CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*model.InvoiceModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	invoice := &model.InvoiceModel{
		ID:          uuid.NewString(),
		ClientID:    req.ClientID,
		InvoiceDate: schedule.DateOf(now),
		Status:      model.InvoiceStatusDraft,
		Remarks:     utils.SanitizeString(req.Remarks),
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.InvoiceDate != nil {
		invoice.InvoiceDate = schedule.DateOf(*req.InvoiceDate)
	}
	if req.DueDate != nil {
		due := schedule.DateOf(*req.DueDate)
		invoice.DueDate = &due
	}
	for i := range req.Items {
		item, err := newInvoiceItem(invoice.ID, &req.Items[i], now)
		if err != nil {
			return nil, err
		}
		invoice.Items = append(invoice.Items, *item)
	}
	if err := invoice.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		if _, err := repos.Clients.FindByID(invoice.ClientID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrClientNotFound
			}
			return err
		}
		return repos.Invoices.Create(invoice)
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "create", "invoice", invoice.ID, map[string]interface{}{
		"client_id": invoice.ClientID,
		"items":     len(invoice.Items),
	})
	return s.GetInvoice(ctx, invoice.ID)
}

// GetInvoice 获取发票(含明细与收款)
func (s *billingService) GetInvoice(ctx context.Context, id string) (*model.InvoiceModel, error) {
	invoice, err := repository.NewInvoiceRepository(s.db.WithContext(ctx)).FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	return invoice, err
}

// ListInvoices 分页查询发票
func (s *billingService) ListInvoices(ctx context.Context, clientID, status string, page, pageSize int) ([]*model.InvoiceModel, int64, error) {
	return repository.NewInvoiceRepository(s.db.WithContext(ctx)).List(clientID, status, page, pageSize)
}

// AddInvoiceItem 追加发票明细并重新计算状态
func (s *billingService) AddInvoiceItem(ctx context.Context, invoiceID string, req *InvoiceItemRequest) (*model.InvoiceItemModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	item, err := newInvoiceItem(invoiceID, req, now)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		invoice, err := lockInvoice(repos, invoiceID)
		if err != nil {
			return err
		}
		if invoice.Status == model.InvoiceStatusPaid {
			return fmt.Errorf("%w: invoice is already paid", ErrInvalidTransition)
		}
		if err := repos.Invoices.AddItem(item); err != nil {
			return err
		}
		if invoice.Status != model.InvoiceStatusDraft && item.TaskID != nil {
			if err := repos.Invoices.SetTaskFeeStatus([]string{*item.TaskID}, model.FeeStatusBilled, now); err != nil {
				return err
			}
		}
		_, err = RecomputeInvoiceStatus(tx, invoiceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	record(ctx, s.auditLogSvc, s.log, actor.ID, "add_item", "invoice", invoiceID, map[string]interface{}{
		"net_total": item.NetTotal.StringFixed(2),
	})
	return item, nil
}

// SetInvoiceStatus 仅允许 DRAFT 与 OPEN 互相切换;开票后关联任务标记为已开票
func (s *billingService) SetInvoiceStatus(ctx context.Context, id, status string) (*model.InvoiceModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	status = strings.ToUpper(strings.TrimSpace(status))
	now := s.now()

	var from string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		invoice, err := lockInvoice(repos, id)
		if err != nil {
			return err
		}
		from = invoice.Status

		switch {
		case from == model.InvoiceStatusDraft && status == model.InvoiceStatusOpen:
			if err := repos.Invoices.UpdateStatus(id, status, now); err != nil {
				return err
			}
			items, err := repos.Invoices.FindItems(id)
			if err != nil {
				return err
			}
			if err := repos.Invoices.SetTaskFeeStatus(linkedTaskIDs(items), model.FeeStatusBilled, now); err != nil {
				return err
			}
			// 草稿期间登记的收款在开票后生效
			_, err = RecomputeInvoiceStatus(tx, id, now)
			return err
		case from == model.InvoiceStatusOpen && status == model.InvoiceStatusDraft:
			return repos.Invoices.UpdateStatus(id, status, now)
		case from == status:
			return nil
		default:
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
		}
	})
	if err != nil {
		return nil, err
	}

	if from != status {
		record(ctx, s.auditLogSvc, s.log, actor.ID, "set_status", "invoice", id, map[string]interface{}{"from": from, "to": status})
	}
	return s.GetInvoice(ctx, id)
}

// InvoiceSummary 发票金额汇总
func (s *billingService) InvoiceSummary(ctx context.Context, id string) (*InvoiceSummary, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	total, paid := invoiceTotals(invoice.Items, invoice.Payments)
	summary := &InvoiceSummary{
		InvoiceID: invoice.ID,
		Status:    invoice.Status,
		Total:     total,
		Paid:      paid,
		Balance:   total.Sub(paid),
	}
	if invoice.Status != model.InvoiceStatusPaid {
		summary.DueState = schedule.DueState(invoice.DueDate, s.now())
	}
	return summary, nil
}

// RecordPayment 登记收款,待审批
func (s *billingService) RecordPayment(ctx context.Context, invoiceID string, req *RecordPaymentRequest) (*model.PaymentModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	payment := &model.PaymentModel{
		ID:             uuid.NewString(),
		InvoiceID:      invoiceID,
		Amount:         req.Amount,
		PaymentDate:    schedule.DateOf(now),
		Method:         req.Method,
		Reference:      strings.TrimSpace(req.Reference),
		PaymentStatus:  model.PaymentStatusPending,
		ApprovalStatus: model.ApprovalStatusPending,
		CreatedBy:      actor.ID,
		Remarks:        utils.SanitizeString(req.Remarks),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.PaymentDate != nil {
		payment.PaymentDate = schedule.DateOf(*req.PaymentDate)
	}
	if err := payment.Validate(); err != nil {
		return nil, invalid("%v", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)
		if _, err := lockInvoice(repos, invoiceID); err != nil {
			return err
		}
		if err := repos.Invoices.CreatePayment(payment); err != nil {
			return err
		}
		_, err := RecomputeInvoiceStatus(tx, invoiceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterPayment(ctx, actor, PaymentActionRecord, payment)
	return payment, nil
}

// ApprovePayment 审批通过
func (s *billingService) ApprovePayment(ctx context.Context, id string) (*model.PaymentModel, error) {
	return s.decide(ctx, id, PaymentActionApprove, "")
}

// RejectPayment 审批拒绝
func (s *billingService) RejectPayment(ctx context.Context, id, remarks string) (*model.PaymentModel, error) {
	return s.decide(ctx, id, PaymentActionReject, remarks)
}

// CancelPayment 取消收款
func (s *billingService) CancelPayment(ctx context.Context, id, remarks string) (*model.PaymentModel, error) {
	return s.decide(ctx, id, PaymentActionCancel, remarks)
}

// BulkPaymentAction 批量处理收款
func (s *billingService) BulkPaymentAction(ctx context.Context, req *BulkPaymentRequest) ([]BatchOperationResult, error) {
	if _, err := writerFrom(ctx); err != nil {
		return nil, err
	}
	switch req.Action {
	case PaymentActionApprove, PaymentActionReject, PaymentActionCancel:
	default:
		return nil, invalid("unsupported payment action %q", req.Action)
	}

	results := make([]BatchOperationResult, 0, len(req.PaymentIDs))
	for _, id := range req.PaymentIDs {
		_, err := s.decide(ctx, id, req.Action, req.Remarks)
		result := BatchOperationResult{ID: id, Success: err == nil}
		if err != nil {
			result.Error = err.Error()
		}
		results = append(results, result)
	}
	return results, nil
}

// decide 处理待审批收款,同一事务内重新计算发票状态
func (s *billingService) decide(ctx context.Context, id, action, remarks string) (*model.PaymentModel, error) {
	actor, err := writerFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()

	var payment *model.PaymentModel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := repository.New(tx)

		// 1. 查找收款并锁定发票
		payment, err = repos.Invoices.FindPayment(id)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return err
		}
		if _, err := lockInvoice(repos, payment.InvoiceID); err != nil {
			return err
		}
		if payment, err = repos.Invoices.FindPayment(id); err != nil {
			return err
		}

		// 2. 权限与状态
		if !payment.IsPending() {
			return ErrPaymentNotPending
		}
		switch action {
		case PaymentActionApprove, PaymentActionReject:
			if !actor.CanManagePayments() {
				return workflow.ErrNotPermitted
			}
		case PaymentActionCancel:
			if !actor.CanManagePayments() && actor.ID != payment.CreatedBy {
				return workflow.ErrNotPermitted
			}
		}

		// 3. 更新状态
		switch action {
		case PaymentActionApprove:
			payment.PaymentStatus = model.PaymentStatusPaid
			payment.ApprovalStatus = model.ApprovalStatusApproved
			payment.ApprovedBy = actor.ID
			payment.ApprovedAt = &now
		case PaymentActionReject:
			payment.PaymentStatus = model.PaymentStatusUnpaid
			payment.ApprovalStatus = model.ApprovalStatusRejected
		case PaymentActionCancel:
			payment.PaymentStatus = model.PaymentStatusCanceled
			payment.ApprovalStatus = model.ApprovalStatusCanceled
		}
		if remarks != "" {
			payment.Remarks = utils.SanitizeString(remarks)
		}
		payment.UpdatedAt = now
		if err := repos.Invoices.UpdatePayment(payment); err != nil {
			return err
		}

		_, err = RecomputeInvoiceStatus(tx, payment.InvoiceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterPayment(ctx, actor, action, payment)
	return payment, nil
}

func (s *billingService) afterPayment(ctx context.Context, actor workflow.Actor, action string, payment *model.PaymentModel) {
	metrics.RecordPaymentAction(action)
	record(ctx, s.auditLogSvc, s.log, actor.ID, action, "payment", payment.ID, map[string]interface{}{
		"invoice_id": payment.InvoiceID,
		"amount":     payment.Amount.StringFixed(2),
	})
	s.log.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"invoice_id": payment.InvoiceID,
		"action":     action,
		"user_id":    actor.ID,
	}).Info("Payment updated")
}

// RecomputeInvoiceStatus 根据明细与已审批收款重新计算发票状态
//
// DRAFT 保持不变;已收为零时为 OPEN,已收不少于总额时为 PAID,其余为 PARTIALLY_PAID。
// 发票变为 PAID 时关联任务的费用状态标记为 Paid。
func RecomputeInvoiceStatus(tx *gorm.DB, invoiceID string, now time.Time) (string, error) {
	repos := repository.New(tx)

	invoice, err := repos.Invoices.FindByID(invoiceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrInvoiceNotFound
	}
	if err != nil {
		return "", err
	}
	if invoice.Status == model.InvoiceStatusDraft {
		return invoice.Status, nil
	}

	total, paid := invoiceTotals(invoice.Items, invoice.Payments)
	status := model.InvoiceStatusPartiallyPaid
	switch {
	case paid.IsZero():
		status = model.InvoiceStatusOpen
	case paid.GreaterThanOrEqual(total):
		status = model.InvoiceStatusPaid
	}

	if status != invoice.Status {
		if err := repos.Invoices.UpdateStatus(invoiceID, status, now); err != nil {
			return "", err
		}
	}
	if status == model.InvoiceStatusPaid {
		if err := repos.Invoices.SetTaskFeeStatus(linkedTaskIDs(invoice.Items), model.FeeStatusPaid, now); err != nil {
			return "", err
		}
	}
	return status, nil
}

func newInvoiceItem(invoiceID string, req *InvoiceItemRequest, now time.Time) (*model.InvoiceItemModel, error) {
	item := &model.InvoiceItemModel{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		TaskID:      req.TaskID,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Discount:    req.Discount,
		NetTotal:    req.Amount.Sub(req.Discount),
		CreatedAt:   now,
	}
	if err := item.Validate(); err != nil {
		return nil, invalid("%v", err)
	}
	return item, nil
}

func lockInvoice(repos *repository.Repositories, id string) (*model.InvoiceModel, error) {
	invoice, err := repos.Invoices.LockByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvoiceNotFound
	}
	return invoice, err
}

func invoiceTotals(items []model.InvoiceItemModel, payments []model.PaymentModel) (decimal.Decimal, decimal.Decimal) {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.NetTotal)
	}
	paid := decimal.Zero
	for i := range payments {
		if payments[i].Counts() {
			paid = paid.Add(payments[i].Amount)
		}
	}
	return total, paid
}

func linkedTaskIDs(items []model.InvoiceItemModel) []string {
	ids := make([]string, 0, len(items))
	seen := map[string]bool{}
	for _, item := range items {
		if item.TaskID == nil || seen[*item.TaskID] {
			continue
		}
		seen[*item.TaskID] = true
		ids = append(ids, *item.TaskID)
	}
	return ids
}
