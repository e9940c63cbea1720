package api

import (
	"github.com/Zapuzallp/CASUITE-sub000/internal/service"
	"github.com/gin-gonic/gin"
)

// BillingController 发票与收款控制器
type BillingController struct {
	billingService service.BillingService
}

// NewBillingController 创建发票控制器
func NewBillingController(billingService service.BillingService) *BillingController {
	return &BillingController{billingService: billingService}
}

// listInvoicesQuery 发票列表查询参数
type listInvoicesQuery struct {
	ClientID string `form:"client_id"`
	Status   string `form:"status"`
	pageQuery
}

// remarksRequest 拒绝或取消收款时的备注
type remarksRequest struct {
	Remarks string `json:"remarks"`
}

// invoiceStatusRequest 发票状态变更
type invoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateInvoice 创建草稿发票
// @Router       /invoices [post]
func (c *BillingController) CreateInvoice(ctx *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	invoice, err := c.billingService.CreateInvoice(ctx.Request.Context(), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Created(ctx, invoice)
}

// GetInvoice 获取发票详情
// @Router       /invoices/{id} [get]
func (c *BillingController) GetInvoice(ctx *gin.Context) {
	invoice, err := c.billingService.GetInvoice(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, invoice)
}

// ListInvoices 发票列表
// @Router       /invoices [get]
func (c *BillingController) ListInvoices(ctx *gin.Context) {
	var query listInvoicesQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		badRequest(ctx, err)
		return
	}

	invoices, total, err := c.billingService.ListInvoices(ctx.Request.Context(),
		query.ClientID, query.Status, query.Page, query.PageSize)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Paginated(ctx, invoices, query.Page, query.PageSize, total)
}

// AddItem 追加发票明细
// @Router       /invoices/{id}/items [post]
func (c *BillingController) AddItem(ctx *gin.Context) {
	var req service.InvoiceItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	item, err := c.billingService.AddInvoiceItem(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Created(ctx, item)
}

// SetStatus 开票或退回草稿
// @Router       /invoices/{id}/status [put]
func (c *BillingController) SetStatus(ctx *gin.Context) {
	var req invoiceStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	invoice, err := c.billingService.SetInvoiceStatus(ctx.Request.Context(), ctx.Param("id"), req.Status)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, invoice)
}

// Summary 发票金额汇总
// @Router       /invoices/{id}/summary [get]
func (c *BillingController) Summary(ctx *gin.Context) {
	summary, err := c.billingService.InvoiceSummary(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, summary)
}

// RecordPayment 登记收款,待审批后计入
// @Router       /invoices/{id}/payments [post]
func (c *BillingController) RecordPayment(ctx *gin.Context) {
	var req service.RecordPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	payment, err := c.billingService.RecordPayment(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Created(ctx, payment)
}

// ApprovePayment 审批收款
// @Router       /payments/{id}/approve [post]
func (c *BillingController) ApprovePayment(ctx *gin.Context) {
	payment, err := c.billingService.ApprovePayment(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, payment)
}

// RejectPayment 拒绝收款
// @Router       /payments/{id}/reject [post]
func (c *BillingController) RejectPayment(ctx *gin.Context) {
	var req remarksRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
	}

	payment, err := c.billingService.RejectPayment(ctx.Request.Context(), ctx.Param("id"), req.Remarks)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, payment)
}

// CancelPayment 取消收款
// @Router       /payments/{id}/cancel [post]
func (c *BillingController) CancelPayment(ctx *gin.Context) {
	var req remarksRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			badRequest(ctx, err)
			return
		}
	}

	payment, err := c.billingService.CancelPayment(ctx.Request.Context(), ctx.Param("id"), req.Remarks)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, payment)
}

// BulkPaymentAction 批量审批、拒绝或取消收款
// @Router       /batch/payments [post]
func (c *BillingController) BulkPaymentAction(ctx *gin.Context) {
	var req service.BulkPaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	results, err := c.billingService.BulkPaymentAction(ctx.Request.Context(), &req)
	if err != nil {
		handleError(ctx, err)
		return
	}
	Success(ctx, results)
}
