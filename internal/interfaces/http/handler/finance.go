package handler

import (
	"github.com/erp/finkernel/internal/application/finance"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/erp/finkernel/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts a set of routes on a router group
type RouteRegistrar = router.RouteRegistrar

// FinanceHandlers bundles the handlers of every finance endpoint
type FinanceHandlers struct {
	Vendors      *EntityHandler[finance.VendorRequest, finance.UpdateVendorRequest, finance.VendorResponse]
	Customers    *EntityHandler[finance.CustomerRequest, finance.UpdateCustomerRequest, finance.CustomerResponse]
	BankAccounts *EntityHandler[finance.CreateBankAccountRequest, finance.UpdateBankAccountRequest, finance.BankAccountResponse]
	Invoices     *EntityHandler[finance.InvoiceRequest, finance.UpdateInvoiceRequest, finance.InvoiceResponse]
	CreditNotes  *EntityHandler[finance.CreditNoteRequest, finance.UpdateCreditNoteRequest, finance.CreditNoteResponse]
	Receipts     *EntityHandler[finance.ReceiptRequest, finance.UpdateReceiptRequest, finance.ReceiptResponse]
	Payments     *EntityHandler[finance.PaymentRequest, finance.UpdatePaymentRequest, finance.PaymentResponse]
	Journals     *JournalHandler
	Periods      *PeriodHandler
	Audit        *AuditHandler
	SoD          *SoDHandler
}

// NewFinanceHandlers creates the handlers over svc. idem may be nil, which
// disables Idempotency-Key handling.
func NewFinanceHandlers(svc *finance.Services, idem *finance.Idempotency) *FinanceHandlers {
	return &FinanceHandlers{
		Vendors:      NewEntityHandler(shared.EntityVendor, "/vendors", svc.Vendors, idem),
		Customers:    NewEntityHandler(shared.EntityCustomer, "/customers", svc.Customers, idem),
		BankAccounts: NewEntityHandler(shared.EntityBankAccount, "/bank-accounts", svc.BankAccounts, idem),
		Invoices:     NewEntityHandler(shared.EntityInvoice, "/invoices", svc.Invoices, idem),
		CreditNotes:  NewEntityHandler(shared.EntityCreditNote, "/credit-notes", svc.CreditNotes, idem),
		Receipts:     NewEntityHandler(shared.EntityReceipt, "/receipts", svc.Receipts, idem),
		Payments:     NewEntityHandler(shared.EntityPayment, "/payments", svc.Payments, idem),
		Journals:     NewJournalHandler(svc.Journals, idem),
		Periods:      NewPeriodHandler(svc.Periods),
		Audit:        NewAuditHandler(svc.Audit),
		SoD:          NewSoDHandler(svc.Approvals),
	}
}

// Registrars lists every registrar in mount order
func (h *FinanceHandlers) Registrars() []RouteRegistrar {
	return []RouteRegistrar{
		h.Vendors, h.Customers, h.BankAccounts,
		h.Invoices, h.CreditNotes, h.Receipts, h.Payments,
		h.Journals, h.Periods, h.Audit, h.SoD,
	}
}

// JournalHandler serves journal entries, which add reversal to the common
// entity routes
type JournalHandler struct {
	*EntityHandler[finance.JournalEntryRequest, finance.UpdateJournalEntryRequest, finance.JournalEntryResponse]
	svc *finance.JournalService
}

// NewJournalHandler creates a new JournalHandler
func NewJournalHandler(svc *finance.JournalService, idem *finance.Idempotency) *JournalHandler {
	return &JournalHandler{
		EntityHandler: NewEntityHandler(shared.EntityJournal, "/journal-entries", svc, idem),
		svc:           svc,
	}
}

// RegisterRoutes mounts the entity routes plus POST /:id/reverse
func (h *JournalHandler) RegisterRoutes(rg *gin.RouterGroup) {
	h.EntityHandler.RegisterRoutes(rg)
	rg.POST(h.path+"/:id/reverse", h.Reverse)
}

// Reverse handles POST /journal-entries/:id/reverse. The reversal is a new
// entry, so the request honours Idempotency-Key like a create.
func (h *JournalHandler) Reverse(c *gin.Context) {
	tc, ok := h.scope(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c, shared.EntityJournal)
	if !ok {
		return
	}
	var req finance.ReverseJournalEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	scope := h.path + "/" + id.String() + "/reverse"
	out, replayed, err := finance.Once(ctx, h.idem, tc, scope, c.GetHeader(middleware.HeaderIdempotencyKey), func() (*finance.ReversalResponse, error) {
		return h.svc.Reverse(ctx, tc, id, req)
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	markReplay(c, replayed)
	h.Created(c, out)
}
