package event

import (
	"context"

	"go.uber.org/zap"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared"
)

// BillingAuditHandler writes a structured audit line for every money-moving
// invoice event. The cash ledger is reconciled daily against these lines, so
// the handler subscribes to the payment and void events only.
type BillingAuditHandler struct {
	logger *zap.Logger
}

// NewBillingAuditHandler creates a new BillingAuditHandler
func NewBillingAuditHandler(logger *zap.Logger) *BillingAuditHandler {
	return &BillingAuditHandler{logger: logger.Named("billing-audit")}
}

// EventTypes returns the events this handler subscribes to
func (h *BillingAuditHandler) EventTypes() []string {
	return []string{"PaymentCollected", "InvoiceVoided", "InvoicePaid"}
}

// Handle writes the audit line for one event
func (h *BillingAuditHandler) Handle(_ context.Context, evt shared.DomainEvent) error {
	switch e := evt.(type) {
	case *billing.PaymentCollectedEvent:
		h.logger.Info("payment collected",
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("payment_id", e.PaymentID.String()),
			zap.String("category", string(e.Category)),
			zap.Int64("amount", e.Amount.Amount()),
			zap.Int64("payer_share", e.PayerShare.Amount()),
			zap.Int64("patient_share", e.PatientShare.Amount()),
			zap.String("method", string(e.Method)),
			zap.String("collection_point", string(e.CollectionPoint)),
			zap.String("collected_by", e.CollectedBy.String()),
			zap.String("site_id", e.SiteID().String()),
		)
	case *billing.InvoiceVoidedEvent:
		h.logger.Warn("invoice voided",
			zap.String("invoice_number", e.InvoiceNumber),
			zap.String("reason", e.Reason),
			zap.String("voided_by", e.VoidedBy.String()),
			zap.String("site_id", e.SiteID().String()),
		)
	case *billing.InvoicePaidEvent:
		h.logger.Info("invoice settled",
			zap.String("invoice_number", e.InvoiceNumber),
			zap.Int64("total", e.Total.Amount()),
			zap.Int64("amount_paid", e.AmountPaid.Amount()),
			zap.String("site_id", e.SiteID().String()),
		)
	}
	return nil
}

var _ shared.EventHandler = (*BillingAuditHandler)(nil)
