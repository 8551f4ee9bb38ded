package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/backend/internal/domain/billing"
)

// InvoiceView is the invoice as returned to callers. Amounts are integer
// minor units; the currency travels alongside. A filtered view carries
// only the items of the caller's permitted categories and a summary
// recomputed over that subset.
type InvoiceView struct {
	ID            uuid.UUID     `json:"id"`
	SiteID        uuid.UUID     `json:"site_id"`
	InvoiceNumber string        `json:"invoice_number"`
	VisitID       uuid.UUID     `json:"visit_id"`
	PatientID     uuid.UUID     `json:"patient_id"`
	Currency      string        `json:"currency"`
	Status        string        `json:"status"`
	Items         []ItemView    `json:"items"`
	Payments      []PaymentView `json:"payments"`
	Summary       SummaryView   `json:"summary"`
	Filtered      bool          `json:"filtered"`
	VoidedAt      *time.Time    `json:"voided_at,omitempty"`
	VoidReason    string        `json:"void_reason,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Version       int           `json:"version"`
}

// ItemView represents one invoice line in API responses
type ItemView struct {
	ID               uuid.UUID        `json:"id"`
	Category         string           `json:"category"`
	CatalogCode      string           `json:"catalog_code"`
	Description      string           `json:"description,omitempty"`
	Quantity         int64            `json:"quantity"`
	UnitPrice        int64            `json:"unit_price"`
	Subtotal         int64            `json:"subtotal"`
	Total            int64            `json:"total"`
	PaidAmount       int64            `json:"paid_amount"`
	RemainingBalance int64            `json:"remaining_balance"`
	IsPaid           bool             `json:"is_paid"`
	Completed        bool             `json:"completed"`
	CompletedBy      *uuid.UUID       `json:"completed_by,omitempty"`
	CompletedAt      *time.Time       `json:"completed_at,omitempty"`
	IsExternal       bool             `json:"is_external"`
	ExternalReason   string           `json:"external_reason,omitempty"`
	PayerPercent     *decimal.Decimal `json:"payer_percent,omitempty"`
	PayerAmount      *int64           `json:"payer_amount,omitempty"`
	CollectionPoint  string           `json:"collection_point"`
	AddedBy          uuid.UUID        `json:"added_by"`
	AddedAt          time.Time        `json:"added_at"`
}

// PaymentView represents one ledger entry in API responses
type PaymentView struct {
	ID              uuid.UUID  `json:"id"`
	ItemID          *uuid.UUID `json:"item_id,omitempty"`
	Amount          int64      `json:"amount"`
	PayerShare      int64      `json:"payer_share"`
	PatientShare    int64      `json:"patient_share"`
	Method          string     `json:"method"`
	CollectionPoint string     `json:"collection_point"`
	CollectedBy     uuid.UUID  `json:"collected_by"`
	CollectedAt     time.Time  `json:"collected_at"`
}

// SummaryView represents the financial summary in API responses
type SummaryView struct {
	Subtotal   int64 `json:"subtotal"`
	Discount   int64 `json:"discount"`
	Tax        int64 `json:"tax"`
	Total      int64 `json:"total"`
	AmountPaid int64 `json:"amount_paid"`
	AmountDue  int64 `json:"amount_due"`
}

func (s *LedgerService) fullView(invoice *billing.Invoice) *InvoiceView {
	view := baseView(invoice)
	view.Items = itemViews(invoice.Items)
	view.Payments = paymentViews(invoice.Payments)
	view.Summary = summaryView(invoice.Summary)
	return view
}

// filteredView narrows the invoice to the given categories. Payments are
// filtered by their item's category so a counter only sees its own ledger
// entries.
func (s *LedgerService) filteredView(invoice *billing.Invoice, categories []billing.Category) *InvoiceView {
	view := baseView(invoice)
	view.Filtered = true

	items := invoice.ItemsInCategories(categories)
	view.Items = itemViews(items)
	view.Summary = summaryView(invoice.FilteredSummary(categories))

	visible := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		visible[item.ID] = struct{}{}
	}
	view.Payments = make([]PaymentView, 0, len(invoice.Payments))
	for _, p := range invoice.Payments {
		if p.ItemID == nil {
			continue
		}
		if _, ok := visible[*p.ItemID]; ok {
			view.Payments = append(view.Payments, paymentView(p))
		}
	}
	return view
}

func baseView(invoice *billing.Invoice) *InvoiceView {
	return &InvoiceView{
		ID:            invoice.ID,
		SiteID:        invoice.SiteID,
		InvoiceNumber: invoice.InvoiceNumber,
		VisitID:       invoice.VisitID,
		PatientID:     invoice.PatientID,
		Currency:      string(invoice.Currency),
		Status:        invoice.Status.String(),
		VoidedAt:      invoice.VoidedAt,
		VoidReason:    invoice.VoidReason,
		CreatedAt:     invoice.CreatedAt,
		UpdatedAt:     invoice.UpdatedAt,
		Version:       invoice.Version,
	}
}

func itemViews(items []billing.InvoiceItem) []ItemView {
	views := make([]ItemView, 0, len(items))
	for i := range items {
		views = append(views, itemView(&items[i]))
	}
	return views
}

func itemView(item *billing.InvoiceItem) ItemView {
	view := ItemView{
		ID:               item.ID,
		Category:         item.Category.String(),
		CatalogCode:      item.CatalogCode,
		Description:      item.Description,
		Quantity:         item.Quantity,
		UnitPrice:        item.UnitPrice.Amount(),
		Subtotal:         item.Subtotal.Amount(),
		Total:            item.Total.Amount(),
		PaidAmount:       item.PaidAmount.Amount(),
		RemainingBalance: item.RemainingBalance().Amount(),
		IsPaid:           item.IsPaid(),
		Completed:        item.Completed,
		CompletedBy:      item.CompletedBy,
		CompletedAt:      item.CompletedAt,
		IsExternal:       item.IsExternal,
		ExternalReason:   item.ExternalReason,
		PayerPercent:     item.PayerPercent,
		CollectionPoint:  string(item.Category.ExpectedCollectionPoint()),
		AddedBy:          item.AddedBy,
		AddedAt:          item.AddedAt,
	}
	if item.PayerAmount != nil {
		amount := item.PayerAmount.Amount()
		view.PayerAmount = &amount
	}
	return view
}

func paymentViews(payments []billing.Payment) []PaymentView {
	views := make([]PaymentView, 0, len(payments))
	for _, p := range payments {
		views = append(views, paymentView(p))
	}
	return views
}

func summaryView(s billing.Summary) SummaryView {
	return SummaryView{
		Subtotal:   s.Subtotal.Amount(),
		Discount:   s.Discount.Amount(),
		Tax:        s.Tax.Amount(),
		Total:      s.Total.Amount(),
		AmountPaid: s.AmountPaid.Amount(),
		AmountDue:  s.AmountDue.Amount(),
	}
}

func paymentView(p billing.Payment) PaymentView {
	return PaymentView{
		ID:              p.ID,
		ItemID:          p.ItemID,
		Amount:          p.Amount.Amount(),
		PayerShare:      p.PayerShare.Amount(),
		PatientShare:    p.PatientShare.Amount(),
		Method:          string(p.Method),
		CollectionPoint: string(p.CollectionPoint),
		CollectedBy:     p.CollectedBy,
		CollectedAt:     p.CollectedAt,
	}
}
