package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the status of an invoice. It is always a pure
// function of the item/payment state (plus the explicit void marker) and is
// recomputed from scratch after every mutation, never set from a branch of
// business logic.
type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"   // no items yet
	InvoiceStatusIssued  InvoiceStatus = "issued"  // items exist, nothing paid
	InvoiceStatusPartial InvoiceStatus = "partial" // some but not all due collected
	InvoiceStatusPaid    InvoiceStatus = "paid"    // every non-external item fully paid
	InvoiceStatusVoid    InvoiceStatus = "void"    // terminal, explicit cancellation
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusIssued, InvoiceStatusPartial,
		InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for the void status
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusVoid
}

// Summary is the running financial aggregate over the invoice items
type Summary struct {
	Subtotal   valueobject.Money `json:"subtotal"`
	Discount   valueobject.Money `json:"discount"`
	Tax        valueobject.Money `json:"tax"`
	Total      valueobject.Money `json:"total"`
	AmountPaid valueobject.Money `json:"amount_paid"`
	AmountDue  valueobject.Money `json:"amount_due"`
}

// Invoice is the per-visit financial aggregate. It owns the item list, the
// payment list and the running summary; every state change goes through one
// of its methods and ends with a full summary/status recomputation.
// Invoices are never physically deleted; void is a terminal status.
type Invoice struct {
	shared.SiteAggregateRoot
	InvoiceNumber string
	VisitID       uuid.UUID
	PatientID     uuid.UUID
	Currency      valueobject.Currency
	Items         InvoiceItems
	Payments      Payments
	Summary       Summary
	Status        InvoiceStatus
	VoidedAt      *time.Time
	VoidReason    string
	VoidedBy      *uuid.UUID
}

// NewInvoice creates the invoice for a visit. It starts in draft with no
// items; the first AddItem is what normally triggers creation.
func NewInvoice(siteID, visitID, patientID uuid.UUID, invoiceNumber string, currency valueobject.Currency) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if siteID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SITE", "Site ID cannot be empty")
	}
	if visitID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_VISIT", "Visit ID cannot be empty")
	}
	if patientID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PATIENT", "Patient ID cannot be empty")
	}
	if currency == "" {
		currency = valueobject.DefaultCurrency
	}

	inv := &Invoice{
		SiteAggregateRoot: shared.NewSiteAggregateRoot(siteID),
		InvoiceNumber:     invoiceNumber,
		VisitID:           visitID,
		PatientID:         patientID,
		Currency:          currency,
		Items:             InvoiceItems{},
		Payments:          Payments{},
		Summary:           emptySummary(currency),
		Status:            InvoiceStatusDraft,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))
	return inv, nil
}

func emptySummary(currency valueobject.Currency) Summary {
	zero := valueobject.Zero(currency)
	return Summary{
		Subtotal:   zero,
		Discount:   zero,
		Tax:        zero,
		Total:      zero,
		AmountPaid: zero,
		AmountDue:  zero,
	}
}

// ItemByID returns the item with the given ID or a NotFound error
func (inv *Invoice) ItemByID(itemID uuid.UUID) (*InvoiceItem, error) {
	idx := inv.Items.FindByID(itemID)
	if idx < 0 {
		return nil, shared.ErrNotFound
	}
	return &inv.Items[idx], nil
}

// AddItem appends a billable item. The unit price is the site-adjusted
// price resolved by the caller; it is captured here and immutable afterwards.
func (inv *Invoice) AddItem(category Category, catalogCode, description string, quantity int64, unitPrice valueobject.Money, addedBy uuid.UUID) (*InvoiceItem, error) {
	if inv.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a void invoice")
	}
	if !category.IsValid() {
		return nil, shared.NewDomainError("INVALID_CATEGORY", fmt.Sprintf("Unknown item category %q", category))
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if catalogCode == "" {
		return nil, shared.NewDomainError("INVALID_CATALOG_CODE", "Catalog code cannot be empty")
	}
	if unitPrice.Currency() != inv.Currency {
		return nil, shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("Unit price currency %s does not match invoice currency %s", unitPrice.Currency(), inv.Currency))
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Unit price cannot be negative")
	}

	subtotal := unitPrice.MultiplyQuantity(quantity)
	item := InvoiceItem{
		ID:          uuid.New(),
		Category:    category,
		CatalogCode: catalogCode,
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    subtotal,
		Discount:    valueobject.Zero(inv.Currency),
		Total:       subtotal,
		PaidAmount:  valueobject.Zero(inv.Currency),
		AddedBy:     addedBy,
		AddedAt:     time.Now(),
	}
	inv.Items = append(inv.Items, item)

	if err := inv.recompute(); err != nil {
		return nil, err
	}
	inv.touch()

	added := &inv.Items[len(inv.Items)-1]
	inv.AddDomainEvent(NewInvoiceItemAddedEvent(inv, added))
	return added, nil
}

// CompleteItem marks the item's service as delivered. A repeat call by the
// same caller is a no-op success; a different caller overwrites the
// completer, keeping the last hand that touched the item.
func (inv *Invoice) CompleteItem(itemID, callerID uuid.UUID) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot complete items on a void invoice")
	}

	item, err := inv.ItemByID(itemID)
	if err != nil {
		return err
	}
	if item.Completed && item.CompletedBy != nil && *item.CompletedBy == callerID {
		return nil
	}

	now := time.Now()
	item.Completed = true
	item.CompletedBy = &callerID
	item.CompletedAt = &now

	inv.touch()
	inv.AddDomainEvent(NewInvoiceItemCompletedEvent(inv, item))
	return nil
}

// MarkItemExternal records that the patient obtains this service elsewhere:
// the item is permanently excluded from the amount-due calculation without
// requiring payment. A partially paid item cannot be marked external; the
// caller must model a reversal as a separate compensating operation first.
func (inv *Invoice) MarkItemExternal(itemID uuid.UUID, reason string, callerID uuid.UUID) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot mark items on a void invoice")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "External reason is required")
	}

	item, err := inv.ItemByID(itemID)
	if err != nil {
		return err
	}
	if item.IsExternal {
		return shared.NewDomainError("CONFLICT", "Item is already marked external")
	}
	if item.PaidAmount.IsPositive() {
		return shared.NewDomainError("CONFLICT", "Cannot mark a partially paid item external without reversing its payments")
	}

	now := time.Now()
	item.IsExternal = true
	item.ExternalReason = reason
	item.MarkedExternalBy = &callerID
	item.MarkedExternalAt = &now

	if err := inv.recompute(); err != nil {
		return err
	}
	inv.touch()
	inv.AddDomainEvent(NewInvoiceItemMarkedExternalEvent(inv, item))
	return nil
}

// CollectPaymentParams carries everything a counter submits with a payment.
// A zero Amount means "the item's remaining balance" - never the original
// total, so paying twice on a partially paid item cannot silently overpay.
type CollectPaymentParams struct {
	ItemID          uuid.UUID
	Amount          valueobject.Money
	Method          PaymentMethod
	CollectionPoint CollectionPoint
	CollectedBy     uuid.UUID

	// Rule is the coverage in force at this instant; resolved by the caller
	// immediately before this call and never cached across payments.
	Rule    *CoverageRule
	Convert CurrencyConverter

	// ToleranceMinorUnits is the fixed absolute overpayment tolerance.
	// It is deliberately independent of the invoice size.
	ToleranceMinorUnits int64
}

// CollectPayment applies a payment to one item. The cost split between
// payer and patient is computed here, once, and frozen on the item; the
// payer share is counted toward the paid amount immediately.
func (inv *Invoice) CollectPayment(p CollectPaymentParams) (*Payment, error) {
	if inv.Status.IsTerminal() {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot collect payments on a void invoice")
	}

	item, err := inv.ItemByID(p.ItemID)
	if err != nil {
		return nil, err
	}
	if item.IsExternal {
		return nil, shared.NewDomainError("CONFLICT", "Cannot collect payment for an item obtained externally")
	}
	if !p.Method.IsValid() {
		return nil, shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method %q", p.Method))
	}
	if !p.CollectionPoint.IsValid() {
		return nil, shared.NewDomainError("INVALID_COLLECTION_POINT", fmt.Sprintf("Unknown collection point %q", p.CollectionPoint))
	}
	if p.CollectionPoint != PointMainCashier && p.CollectionPoint != item.Category.ExpectedCollectionPoint() {
		return nil, shared.NewDomainError("CONFLICT",
			fmt.Sprintf("Payments for %s items are collected at %s", item.Category, item.Category.ExpectedCollectionPoint()))
	}
	if p.Amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount cannot be negative")
	}
	if !p.Amount.IsZero() && p.Amount.Currency() != inv.Currency {
		return nil, shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("Payment currency %s does not match invoice currency %s", p.Amount.Currency(), inv.Currency))
	}

	remaining := item.RemainingBalance()
	if remaining.IsZero() {
		return nil, shared.ErrOverPayment
	}

	effective := p.Amount
	if effective.IsZero() {
		effective = remaining
	}

	// Fixed absolute tolerance. Never proportional to the invoice size.
	projected := item.PaidAmount.MustAdd(effective)
	limit := valueobject.MustNewMoney(item.Total.Amount()+p.ToleranceMinorUnits, inv.Currency)
	over, err := projected.GreaterThan(limit)
	if err != nil {
		return nil, err
	}
	if over {
		return nil, shared.ErrOverPayment
	}

	// Freeze the coverage snapshot on first payment against the item.
	if p.Rule.HasCoverage() && item.PayerAmount == nil {
		split, err := SplitCoverage(item.Total, p.Rule, p.Convert)
		if err != nil {
			return nil, err
		}
		pct := p.Rule.Percentage
		item.PayerPercent = &pct
		payerAmount := split.PayerAmount
		item.PayerAmount = &payerAmount
	}

	shares, err := SplitCoverage(effective, p.Rule, p.Convert)
	if err != nil {
		return nil, err
	}

	payment := Payment{
		ID:              uuid.New(),
		ItemID:          &item.ID,
		Amount:          effective,
		Method:          p.Method,
		CollectionPoint: p.CollectionPoint,
		CollectedBy:     p.CollectedBy,
		CollectedAt:     time.Now(),
		PayerShare:      shares.PayerAmount,
		PatientShare:    shares.PatientAmount,
	}
	inv.Payments = append(inv.Payments, payment)

	item.PaidAmount = projected
	item.PaidTo = p.CollectionPoint

	if err := inv.recompute(); err != nil {
		return nil, err
	}
	inv.touch()

	inv.AddDomainEvent(NewPaymentCollectedEvent(inv, item, &inv.Payments[len(inv.Payments)-1]))
	if inv.Status == InvoiceStatusPaid {
		inv.AddDomainEvent(NewInvoicePaidEvent(inv))
	}
	return &inv.Payments[len(inv.Payments)-1], nil
}

// SetDiscount applies an invoice-level discount. A discount above the
// subtotal is clamped, not rejected: it is expected input from the billing
// UI slider. The returned flag tells the caller to log the clamp.
func (inv *Invoice) SetDiscount(discount valueobject.Money, callerID uuid.UUID) (clamped bool, err error) {
	if inv.Status.IsTerminal() {
		return false, shared.NewDomainError("INVALID_STATE", "Cannot discount a void invoice")
	}
	if discount.IsNegative() {
		return false, shared.NewDomainError("INVALID_AMOUNT", "Discount cannot be negative")
	}
	if discount.Currency() != inv.Currency {
		return false, shared.NewDomainError("CURRENCY_MISMATCH", "Discount currency does not match invoice currency")
	}

	exceeds, err := discount.GreaterThan(inv.Summary.Subtotal)
	if err != nil {
		return false, err
	}
	if exceeds {
		discount = inv.Summary.Subtotal
		clamped = true
	}

	inv.Summary.Discount = discount
	if err := inv.recompute(); err != nil {
		return clamped, err
	}
	inv.touch()
	return clamped, nil
}

// Void cancels the invoice. Terminal; reachable from any non-void state.
func (inv *Invoice) Void(reason string, callerID uuid.UUID) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Invoice is already void")
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Void reason is required")
	}

	now := time.Now()
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.VoidedBy = &callerID

	if err := inv.recompute(); err != nil {
		return err
	}
	inv.touch()
	inv.AddDomainEvent(NewInvoiceVoidedEvent(inv, reason))
	return nil
}

// recompute rebuilds the summary and derives the status by scanning every
// item. Deliberately O(items) instead of incrementally tracked: per-visit
// item counts are small and a full rescan cannot forget an update.
func (inv *Invoice) recompute() error {
	zero := valueobject.Zero(inv.Currency)
	subtotal := zero
	itemTotal := zero
	amountPaid := zero
	amountDue := zero

	hasNonExternal := false
	allNonExternalPaid := true

	for i := range inv.Items {
		item := &inv.Items[i]
		if item.IsExternal {
			continue
		}
		hasNonExternal = true

		var err error
		if subtotal, err = subtotal.Add(item.Subtotal); err != nil {
			return err
		}
		if itemTotal, err = itemTotal.Add(item.Total); err != nil {
			return err
		}
		if amountPaid, err = amountPaid.Add(item.PaidAmount); err != nil {
			return err
		}
		if !item.IsPaid() {
			allNonExternalPaid = false
			if amountDue, err = amountDue.Add(item.RemainingBalance()); err != nil {
				return err
			}
		}
	}

	// Re-clamp the invoice discount: marking items external can pull the
	// subtotal below an earlier discount.
	discount := inv.Summary.Discount
	if discount.Currency() == "" {
		discount = zero
	}
	if exceeds, _ := discount.GreaterThan(subtotal); exceeds {
		discount = subtotal
	}
	tax := inv.Summary.Tax
	if tax.Currency() == "" {
		tax = zero
	}

	total, err := itemTotal.Subtract(discount)
	if err != nil {
		return shared.NewDomainError("LEDGER_INCONSISTENCY", "Invoice total would be negative after discount")
	}
	if total, err = total.Add(tax); err != nil {
		return err
	}
	if total.IsNegative() || amountDue.IsNegative() {
		return shared.NewDomainError("LEDGER_INCONSISTENCY", "Summary recomputation produced a negative amount")
	}

	inv.Summary = Summary{
		Subtotal:   subtotal,
		Discount:   discount,
		Tax:        tax,
		Total:      total,
		AmountPaid: amountPaid,
		AmountDue:  amountDue,
	}

	inv.Status = inv.deriveStatus(hasNonExternal, allNonExternalPaid, amountPaid)
	return nil
}

// deriveStatus is the single place status is computed
func (inv *Invoice) deriveStatus(hasNonExternal, allNonExternalPaid bool, amountPaid valueobject.Money) InvoiceStatus {
	switch {
	case inv.VoidedAt != nil:
		return InvoiceStatusVoid
	case len(inv.Items) == 0:
		return InvoiceStatusDraft
	case hasNonExternal && allNonExternalPaid:
		return InvoiceStatusPaid
	case amountPaid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusIssued
	}
}

// RecomputeStatus re-derives summary and status from the current item and
// payment state. Exposed so loaded aggregates can be verified against
// whatever status was last written.
func (inv *Invoice) RecomputeStatus() error {
	return inv.recompute()
}

// FilteredSummary computes the summary over the subset of items whose
// category passes the given filter, used to give each counter its own view.
func (inv *Invoice) FilteredSummary(categories []Category) Summary {
	allowed := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}

	zero := valueobject.Zero(inv.Currency)
	s := emptySummary(inv.Currency)
	for i := range inv.Items {
		item := &inv.Items[i]
		if _, ok := allowed[item.Category]; !ok {
			continue
		}
		if item.IsExternal {
			continue
		}
		s.Subtotal = s.Subtotal.MustAdd(item.Subtotal)
		s.Total = s.Total.MustAdd(item.Total)
		s.AmountPaid = s.AmountPaid.MustAdd(item.PaidAmount)
		if !item.IsPaid() {
			s.AmountDue = s.AmountDue.MustAdd(item.RemainingBalance())
		}
	}
	s.Discount = zero
	s.Tax = zero
	return s
}

// ItemsInCategories returns the items whose category is in the given set
func (inv *Invoice) ItemsInCategories(categories []Category) []InvoiceItem {
	allowed := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		allowed[c] = struct{}{}
	}
	filtered := make([]InvoiceItem, 0, len(inv.Items))
	for _, item := range inv.Items {
		if _, ok := allowed[item.Category]; ok {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// touch bumps UpdatedAt and the optimistic lock version
func (inv *Invoice) touch() {
	inv.UpdatedAt = time.Now()
	inv.IncrementVersion()
}
