package billing

import (
	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// InvoiceCreatedEvent is raised when a new invoice is opened for a visit
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID            `json:"invoice_id"`
	InvoiceNumber string               `json:"invoice_number"`
	VisitID       uuid.UUID            `json:"visit_id"`
	PatientID     uuid.UUID            `json:"patient_id"`
	Currency      valueobject.Currency `json:"currency"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return "InvoiceCreated"
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceCreated", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		VisitID:         inv.VisitID,
		PatientID:       inv.PatientID,
		Currency:        inv.Currency,
	}
}

// InvoiceItemAddedEvent is raised when a billable item lands on an invoice
type InvoiceItemAddedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	ItemID        uuid.UUID         `json:"item_id"`
	Category      Category          `json:"category"`
	CatalogCode   string            `json:"catalog_code"`
	Quantity      int64             `json:"quantity"`
	Total         valueobject.Money `json:"total"`
	AddedBy       uuid.UUID         `json:"added_by"`
}

// EventType returns the event type name
func (e *InvoiceItemAddedEvent) EventType() string {
	return "InvoiceItemAdded"
}

// NewInvoiceItemAddedEvent creates a new InvoiceItemAddedEvent
func NewInvoiceItemAddedEvent(inv *Invoice, item *InvoiceItem) *InvoiceItemAddedEvent {
	return &InvoiceItemAddedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceItemAdded", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		ItemID:          item.ID,
		Category:        item.Category,
		CatalogCode:     item.CatalogCode,
		Quantity:        item.Quantity,
		Total:           item.Total,
		AddedBy:         item.AddedBy,
	}
}

// InvoiceItemCompletedEvent is raised when an item's service is delivered
type InvoiceItemCompletedEvent struct {
	shared.BaseDomainEvent
	InvoiceID   uuid.UUID `json:"invoice_id"`
	ItemID      uuid.UUID `json:"item_id"`
	Category    Category  `json:"category"`
	CompletedBy uuid.UUID `json:"completed_by"`
}

// EventType returns the event type name
func (e *InvoiceItemCompletedEvent) EventType() string {
	return "InvoiceItemCompleted"
}

// NewInvoiceItemCompletedEvent creates a new InvoiceItemCompletedEvent
func NewInvoiceItemCompletedEvent(inv *Invoice, item *InvoiceItem) *InvoiceItemCompletedEvent {
	e := &InvoiceItemCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceItemCompleted", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		ItemID:          item.ID,
		Category:        item.Category,
	}
	if item.CompletedBy != nil {
		e.CompletedBy = *item.CompletedBy
	}
	return e
}

// InvoiceItemMarkedExternalEvent is raised when an item is excluded from
// collection because the patient obtains the service elsewhere
type InvoiceItemMarkedExternalEvent struct {
	shared.BaseDomainEvent
	InvoiceID uuid.UUID `json:"invoice_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Category  Category  `json:"category"`
	Reason    string    `json:"reason"`
	MarkedBy  uuid.UUID `json:"marked_by"`
}

// EventType returns the event type name
func (e *InvoiceItemMarkedExternalEvent) EventType() string {
	return "InvoiceItemMarkedExternal"
}

// NewInvoiceItemMarkedExternalEvent creates a new InvoiceItemMarkedExternalEvent
func NewInvoiceItemMarkedExternalEvent(inv *Invoice, item *InvoiceItem) *InvoiceItemMarkedExternalEvent {
	e := &InvoiceItemMarkedExternalEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceItemMarkedExternal", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		ItemID:          item.ID,
		Category:        item.Category,
		Reason:          item.ExternalReason,
	}
	if item.MarkedExternalBy != nil {
		e.MarkedBy = *item.MarkedExternalBy
	}
	return e
}

// PaymentCollectedEvent is raised each time money is taken at a counter
type PaymentCollectedEvent struct {
	shared.BaseDomainEvent
	InvoiceID       uuid.UUID         `json:"invoice_id"`
	InvoiceNumber   string            `json:"invoice_number"`
	PaymentID       uuid.UUID         `json:"payment_id"`
	ItemID          uuid.UUID         `json:"item_id"`
	Category        Category          `json:"category"`
	Amount          valueobject.Money `json:"amount"`
	PayerShare      valueobject.Money `json:"payer_share"`
	PatientShare    valueobject.Money `json:"patient_share"`
	Method          PaymentMethod     `json:"method"`
	CollectionPoint CollectionPoint   `json:"collection_point"`
	CollectedBy     uuid.UUID         `json:"collected_by"`
}

// EventType returns the event type name
func (e *PaymentCollectedEvent) EventType() string {
	return "PaymentCollected"
}

// NewPaymentCollectedEvent creates a new PaymentCollectedEvent
func NewPaymentCollectedEvent(inv *Invoice, item *InvoiceItem, payment *Payment) *PaymentCollectedEvent {
	return &PaymentCollectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("PaymentCollected", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		PaymentID:       payment.ID,
		ItemID:          item.ID,
		Category:        item.Category,
		Amount:          payment.Amount,
		PayerShare:      payment.PayerShare,
		PatientShare:    payment.PatientShare,
		Method:          payment.Method,
		CollectionPoint: payment.CollectionPoint,
		CollectedBy:     payment.CollectedBy,
	}
}

// InvoicePaidEvent is raised when the last due item is settled
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID         `json:"invoice_id"`
	InvoiceNumber string            `json:"invoice_number"`
	VisitID       uuid.UUID         `json:"visit_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	Total         valueobject.Money `json:"total"`
	AmountPaid    valueobject.Money `json:"amount_paid"`
}

// EventType returns the event type name
func (e *InvoicePaidEvent) EventType() string {
	return "InvoicePaid"
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoicePaid", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		VisitID:         inv.VisitID,
		PatientID:       inv.PatientID,
		Total:           inv.Summary.Total,
		AmountPaid:      inv.Summary.AmountPaid,
	}
}

// InvoiceVoidedEvent is raised when an invoice is cancelled
type InvoiceVoidedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason"`
	VoidedBy      uuid.UUID `json:"voided_by"`
}

// EventType returns the event type name
func (e *InvoiceVoidedEvent) EventType() string {
	return "InvoiceVoided"
}

// NewInvoiceVoidedEvent creates a new InvoiceVoidedEvent
func NewInvoiceVoidedEvent(inv *Invoice, reason string) *InvoiceVoidedEvent {
	e := &InvoiceVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("InvoiceVoided", "Invoice", inv.ID, inv.SiteID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.InvoiceNumber,
		Reason:          reason,
	}
	if inv.VoidedBy != nil {
		e.VoidedBy = *inv.VoidedBy
	}
	return e
}
