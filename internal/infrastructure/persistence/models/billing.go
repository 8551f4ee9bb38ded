package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// Items and payments are embedded JSONB documents: they are value objects
// that never exist outside their invoice, and loading the aggregate in one
// row keeps the optimistic lock covering everything the counters mutate.
type InvoiceModel struct {
	SiteAggregateModel
	InvoiceNumber string                `gorm:"type:varchar(30);not null;uniqueIndex:idx_invoice_site_number,priority:2"`
	VisitID       uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_site_visit,priority:2"`
	PatientID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Currency      string                `gorm:"type:varchar(3);not null"`
	Status        billing.InvoiceStatus `gorm:"type:varchar(10);not null;index"`
	Items         billing.InvoiceItems  `gorm:"type:jsonb;default:'[]'"`
	Payments      billing.Payments      `gorm:"type:jsonb;default:'[]'"`
	Subtotal      int64                 `gorm:"not null;default:0"`
	Discount      int64                 `gorm:"not null;default:0"`
	Tax           int64                 `gorm:"not null;default:0"`
	Total         int64                 `gorm:"not null;default:0"`
	AmountPaid    int64                 `gorm:"not null;default:0"`
	AmountDue     int64                 `gorm:"not null;default:0"`
	VoidedAt      *time.Time
	VoidReason    string     `gorm:"type:varchar(500)"`
	VoidedBy      *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice aggregate
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	currency := valueobject.Currency(m.Currency)
	return &billing.Invoice{
		SiteAggregateRoot: m.ToDomainSiteAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		VisitID:           m.VisitID,
		PatientID:         m.PatientID,
		Currency:          currency,
		Items:             m.Items,
		Payments:          m.Payments,
		Summary: billing.Summary{
			Subtotal:   valueobject.MustNewMoney(m.Subtotal, currency),
			Discount:   valueobject.MustNewMoney(m.Discount, currency),
			Tax:        valueobject.MustNewMoney(m.Tax, currency),
			Total:      valueobject.MustNewMoney(m.Total, currency),
			AmountPaid: valueobject.MustNewMoney(m.AmountPaid, currency),
			AmountDue:  valueobject.MustNewMoney(m.AmountDue, currency),
		},
		Status:     m.Status,
		VoidedAt:   m.VoidedAt,
		VoidReason: m.VoidReason,
		VoidedBy:   m.VoidedBy,
	}
}

// FromDomain populates the persistence model from a domain Invoice aggregate
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainSiteAggregateRoot(inv.SiteAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.VisitID = inv.VisitID
	m.PatientID = inv.PatientID
	m.Currency = string(inv.Currency)
	m.Status = inv.Status
	m.Items = inv.Items
	m.Payments = inv.Payments
	m.Subtotal = inv.Summary.Subtotal.Amount()
	m.Discount = inv.Summary.Discount.Amount()
	m.Tax = inv.Summary.Tax.Amount()
	m.Total = inv.Summary.Total.Amount()
	m.AmountPaid = inv.Summary.AmountPaid.Amount()
	m.AmountDue = inv.Summary.AmountDue.Amount()
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
	m.VoidedBy = inv.VoidedBy
}

// MutableColumns lists every column a version-guarded update writes, as a
// map so zero values reach the UPDATE instead of being skipped as struct
// zero fields. Identity columns (id, site_id, visit_id, invoice_number,
// patient_id, currency, created_at) never change after insert.
func (m *InvoiceModel) MutableColumns() map[string]interface{} {
	return map[string]interface{}{
		"updated_at":  m.UpdatedAt,
		"version":     m.Version,
		"status":      m.Status,
		"items":       m.Items,
		"payments":    m.Payments,
		"subtotal":    m.Subtotal,
		"discount":    m.Discount,
		"tax":         m.Tax,
		"total":       m.Total,
		"amount_paid": m.AmountPaid,
		"amount_due":  m.AmountDue,
		"voided_at":   m.VoidedAt,
		"void_reason": m.VoidReason,
		"voided_by":   m.VoidedBy,
	}
}

// InvoiceModelFromDomain creates a persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceSequenceModel backs per-site daily invoice numbering. One row per
// site and day, bumped atomically when a number is issued.
type InvoiceSequenceModel struct {
	SiteID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Day     string    `gorm:"type:varchar(8);primaryKey"`
	Counter int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceSequenceModel) TableName() string {
	return "invoice_sequences"
}
