package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// InvoiceItem is one billable service or product on an invoice. It is a
// value object inside the Invoice aggregate, stored as part of the JSONB
// item array. Items are never deleted; reversal is a compensating entry.
type InvoiceItem struct {
	ID          uuid.UUID            `json:"id"`
	Category    Category             `json:"category"`
	CatalogCode string               `json:"catalog_code"`
	Description string               `json:"description"`
	Quantity    int64                `json:"quantity"`
	UnitPrice   valueobject.Money    `json:"unit_price"` // site-adjusted, frozen at add time
	Subtotal    valueobject.Money    `json:"subtotal"`
	Discount    valueobject.Money    `json:"discount"` // line-level discount
	Total       valueobject.Money    `json:"total"`

	Completed   bool       `json:"completed"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	IsExternal       bool       `json:"is_external"`
	ExternalReason   string     `json:"external_reason,omitempty"`
	MarkedExternalBy *uuid.UUID `json:"marked_external_by,omitempty"`
	MarkedExternalAt *time.Time `json:"marked_external_at,omitempty"`

	PaidAmount valueobject.Money `json:"paid_amount"`
	PaidTo     CollectionPoint   `json:"paid_to,omitempty"`

	// Coverage snapshot, computed once at payment time and frozen.
	PayerPercent *decimal.Decimal   `json:"payer_percent,omitempty"`
	PayerAmount  *valueobject.Money `json:"payer_amount,omitempty"`

	AddedBy uuid.UUID `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
}

// IsPaid is derived state: the item is paid once the collected amount
// reaches its total. It never implies the invoice itself is paid.
func (i *InvoiceItem) IsPaid() bool {
	cmp, err := i.PaidAmount.Cmp(i.Total)
	if err != nil {
		return false
	}
	return cmp >= 0
}

// RemainingBalance returns total minus paid, floored at zero
func (i *InvoiceItem) RemainingBalance() valueobject.Money {
	remaining, err := i.Total.SubtractSigned(i.PaidAmount)
	if err != nil {
		return valueobject.Zero(i.Total.Currency())
	}
	return remaining.ClampNonNegative()
}

// CountsTowardDue reports whether the item participates in the amount-due
// calculation: external items are excluded permanently, fully paid items
// carry no remaining balance.
func (i *InvoiceItem) CountsTowardDue() bool {
	return !i.IsExternal && !i.IsPaid()
}

// InvoiceItems is the aggregate's item array, stored as JSONB
type InvoiceItems []InvoiceItem

// Value implements driver.Valuer for JSONB storage
func (items InvoiceItems) Value() (driver.Value, error) {
	if items == nil {
		return "[]", nil
	}
	return json.Marshal(items)
}

// Scan implements sql.Scanner for JSONB retrieval
func (items *InvoiceItems) Scan(value interface{}) error {
	if value == nil {
		*items = InvoiceItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan InvoiceItems: unsupported type")
	}

	if len(bytes) == 0 {
		*items = InvoiceItems{}
		return nil
	}
	return json.Unmarshal(bytes, items)
}

// FindByID returns the index of the item with the given ID, or -1
func (items InvoiceItems) FindByID(id uuid.UUID) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}
