package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/shared"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	PatientID *uuid.UUID     // Filter by patient
	VisitID   *uuid.UUID     // Filter by visit
	Status    *InvoiceStatus // Filter by status
	FromDate  *time.Time     // Filter by creation date range start
	ToDate    *time.Time     // Filter by creation date range end
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice by ID within a site
	FindByID(ctx context.Context, siteID, id uuid.UUID) (*Invoice, error)

	// FindByVisit finds the invoice attached to a visit; a visit has at most one
	FindByVisit(ctx context.Context, siteID, visitID uuid.UUID) (*Invoice, error)

	// FindByInvoiceNumber finds an invoice by its human-facing number
	FindByInvoiceNumber(ctx context.Context, siteID uuid.UUID, invoiceNumber string) (*Invoice, error)

	// FindAll lists invoices for a site with filtering and pagination
	FindAll(ctx context.Context, siteID uuid.UUID, filter InvoiceFilter) ([]Invoice, error)

	// Count counts invoices matching the filter
	Count(ctx context.Context, siteID uuid.UUID, filter InvoiceFilter) (int64, error)

	// Save inserts a new invoice
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates an existing invoice guarded by its version.
	// Returns ErrConcurrencyConflict when another writer got there first.
	SaveWithLock(ctx context.Context, invoice *Invoice) error

	// GenerateInvoiceNumber issues the next sequential invoice number for a site
	GenerateInvoiceNumber(ctx context.Context, siteID uuid.UUID) (string, error)
}
