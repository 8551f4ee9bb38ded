package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements billing.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID within a site
func (r *GormInvoiceRepository) FindByID(ctx context.Context, siteID, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("site_id = ? AND id = ?", siteID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByVisit finds the invoice attached to a visit. Returns nil, nil when
// the visit has no invoice yet; the caller decides whether to open one.
func (r *GormInvoiceRepository) FindByVisit(ctx context.Context, siteID, visitID uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("site_id = ? AND visit_id = ?", siteID, visitID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds an invoice by its human-facing number
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, siteID uuid.UUID, invoiceNumber string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("site_id = ? AND invoice_number = ?", siteID, invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists invoices for a site with filtering and pagination
func (r *GormInvoiceRepository) FindAll(ctx context.Context, siteID uuid.UUID, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("site_id = ?", siteID)
	query = applyInvoiceFilter(query, filter)

	filter.Filter = filter.Normalize()
	orderBy := ValidateSortField(filter.OrderBy, InvoiceSortFields, "created_at")
	query = query.
		Order(fmt.Sprintf("%s %s", orderBy, ValidateSortOrder(filter.OrderDir))).
		Limit(filter.PageSize).
		Offset(filter.Offset())

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = *invoiceModels[i].ToDomain()
	}
	return invoices, nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, siteID uuid.UUID, filter billing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("site_id = ?", siteID)
	query = applyInvoiceFilter(query, filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save inserts a new invoice. A second insert for the same visit maps to
// ALREADY_EXISTS so the application can fall back to the update path.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock updates an existing invoice guarded by its version.
// The update goes through a column map: updating from the struct would skip
// zero-valued fields, so a summary column dropping to 0 (amount_due on a
// fully paid invoice, a reset discount) would keep its stale row value.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model.MutableColumns())

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GenerateInvoiceNumber issues the next number in the site's daily sequence,
// formatted INV-YYYYMMDD-NNNNN. The counter row is bumped atomically so two
// counters can never draw the same number.
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, siteID uuid.UUID) (string, error) {
	day := time.Now().Format("20060102")
	var counter int64
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO invoice_sequences (site_id, day, counter)
		VALUES (?, ?, 1)
		ON CONFLICT (site_id, day)
		DO UPDATE SET counter = invoice_sequences.counter + 1
		RETURNING counter`, siteID, day).Scan(&counter).Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%05d", day, counter), nil
}

func applyInvoiceFilter(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.VisitID != nil {
		query = query.Where("visit_id = ?", *filter.VisitID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}
	if filter.Search != "" {
		query = query.Where("invoice_number ILIKE ?", "%"+filter.Search+"%")
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
