package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/medflow/backend/internal/domain/pricing"
	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
	"github.com/medflow/backend/internal/infrastructure/persistence/models"
)

// GormCatalogRepository implements pricing.CatalogService using GORM
type GormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository creates a new GormCatalogRepository
func NewGormCatalogRepository(db *gorm.DB) *GormCatalogRepository {
	return &GormCatalogRepository{db: db}
}

// FindEntry returns the catalog entry for a code. Missing codes return
// a nil entry so the resolver can report them as unknown.
func (r *GormCatalogRepository) FindEntry(ctx context.Context, code string) (*pricing.CatalogEntry, error) {
	var model models.CatalogEntryModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	basePrice, err := valueobject.NewMoney(model.BasePriceMinorUnits, valueobject.Currency(model.Currency))
	if err != nil {
		return nil, err
	}
	return &pricing.CatalogEntry{
		Code:      model.Code,
		Name:      model.Name,
		BasePrice: basePrice,
		Active:    model.Active,
	}, nil
}

// GormSiteDirectory implements pricing.SiteDirectory using GORM
type GormSiteDirectory struct {
	db *gorm.DB
}

// NewGormSiteDirectory creates a new GormSiteDirectory
func NewGormSiteDirectory(db *gorm.DB) *GormSiteDirectory {
	return &GormSiteDirectory{db: db}
}

// PriceRate returns the site's price multiplier and invoice currency
func (d *GormSiteDirectory) PriceRate(ctx context.Context, siteID uuid.UUID) (decimal.Decimal, valueobject.Currency, error) {
	var model models.SiteModel
	if err := d.db.WithContext(ctx).
		Where("id = ? AND active = ?", siteID, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", shared.ErrNotFound
		}
		return decimal.Zero, "", err
	}
	return model.PriceRate, valueobject.Currency(model.Currency), nil
}

// Interface guards
var (
	_ pricing.CatalogService = (*GormCatalogRepository)(nil)
	_ pricing.SiteDirectory  = (*GormSiteDirectory)(nil)
)
