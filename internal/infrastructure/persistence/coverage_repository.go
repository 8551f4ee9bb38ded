package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
	"github.com/medflow/backend/internal/infrastructure/persistence/models"
)

// GormCoverageResolver implements billing.CoverageResolver using GORM.
// Rules are resolved fresh on every call; eligibility can change between
// payments so nothing is cached here.
type GormCoverageResolver struct {
	db *gorm.DB
}

// NewGormCoverageResolver creates a new GormCoverageResolver
func NewGormCoverageResolver(db *gorm.DB) *GormCoverageResolver {
	return &GormCoverageResolver{db: db}
}

// ResolveCoverage returns the coverage rule in force for the patient and
// category right now, or nil when the patient pays in full.
func (r *GormCoverageResolver) ResolveCoverage(ctx context.Context, patientID uuid.UUID, category billing.Category) (*billing.CoverageRule, error) {
	now := time.Now()

	var model models.CoverageRuleModel
	err := r.db.WithContext(ctx).
		Where("patient_id = ? AND category = ? AND active = ?", patientID, string(category), true).
		Where("effective_from IS NULL OR effective_from <= ?", now).
		Where("effective_until IS NULL OR effective_until > ?", now).
		Order("effective_from DESC NULLS LAST").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	rule := &billing.CoverageRule{
		PayerID:                model.PayerID,
		Percentage:             model.Percentage,
		RequiresPreApproval:    model.RequiresPreApproval,
		PatientDiscountPercent: model.PatientDiscountPercent,
	}
	if model.CapAmountMinorUnits != nil && model.CapCurrency != nil {
		capAmount, err := valueobject.NewMoney(*model.CapAmountMinorUnits, valueobject.Currency(*model.CapCurrency))
		if err != nil {
			return nil, err
		}
		rule.CapAmount = &capAmount
	}
	return rule, nil
}

var _ billing.CoverageResolver = (*GormCoverageResolver)(nil)
