package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

func TestGormCoverageResolver_ResolveCoverage(t *testing.T) {
	t.Run("resolves active rule with cap", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		resolver := NewGormCoverageResolver(gormDB)

		patientID := uuid.New()
		payerID := uuid.New()
		now := time.Now()
		capAmount := int64(50_000)
		capCurrency := "XOF"

		mock.ExpectQuery(`SELECT \* FROM "coverage_rules" WHERE \(patient_id = \$1 AND category = \$2 AND active = \$3\)`).
			WithArgs(patientID, "medication", true, sqlmock.AnyArg(), sqlmock.AnyArg(), 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at",
				"patient_id", "category", "payer_id", "percentage",
				"cap_amount_minor_units", "cap_currency",
				"requires_pre_approval", "patient_discount_percent", "active",
				"effective_from", "effective_until",
			}).AddRow(
				uuid.New(), now, now,
				patientID, "medication", payerID, "80",
				capAmount, capCurrency,
				false, "0", true,
				nil, nil,
			))

		rule, err := resolver.ResolveCoverage(context.Background(), patientID, billing.CategoryMedication)
		require.NoError(t, err)
		require.NotNil(t, rule)
		assert.Equal(t, payerID, rule.PayerID)
		assert.True(t, rule.HasCoverage())
		assert.Equal(t, "80", rule.Percentage.String())
		require.NotNil(t, rule.CapAmount)
		assert.Equal(t, int64(50_000), rule.CapAmount.Amount())
		assert.Equal(t, valueobject.CurrencyXOF, rule.CapAmount.Currency())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rule means the patient pays in full", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		resolver := NewGormCoverageResolver(gormDB)

		mock.ExpectQuery(`SELECT \* FROM "coverage_rules"`).
			WillReturnError(gorm.ErrRecordNotFound)

		rule, err := resolver.ResolveCoverage(context.Background(), uuid.New(), billing.CategoryConsultation)
		require.NoError(t, err)
		assert.Nil(t, rule)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
