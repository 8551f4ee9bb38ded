package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

func newMockGormDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

func TestGormCatalogRepository_FindEntry(t *testing.T) {
	t.Run("finds active entry", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormCatalogRepository(gormDB)

		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "catalog_entries" WHERE code = \$1 ORDER BY .* LIMIT .*`).
			WithArgs("CONS-01", 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at",
				"code", "name", "base_price_minor_units", "currency", "active",
			}).AddRow(uuid.New(), now, now, "CONS-01", "General consultation", int64(15_000), "XOF", true))

		entry, err := repo.FindEntry(context.Background(), "CONS-01")
		require.NoError(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "CONS-01", entry.Code)
		assert.Equal(t, int64(15_000), entry.BasePrice.Amount())
		assert.Equal(t, valueobject.CurrencyXOF, entry.BasePrice.Currency())
		assert.True(t, entry.Active)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns nil entry for unknown code", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		repo := NewGormCatalogRepository(gormDB)

		mock.ExpectQuery(`SELECT \* FROM "catalog_entries"`).
			WithArgs("GHOST", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		entry, err := repo.FindEntry(context.Background(), "GHOST")
		require.NoError(t, err)
		assert.Nil(t, entry)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormSiteDirectory_PriceRate(t *testing.T) {
	t.Run("returns the site rate and currency", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		dir := NewGormSiteDirectory(gormDB)

		siteID := uuid.New()
		now := time.Now()
		mock.ExpectQuery(`SELECT \* FROM "sites" WHERE id = \$1 AND active = \$2 ORDER BY .* LIMIT .*`).
			WithArgs(siteID, true, 1).
			WillReturnRows(sqlmock.NewRows([]string{
				"id", "created_at", "updated_at",
				"name", "price_rate", "currency", "active",
			}).AddRow(siteID, now, now, "Clinique Centrale", "1.1500", "XOF", true))

		rate, currency, err := dir.PriceRate(context.Background(), siteID)
		require.NoError(t, err)
		assert.True(t, rate.Equal(decimal.RequireFromString("1.15")))
		assert.Equal(t, valueobject.CurrencyXOF, currency)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown or inactive site is not found", func(t *testing.T) {
		gormDB, mock, mockDB := newMockGormDB(t)
		defer mockDB.Close()
		dir := NewGormSiteDirectory(gormDB)

		mock.ExpectQuery(`SELECT \* FROM "sites"`).
			WillReturnError(gorm.ErrRecordNotFound)

		_, _, err := dir.PriceRate(context.Background(), uuid.New())
		assert.True(t, shared.IsNotFound(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
