package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CatalogEntryModel represents a billable service or product in the catalog
type CatalogEntryModel struct {
	BaseModel
	Code                string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name                string `gorm:"type:varchar(255);not null"`
	BasePriceMinorUnits int64  `gorm:"not null"`
	Currency            string `gorm:"type:varchar(3);not null"`
	Active              bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for CatalogEntryModel
func (CatalogEntryModel) TableName() string {
	return "catalog_entries"
}

// SiteModel represents a clinic site and its pricing attributes
type SiteModel struct {
	BaseModel
	Name      string          `gorm:"type:varchar(255);not null"`
	PriceRate decimal.Decimal `gorm:"type:decimal(10,4);not null;default:1"`
	Currency  string          `gorm:"type:varchar(3);not null"`
	Active    bool            `gorm:"not null;default:true"`
}

// TableName returns the table name for SiteModel
func (SiteModel) TableName() string {
	return "sites"
}

// CoverageRuleModel represents a third-party payer coverage rule for a
// patient and category. Cap amounts may be denominated in a different
// currency than the invoice.
type CoverageRuleModel struct {
	BaseModel
	PatientID              uuid.UUID       `gorm:"type:uuid;not null;index:idx_coverage_patient_category"`
	Category               string          `gorm:"type:varchar(32);not null;index:idx_coverage_patient_category"`
	PayerID                uuid.UUID       `gorm:"type:uuid;not null"`
	Percentage             decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	CapAmountMinorUnits    *int64          `gorm:""`
	CapCurrency            *string         `gorm:"type:varchar(3)"`
	RequiresPreApproval    bool            `gorm:"not null;default:false"`
	PatientDiscountPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	Active                 bool            `gorm:"not null;default:true"`
	EffectiveFrom          *time.Time      `gorm:""`
	EffectiveUntil         *time.Time      `gorm:""`
}

// TableName returns the table name for CoverageRuleModel
func (CoverageRuleModel) TableName() string {
	return "coverage_rules"
}
