package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/medflow/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateModel provides common persistence fields for aggregate roots.
// It extends BaseModel with version for optimistic locking.
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// SiteAggregateModel provides common persistence fields for site-scoped
// aggregate roots.
type SiteAggregateModel struct {
	AggregateModel
	SiteID uuid.UUID `gorm:"type:uuid;not null;index"`
}

// FromDomainSiteAggregateRoot populates SiteAggregateModel from the domain root
func (m *SiteAggregateModel) FromDomainSiteAggregateRoot(a shared.SiteAggregateRoot) {
	m.ID = a.ID
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
	m.Version = a.Version
	m.SiteID = a.SiteID
}

// ToDomainSiteAggregateRoot rebuilds the domain root from persistence fields
func (m *SiteAggregateModel) ToDomainSiteAggregateRoot() shared.SiteAggregateRoot {
	root := shared.SiteAggregateRoot{SiteID: m.SiteID}
	root.ID = m.ID
	root.CreatedAt = m.CreatedAt
	root.UpdatedAt = m.UpdatedAt
	root.Version = m.Version
	return root
}
