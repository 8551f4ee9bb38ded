package pricing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// CatalogEntry is the base catalog record for a billable service or product.
// The base price is clinic-group wide; per-site adjustment happens in the
// resolver.
type CatalogEntry struct {
	Code      string
	Name      string
	BasePrice valueobject.Money
	Active    bool
}

// CatalogService exposes the service/product catalog to the pricing layer
type CatalogService interface {
	// FindEntry returns the catalog entry for a code, or NOT_FOUND
	FindEntry(ctx context.Context, code string) (*CatalogEntry, error)
}

// SiteDirectory exposes per-site pricing attributes
type SiteDirectory interface {
	// PriceRate returns the site's price multiplier (1 means base price,
	// 1.15 means +15%) and the currency invoices are issued in at the site.
	PriceRate(ctx context.Context, siteID uuid.UUID) (decimal.Decimal, valueobject.Currency, error)
}

// Resolver resolves the final unit price of a catalog code at a site:
// the base catalog price adjusted by the site's rate, rounded half away
// from zero to the minor unit.
type Resolver interface {
	ResolvePrice(ctx context.Context, siteID uuid.UUID, code string) (valueobject.Money, error)
}

// CatalogResolver is the canonical Resolver backed by the catalog and the
// site directory.
type CatalogResolver struct {
	catalog CatalogService
	sites   SiteDirectory
}

// NewCatalogResolver creates a resolver over the given catalog and sites
func NewCatalogResolver(catalog CatalogService, sites SiteDirectory) *CatalogResolver {
	return &CatalogResolver{catalog: catalog, sites: sites}
}

// ResolvePrice returns the site-adjusted unit price for a catalog code.
// Inactive or missing codes resolve to CATALOG_NOT_FOUND so a stale code on
// a tariff sheet surfaces immediately instead of billing at zero.
func (r *CatalogResolver) ResolvePrice(ctx context.Context, siteID uuid.UUID, code string) (valueobject.Money, error) {
	if code == "" {
		return valueobject.Money{}, shared.NewDomainError("CATALOG_NOT_FOUND", "Catalog code cannot be empty")
	}

	entry, err := r.catalog.FindEntry(ctx, code)
	if err != nil {
		return valueobject.Money{}, err
	}
	if entry == nil || !entry.Active {
		return valueobject.Money{}, shared.NewDomainError("CATALOG_NOT_FOUND",
			fmt.Sprintf("Catalog code %q is unknown or retired", code))
	}

	rate, currency, err := r.sites.PriceRate(ctx, siteID)
	if err != nil {
		return valueobject.Money{}, err
	}
	if entry.BasePrice.Currency() != currency {
		return valueobject.Money{}, shared.NewDomainError("CURRENCY_MISMATCH",
			fmt.Sprintf("Catalog code %q is priced in %s but site issues invoices in %s",
				code, entry.BasePrice.Currency(), currency))
	}
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}
	if rate.IsNegative() {
		return valueobject.Money{}, shared.NewDomainError("INVALID_PRICE_RATE", "Site price rate cannot be negative")
	}

	return entry.BasePrice.ApplyRate(rate), nil
}

type priceKey struct {
	siteID uuid.UUID
	code   string
}

// RequestScopedResolver memoizes resolved prices for the lifetime of one
// request. Prices can change between requests but every line added in one
// submission must see the same price, so the cache is built per request and
// thrown away with it.
type RequestScopedResolver struct {
	inner Resolver

	mu    sync.Mutex
	cache map[priceKey]valueobject.Money
}

// NewRequestScopedResolver wraps a resolver with per-request memoization
func NewRequestScopedResolver(inner Resolver) *RequestScopedResolver {
	return &RequestScopedResolver{
		inner: inner,
		cache: make(map[priceKey]valueobject.Money),
	}
}

// ResolvePrice returns the cached price for the site/code pair, resolving
// it through the wrapped resolver at most once. Errors are not cached.
func (r *RequestScopedResolver) ResolvePrice(ctx context.Context, siteID uuid.UUID, code string) (valueobject.Money, error) {
	key := priceKey{siteID: siteID, code: code}

	r.mu.Lock()
	cached, ok := r.cache[key]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	price, err := r.inner.ResolvePrice(ctx, siteID, code)
	if err != nil {
		return valueobject.Money{}, err
	}

	r.mu.Lock()
	r.cache[key] = price
	r.mu.Unlock()
	return price, nil
}
