package billing

import (
	"context"

	"github.com/google/uuid"
)

// ViewCache caches rendered invoice views for the unrestricted read path.
// Implementations must be safe for concurrent use. Get returns (nil, nil)
// on a cache miss; all methods are best-effort from the caller's point of
// view and their errors are logged, never surfaced to counters.
type ViewCache interface {
	Get(ctx context.Context, siteID, invoiceID uuid.UUID) (*InvoiceView, error)
	Set(ctx context.Context, siteID, invoiceID uuid.UUID, view *InvoiceView) error
	Invalidate(ctx context.Context, siteID, invoiceID uuid.UUID) error
}
