package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/pricing"
	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// PermissionVoid and PermissionDiscount gate the two invoice-level
// mutations that are not part of the per-category matrix.
const (
	PermissionVoid     = "invoices.void"
	PermissionDiscount = "invoices.discount"
)

// LedgerService is the application service for the visit invoice ledger.
// It owns the load-mutate-save cycle around the invoice aggregate,
// including the optimistic-lock retry loop, permission checks and event
// publishing. Counters at different desks hit the same invoice
// concurrently, so every mutation goes through executeWithRetry.
type LedgerService struct {
	invoiceRepo    billing.InvoiceRepository
	priceResolver  pricing.Resolver
	coverage       billing.CoverageResolver
	gate           *billing.PermissionGate
	eventPublisher shared.EventPublisher
	convert        billing.CurrencyConverter
	viewCache      ViewCache
	logger         *zap.Logger

	defaultCurrency     valueobject.Currency
	toleranceMinorUnits int64
	retryAttempts       int
}

// LedgerServiceConfig bundles the LedgerService dependencies
type LedgerServiceConfig struct {
	InvoiceRepo    billing.InvoiceRepository
	PriceResolver  pricing.Resolver
	Coverage       billing.CoverageResolver
	Gate           *billing.PermissionGate
	EventPublisher shared.EventPublisher
	Convert        billing.CurrencyConverter
	ViewCache      ViewCache // optional, caches unrestricted views
	Logger         *zap.Logger

	DefaultCurrency     valueobject.Currency
	ToleranceMinorUnits int64
	RetryAttempts       int
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(cfg LedgerServiceConfig) *LedgerService {
	if cfg.Convert == nil {
		cfg.Convert = billing.IdentityConverter
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = valueobject.DefaultCurrency
	}
	if cfg.ToleranceMinorUnits <= 0 {
		cfg.ToleranceMinorUnits = 1
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 4
	}
	return &LedgerService{
		invoiceRepo:         cfg.InvoiceRepo,
		priceResolver:       cfg.PriceResolver,
		coverage:            cfg.Coverage,
		gate:                cfg.Gate,
		eventPublisher:      cfg.EventPublisher,
		convert:             cfg.Convert,
		viewCache:           cfg.ViewCache,
		logger:              cfg.Logger,
		defaultCurrency:     cfg.DefaultCurrency,
		toleranceMinorUnits: cfg.ToleranceMinorUnits,
		retryAttempts:       cfg.RetryAttempts,
	}
}

// Caller identifies the authenticated user performing an operation,
// together with the permissions the identity service resolved for them
type Caller struct {
	UserID      uuid.UUID
	Permissions billing.PermissionSet
}

// ===================== Requests =====================

// AddItemRequest adds a billable item to a visit's invoice, creating the
// invoice on first use
type AddItemRequest struct {
	SiteID      uuid.UUID
	VisitID     uuid.UUID
	PatientID   uuid.UUID
	Category    billing.Category
	CatalogCode string
	Description string
	Quantity    int64
}

// CompleteItemRequest marks an item's service as delivered
type CompleteItemRequest struct {
	SiteID    uuid.UUID
	InvoiceID uuid.UUID
	ItemID    uuid.UUID
}

// MarkExternalRequest excludes an item from collection
type MarkExternalRequest struct {
	SiteID    uuid.UUID
	InvoiceID uuid.UUID
	ItemID    uuid.UUID
	Reason    string
}

// CollectPaymentRequest records a payment against one item.
// AmountMinorUnits zero means the item's remaining balance.
type CollectPaymentRequest struct {
	SiteID           uuid.UUID
	InvoiceID        uuid.UUID
	ItemID           uuid.UUID
	AmountMinorUnits int64
	Method           billing.PaymentMethod
	CollectionPoint  billing.CollectionPoint
}

// VoidInvoiceRequest cancels an invoice
type VoidInvoiceRequest struct {
	SiteID    uuid.UUID
	InvoiceID uuid.UUID
	Reason    string
}

// SetDiscountRequest applies an invoice-level discount
type SetDiscountRequest struct {
	SiteID             uuid.UUID
	InvoiceID          uuid.UUID
	DiscountMinorUnits int64
}

// ListInvoicesRequest lists invoices for a site
type ListInvoicesRequest struct {
	SiteID    uuid.UUID
	PatientID *uuid.UUID
	VisitID   *uuid.UUID
	Status    *billing.InvoiceStatus
	FromDate  *time.Time
	ToDate    *time.Time
	Filter    shared.Filter
}

// ===================== Operations =====================

// AddItem resolves the site-adjusted price for the catalog code and appends
// the item to the visit's invoice, opening the invoice if the visit has
// none yet.
func (s *LedgerService) AddItem(ctx context.Context, caller Caller, req AddItemRequest) (*InvoiceView, error) {
	// Memoization lives and dies with this operation. A process-lifetime
	// wrapper would pin catalog prices until restart.
	resolver := pricing.NewRequestScopedResolver(s.priceResolver)
	price, err := resolver.ResolvePrice(ctx, req.SiteID, req.CatalogCode)
	if err != nil {
		return nil, err
	}

	invoice, err := s.invoiceRepo.FindByVisit(ctx, req.SiteID, req.VisitID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, err
	}

	if invoice == nil {
		number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, req.SiteID)
		if err != nil {
			return nil, err
		}
		invoice, err = billing.NewInvoice(req.SiteID, req.VisitID, req.PatientID, number, s.defaultCurrency)
		if err != nil {
			return nil, err
		}
		if _, err := invoice.AddItem(req.Category, req.CatalogCode, req.Description, req.Quantity, price, caller.UserID); err != nil {
			return nil, err
		}
		err = s.invoiceRepo.Save(ctx, invoice)
		if err == nil {
			s.publishEvents(ctx, invoice)
			return s.fullView(invoice), nil
		}
		if !shared.IsAlreadyExists(err) {
			return nil, err
		}
		// Another counter opened the invoice for this visit first; fall
		// through to the update path against their copy.
		if invoice, err = s.invoiceRepo.FindByVisit(ctx, req.SiteID, req.VisitID); err != nil {
			return nil, err
		}
		if invoice == nil {
			return nil, shared.ErrNotFound
		}
	}

	invoice, err = s.executeWithRetry(ctx, req.SiteID, invoice.ID, func(inv *billing.Invoice) error {
		_, err := inv.AddItem(req.Category, req.CatalogCode, req.Description, req.Quantity, price, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.fullView(invoice), nil
}

// CompleteItem marks the item delivered, gated on the item's category
func (s *LedgerService) CompleteItem(ctx context.Context, caller Caller, req CompleteItemRequest) (*InvoiceView, error) {
	invoice, err := s.executeWithRetry(ctx, req.SiteID, req.InvoiceID, func(inv *billing.Invoice) error {
		item, err := inv.ItemByID(req.ItemID)
		if err != nil {
			return err
		}
		if !s.gate.CanPerform(caller.Permissions, item.Category, billing.ActionComplete) {
			return shared.ErrForbidden
		}
		return inv.CompleteItem(req.ItemID, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	return s.fullView(invoice), nil
}

// MarkItemExternal excludes an item from collection, gated on its category
func (s *LedgerService) MarkItemExternal(ctx context.Context, caller Caller, req MarkExternalRequest) (*InvoiceView, error) {
	invoice, err := s.executeWithRetry(ctx, req.SiteID, req.InvoiceID, func(inv *billing.Invoice) error {
		item, err := inv.ItemByID(req.ItemID)
		if err != nil {
			return err
		}
		if !s.gate.CanPerform(caller.Permissions, item.Category, billing.ActionMarkExternal) {
			return shared.ErrForbidden
		}
		return inv.MarkItemExternal(req.ItemID, req.Reason, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	return s.fullView(invoice), nil
}

// CollectPayment records a payment at a counter. The coverage rule is
// resolved fresh on every call; payer eligibility can change between two
// payments on the same item.
func (s *LedgerService) CollectPayment(ctx context.Context, caller Caller, req CollectPaymentRequest) (*InvoiceView, error) {
	invoice, err := s.executeWithRetry(ctx, req.SiteID, req.InvoiceID, func(inv *billing.Invoice) error {
		item, err := inv.ItemByID(req.ItemID)
		if err != nil {
			return err
		}
		if !s.gate.CanPerform(caller.Permissions, item.Category, billing.ActionCollect) {
			return shared.ErrForbidden
		}

		var rule *billing.CoverageRule
		if s.coverage != nil {
			rule, err = s.coverage.ResolveCoverage(ctx, inv.PatientID, item.Category)
			if err != nil {
				return err
			}
		}

		var amount valueobject.Money
		if req.AmountMinorUnits != 0 {
			if amount, err = valueobject.NewMoney(req.AmountMinorUnits, inv.Currency); err != nil {
				return err
			}
		}

		payment, err := inv.CollectPayment(billing.CollectPaymentParams{
			ItemID:              req.ItemID,
			Amount:              amount,
			Method:              req.Method,
			CollectionPoint:     req.CollectionPoint,
			CollectedBy:         caller.UserID,
			Rule:                rule,
			Convert:             s.convert,
			ToleranceMinorUnits: s.toleranceMinorUnits,
		})
		if err != nil {
			return err
		}

		s.logger.Info("payment collected",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.String("payment_id", payment.ID.String()),
			zap.Int64("amount", payment.Amount.Amount()),
			zap.String("collection_point", string(payment.CollectionPoint)),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.fullView(invoice), nil
}

// VoidInvoice cancels an invoice; requires the dedicated void permission
func (s *LedgerService) VoidInvoice(ctx context.Context, caller Caller, req VoidInvoiceRequest) (*InvoiceView, error) {
	if !caller.Permissions.Has(PermissionVoid) {
		return nil, shared.ErrForbidden
	}
	invoice, err := s.executeWithRetry(ctx, req.SiteID, req.InvoiceID, func(inv *billing.Invoice) error {
		return inv.Void(req.Reason, caller.UserID)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("invoice voided",
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("reason", req.Reason),
		zap.String("voided_by", caller.UserID.String()),
	)
	return s.fullView(invoice), nil
}

// SetDiscount applies an invoice-level discount. A discount above the
// subtotal is clamped and logged rather than rejected.
func (s *LedgerService) SetDiscount(ctx context.Context, caller Caller, req SetDiscountRequest) (*InvoiceView, error) {
	if !caller.Permissions.Has(PermissionDiscount) {
		return nil, shared.ErrForbidden
	}
	var clamped bool
	invoice, err := s.executeWithRetry(ctx, req.SiteID, req.InvoiceID, func(inv *billing.Invoice) error {
		discount, err := valueobject.NewMoney(req.DiscountMinorUnits, inv.Currency)
		if err != nil {
			return err
		}
		clamped, err = inv.SetDiscount(discount, caller.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if clamped {
		s.logger.Warn("discount clamped to subtotal",
			zap.String("invoice_number", invoice.InvoiceNumber),
			zap.Int64("requested", req.DiscountMinorUnits),
			zap.Int64("applied", invoice.Summary.Discount.Amount()),
		)
	}
	return s.fullView(invoice), nil
}

// ===================== Queries =====================

// GetInvoice returns the caller's view of an invoice. Holders of the
// universal view grant see every item; everyone else sees only the items
// in their permitted categories, with the summary recomputed over that
// subset so a counter never learns the totals of other departments.
func (s *LedgerService) GetInvoice(ctx context.Context, caller Caller, siteID, invoiceID uuid.UUID) (*InvoiceView, error) {
	// Only the unrestricted view is cacheable; filtered views depend on
	// the caller's permission set.
	cacheable := s.viewCache != nil && caller.Permissions.Has(billing.PermissionViewAll)
	if cacheable {
		cached, err := s.viewCache.Get(ctx, siteID, invoiceID)
		if err != nil {
			s.logger.Warn("invoice view cache read failed",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		} else if cached != nil {
			return cached, nil
		}
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, siteID, invoiceID)
	if err != nil {
		return nil, err
	}
	view, err := s.viewFor(caller, invoice)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.viewCache.Set(ctx, siteID, invoiceID, view); err != nil {
			s.logger.Warn("invoice view cache write failed",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		}
	}
	return view, nil
}

// GetInvoiceByVisit returns the caller's view of the invoice for a visit
func (s *LedgerService) GetInvoiceByVisit(ctx context.Context, caller Caller, siteID, visitID uuid.UUID) (*InvoiceView, error) {
	invoice, err := s.invoiceRepo.FindByVisit(ctx, siteID, visitID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, shared.ErrNotFound
	}
	return s.viewFor(caller, invoice)
}

// ListInvoices lists invoices for a site with pagination. Listing requires
// the universal view grant: a per-category partial list is more misleading
// than useful.
func (s *LedgerService) ListInvoices(ctx context.Context, caller Caller, req ListInvoicesRequest) (*shared.Paginated[InvoiceView], error) {
	if !caller.Permissions.Has(billing.PermissionViewAll) {
		return nil, shared.ErrForbidden
	}

	filter := billing.InvoiceFilter{
		Filter:    req.Filter.Normalize(),
		PatientID: req.PatientID,
		VisitID:   req.VisitID,
		Status:    req.Status,
		FromDate:  req.FromDate,
		ToDate:    req.ToDate,
	}
	invoices, err := s.invoiceRepo.FindAll(ctx, req.SiteID, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.invoiceRepo.Count(ctx, req.SiteID, filter)
	if err != nil {
		return nil, err
	}

	views := make([]InvoiceView, 0, len(invoices))
	for i := range invoices {
		views = append(views, *s.fullView(&invoices[i]))
	}
	result := shared.NewPaginated(views, total, filter.Page, filter.PageSize)
	return &result, nil
}

func (s *LedgerService) viewFor(caller Caller, invoice *billing.Invoice) (*InvoiceView, error) {
	if caller.Permissions.Has(billing.PermissionViewAll) {
		return s.fullView(invoice), nil
	}
	allowed := s.gate.AllowedCategories(caller.Permissions)
	if len(allowed) == 0 {
		return nil, shared.ErrForbidden
	}
	return s.filteredView(invoice, allowed), nil
}

// ===================== Retry Loop =====================

// executeWithRetry runs a mutation against the freshest copy of the
// aggregate, retrying the whole load-mutate-save cycle on a version
// conflict. Each retry reloads, so the mutation closure must be safe to
// run more than once against different snapshots.
func (s *LedgerService) executeWithRetry(ctx context.Context, siteID, invoiceID uuid.UUID, mutate func(*billing.Invoice) error) (*billing.Invoice, error) {
	var lastErr error
	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		invoice, err := s.invoiceRepo.FindByID(ctx, siteID, invoiceID)
		if err != nil {
			return nil, err
		}

		if err := mutate(invoice); err != nil {
			return nil, err
		}

		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			if shared.IsConcurrencyConflict(err) {
				lastErr = err
				s.logger.Debug("invoice version conflict, retrying",
					zap.String("invoice_id", invoiceID.String()),
					zap.Int("attempt", attempt),
				)
				continue
			}
			return nil, err
		}

		s.invalidateView(ctx, siteID, invoiceID)
		s.publishEvents(ctx, invoice)
		return invoice, nil
	}
	return nil, lastErr
}

func (s *LedgerService) invalidateView(ctx context.Context, siteID, invoiceID uuid.UUID) {
	if s.viewCache == nil {
		return
	}
	if err := s.viewCache.Invalidate(ctx, siteID, invoiceID); err != nil {
		s.logger.Warn("invoice view cache invalidation failed",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
	}
}

// publishEvents pushes the aggregate's pending events to the bus.
// Delivery failures are logged, not returned: the state change is already
// durable and the counters must not see an error for a listener problem.
func (s *LedgerService) publishEvents(ctx context.Context, invoice *billing.Invoice) {
	events := invoice.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	invoice.ClearDomainEvents()
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events...); err != nil {
		s.logger.Error("failed to publish invoice events",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}
