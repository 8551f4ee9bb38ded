package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
)

// ===================== Fakes =====================

// memInvoiceRepo is an in-memory InvoiceRepository with real optimistic
// locking semantics, so the retry loop can be exercised without a database.
type memInvoiceRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*billing.Invoice
	sequence int

	// conflictsBeforeSave fails SaveWithLock with a concurrency conflict
	// this many times before letting writes through
	conflictsBeforeSave int
	loadCount           int
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{byID: make(map[uuid.UUID]*billing.Invoice)}
}

func cloneInvoice(inv *billing.Invoice) *billing.Invoice {
	copied := *inv
	copied.Items = append(billing.InvoiceItems{}, inv.Items...)
	copied.Payments = append(billing.Payments{}, inv.Payments...)
	copied.ClearDomainEvents()
	return &copied
}

func (r *memInvoiceRepo) FindByID(_ context.Context, siteID, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadCount++
	inv, ok := r.byID[id]
	if !ok || inv.SiteID != siteID {
		return nil, shared.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (r *memInvoiceRepo) FindByVisit(_ context.Context, siteID, visitID uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == siteID && inv.VisitID == visitID {
			return cloneInvoice(inv), nil
		}
	}
	return nil, nil
}

func (r *memInvoiceRepo) FindByInvoiceNumber(_ context.Context, siteID uuid.UUID, number string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == siteID && inv.InvoiceNumber == number {
			return cloneInvoice(inv), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memInvoiceRepo) FindAll(_ context.Context, siteID uuid.UUID, _ billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []billing.Invoice
	for _, inv := range r.byID {
		if inv.SiteID == siteID {
			result = append(result, *cloneInvoice(inv))
		}
	}
	return result, nil
}

func (r *memInvoiceRepo) Count(_ context.Context, siteID uuid.UUID, _ billing.InvoiceFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, inv := range r.byID {
		if inv.SiteID == siteID {
			n++
		}
	}
	return n, nil
}

func (r *memInvoiceRepo) Save(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == invoice.SiteID && inv.VisitID == invoice.VisitID {
			return shared.ErrAlreadyExists
		}
	}
	r.byID[invoice.ID] = cloneInvoice(invoice)
	return nil
}

func (r *memInvoiceRepo) SaveWithLock(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conflictsBeforeSave > 0 {
		r.conflictsBeforeSave--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.byID[invoice.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != invoice.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.byID[invoice.ID] = cloneInvoice(invoice)
	return nil
}

func (r *memInvoiceRepo) GenerateInvoiceNumber(_ context.Context, _ uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	return fmt.Sprintf("INV-20260115-%05d", r.sequence), nil
}

type fixedPriceResolver struct {
	prices map[string]int64
}

func (f *fixedPriceResolver) ResolvePrice(_ context.Context, _ uuid.UUID, code string) (valueobject.Money, error) {
	amount, ok := f.prices[code]
	if !ok {
		return valueobject.Money{}, shared.NewDomainError("CATALOG_NOT_FOUND", "unknown code")
	}
	return valueobject.MustNewMoney(amount, valueobject.CurrencyXOF), nil
}

type fixedCoverageResolver struct {
	rule  *billing.CoverageRule
	calls int
}

func (f *fixedCoverageResolver) ResolveCoverage(_ context.Context, _ uuid.UUID, _ billing.Category) (*billing.CoverageRule, error) {
	f.calls++
	return f.rule, nil
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *capturingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *capturingPublisher) eventTypes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, 0, len(p.events))
	for _, e := range p.events {
		types = append(types, e.EventType())
	}
	return types
}

// ===================== Harness =====================

type ledgerFixture struct {
	service   *LedgerService
	repo      *memInvoiceRepo
	coverage  *fixedCoverageResolver
	publisher *capturingPublisher
	siteID    uuid.UUID
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	repo := newMemInvoiceRepo()
	coverage := &fixedCoverageResolver{}
	publisher := &capturingPublisher{}
	service := NewLedgerService(LedgerServiceConfig{
		InvoiceRepo: repo,
		PriceResolver: &fixedPriceResolver{prices: map[string]int64{
			"CONS-01": 15_000,
			"MED-12":  8_000,
			"SUR-03":  500_000,
		}},
		Coverage:        coverage,
		Gate:            billing.NewPermissionGate(billing.DefaultGateTable()),
		EventPublisher:  publisher,
		Logger:          zap.NewNop(),
		DefaultCurrency: valueobject.CurrencyXOF,
	})
	return &ledgerFixture{
		service:   service,
		repo:      repo,
		coverage:  coverage,
		publisher: publisher,
		siteID:    uuid.New(),
	}
}

func allPermsCaller() Caller {
	perms := []string{billing.PermissionViewAll, billing.PermissionCollectAll, PermissionVoid, PermissionDiscount}
	for _, c := range billing.AllCategories() {
		perms = append(perms,
			fmt.Sprintf("invoices.complete.%s", c),
			fmt.Sprintf("invoices.mark-external.%s", c),
		)
	}
	return Caller{UserID: uuid.New(), Permissions: billing.NewPermissionSet(perms)}
}

func (f *ledgerFixture) addItem(t *testing.T, caller Caller, visitID uuid.UUID, category billing.Category, code string) *InvoiceView {
	t.Helper()
	view, err := f.service.AddItem(context.Background(), caller, AddItemRequest{
		SiteID:      f.siteID,
		VisitID:     visitID,
		PatientID:   uuid.New(),
		Category:    category,
		CatalogCode: code,
		Quantity:    1,
	})
	require.NoError(t, err)
	return view
}

// ===================== AddItem Tests =====================

func TestLedgerService_AddItem_CreatesInvoiceOnFirstItem(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()

	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	assert.Equal(t, "issued", view.Status)
	assert.Equal(t, "INV-20260115-00001", view.InvoiceNumber)
	require.Len(t, view.Items, 1)
	assert.Equal(t, int64(15_000), view.Items[0].UnitPrice)
	assert.Contains(t, f.publisher.eventTypes(), "InvoiceCreated")
	assert.Contains(t, f.publisher.eventTypes(), "InvoiceItemAdded")
}

func TestLedgerService_AddItem_ReusesVisitInvoice(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	visitID := uuid.New()

	first := f.addItem(t, caller, visitID, billing.CategoryConsultation, "CONS-01")
	second := f.addItem(t, caller, visitID, billing.CategoryMedication, "MED-12")

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, second.Items, 2)
	assert.Equal(t, int64(23_000), second.Summary.Total)
}

func TestLedgerService_AddItem_UnknownCatalogCode(t *testing.T) {
	f := newLedgerFixture(t)

	_, err := f.service.AddItem(context.Background(), allPermsCaller(), AddItemRequest{
		SiteID:      f.siteID,
		VisitID:     uuid.New(),
		PatientID:   uuid.New(),
		Category:    billing.CategoryConsultation,
		CatalogCode: "GHOST",
		Quantity:    1,
	})
	assert.Error(t, err)
}

func TestLedgerService_AddItem_PriceChangesVisibleAcrossRequests(t *testing.T) {
	repo := newMemInvoiceRepo()
	prices := &fixedPriceResolver{prices: map[string]int64{"CONS-01": 15_000}}
	service := NewLedgerService(LedgerServiceConfig{
		InvoiceRepo:     repo,
		PriceResolver:   prices,
		Gate:            billing.NewPermissionGate(billing.DefaultGateTable()),
		Logger:          zap.NewNop(),
		DefaultCurrency: valueobject.CurrencyXOF,
	})
	caller := allPermsCaller()
	siteID := uuid.New()

	first, err := service.AddItem(context.Background(), caller, AddItemRequest{
		SiteID:      siteID,
		VisitID:     uuid.New(),
		PatientID:   uuid.New(),
		Category:    billing.CategoryConsultation,
		CatalogCode: "CONS-01",
		Quantity:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), first.Items[0].UnitPrice)

	// Price memoization is scoped to one operation: a catalog update
	// between two submissions must be picked up by the second.
	prices.prices["CONS-01"] = 18_000
	second, err := service.AddItem(context.Background(), caller, AddItemRequest{
		SiteID:      siteID,
		VisitID:     uuid.New(),
		PatientID:   uuid.New(),
		Category:    billing.CategoryConsultation,
		CatalogCode: "CONS-01",
		Quantity:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(18_000), second.Items[0].UnitPrice)
}

// ===================== Permission Tests =====================

func TestLedgerService_CompleteItem_RequiresCategoryPermission(t *testing.T) {
	f := newLedgerFixture(t)
	admin := allPermsCaller()
	view := f.addItem(t, admin, uuid.New(), billing.CategoryLaboratory, "CONS-01")

	pharmacist := Caller{
		UserID:      uuid.New(),
		Permissions: billing.NewPermissionSet([]string{"invoices.complete.medication"}),
	}
	_, err := f.service.CompleteItem(context.Background(), pharmacist, CompleteItemRequest{
		SiteID:    f.siteID,
		InvoiceID: view.ID,
		ItemID:    view.Items[0].ID,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)

	_, err = f.service.CompleteItem(context.Background(), admin, CompleteItemRequest{
		SiteID:    f.siteID,
		InvoiceID: view.ID,
		ItemID:    view.Items[0].ID,
	})
	assert.NoError(t, err)
}

func TestLedgerService_CollectPayment_RequiresCollectPermission(t *testing.T) {
	f := newLedgerFixture(t)
	admin := allPermsCaller()
	view := f.addItem(t, admin, uuid.New(), billing.CategoryMedication, "MED-12")

	stranger := Caller{UserID: uuid.New(), Permissions: billing.NewPermissionSet(nil)}
	_, err := f.service.CollectPayment(context.Background(), stranger, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointPharmacy,
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

// ===================== CollectPayment Tests =====================

func TestLedgerService_CollectPayment_FullFlow(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryMedication, "MED-12")

	result, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointPharmacy,
	})
	require.NoError(t, err)

	assert.Equal(t, "paid", result.Status)
	require.Len(t, result.Payments, 1)
	assert.Equal(t, int64(8_000), result.Payments[0].Amount)
	assert.Contains(t, f.publisher.eventTypes(), "PaymentCollected")
	assert.Contains(t, f.publisher.eventTypes(), "InvoicePaid")
}

func TestLedgerService_CollectPayment_CoverageResolvedPerPayment(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	f.coverage.rule = &billing.CoverageRule{
		PayerID:    uuid.New(),
		Percentage: decimal.NewFromInt(80),
	}
	view := f.addItem(t, caller, uuid.New(), billing.CategorySurgery, "SUR-03")

	_, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:           f.siteID,
		InvoiceID:        view.ID,
		ItemID:           view.Items[0].ID,
		AmountMinorUnits: 100_000,
		Method:           billing.PaymentMethodCash,
		CollectionPoint:  billing.PointSurgery,
	})
	require.NoError(t, err)

	result, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodConvention,
		CollectionPoint: billing.PointSurgery,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, f.coverage.calls, "coverage must be re-resolved for every payment")
	assert.Equal(t, "paid", result.Status)
	require.NotNil(t, result.Items[0].PayerAmount)
	assert.Equal(t, int64(400_000), *result.Items[0].PayerAmount)
}

func TestLedgerService_CollectPayment_OverpaymentSurfaces(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryMedication, "MED-12")

	_, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:           f.siteID,
		InvoiceID:        view.ID,
		ItemID:           view.Items[0].ID,
		AmountMinorUnits: 9_000,
		Method:           billing.PaymentMethodCash,
		CollectionPoint:  billing.PointPharmacy,
	})
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "OVERPAYMENT", de.Code)
}

// ===================== Retry Loop Tests =====================

func TestLedgerService_RetriesOnVersionConflict(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryMedication, "MED-12")

	f.repo.conflictsBeforeSave = 2
	f.repo.loadCount = 0

	result, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointPharmacy,
	})
	require.NoError(t, err)
	assert.Equal(t, "paid", result.Status)
	assert.Equal(t, 3, f.repo.loadCount, "every retry must reload the aggregate")
}

func TestLedgerService_ConflictSurfacesAfterRetriesExhausted(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryMedication, "MED-12")

	f.repo.conflictsBeforeSave = 10

	_, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointPharmacy,
	})
	assert.True(t, shared.IsConcurrencyConflict(err))
}

func TestLedgerService_SecondWriterSeesFirstWritersState(t *testing.T) {
	// Two counters collect against different items of the same invoice.
	// The second write conflicts, reloads, and lands on top of the first:
	// no payment may be lost.
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	visitID := uuid.New()
	f.addItem(t, caller, visitID, billing.CategoryConsultation, "CONS-01")
	view := f.addItem(t, caller, visitID, billing.CategoryMedication, "MED-12")

	consultItem := view.Items[0]
	medItem := view.Items[1]

	_, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          consultItem.ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointReception,
	})
	require.NoError(t, err)

	result, err := f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          medItem.ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointPharmacy,
	})
	require.NoError(t, err)

	assert.Equal(t, "paid", result.Status)
	assert.Len(t, result.Payments, 2)
	assert.Equal(t, int64(23_000), result.Summary.AmountPaid)
}

// ===================== Query Tests =====================

func TestLedgerService_GetInvoice_FilteredForCategoryScopedCaller(t *testing.T) {
	f := newLedgerFixture(t)
	admin := allPermsCaller()
	visitID := uuid.New()
	f.addItem(t, admin, visitID, billing.CategoryConsultation, "CONS-01")
	view := f.addItem(t, admin, visitID, billing.CategoryMedication, "MED-12")

	pharmacist := Caller{
		UserID:      uuid.New(),
		Permissions: billing.NewPermissionSet([]string{"invoices.view.medication"}),
	}
	filtered, err := f.service.GetInvoice(context.Background(), pharmacist, f.siteID, view.ID)
	require.NoError(t, err)

	assert.True(t, filtered.Filtered)
	require.Len(t, filtered.Items, 1)
	assert.Equal(t, "medication", filtered.Items[0].Category)
	assert.Equal(t, int64(8_000), filtered.Summary.Total, "filtered summary must not leak other departments")

	full, err := f.service.GetInvoice(context.Background(), admin, f.siteID, view.ID)
	require.NoError(t, err)
	assert.False(t, full.Filtered)
	assert.Len(t, full.Items, 2)
	assert.Equal(t, int64(23_000), full.Summary.Total)
}

func TestLedgerService_GetInvoice_NoViewPermission(t *testing.T) {
	f := newLedgerFixture(t)
	admin := allPermsCaller()
	view := f.addItem(t, admin, uuid.New(), billing.CategoryConsultation, "CONS-01")

	stranger := Caller{UserID: uuid.New(), Permissions: billing.NewPermissionSet(nil)}
	_, err := f.service.GetInvoice(context.Background(), stranger, f.siteID, view.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestLedgerService_ListInvoices_RequiresViewAll(t *testing.T) {
	f := newLedgerFixture(t)
	admin := allPermsCaller()
	f.addItem(t, admin, uuid.New(), billing.CategoryConsultation, "CONS-01")
	f.addItem(t, admin, uuid.New(), billing.CategoryMedication, "MED-12")

	result, err := f.service.ListInvoices(context.Background(), admin, ListInvoicesRequest{SiteID: f.siteID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)
	assert.Len(t, result.Items, 2)

	limited := Caller{
		UserID:      uuid.New(),
		Permissions: billing.NewPermissionSet([]string{"invoices.view.medication"}),
	}
	_, err = f.service.ListInvoices(context.Background(), limited, ListInvoicesRequest{SiteID: f.siteID})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

// ===================== Void / Discount Tests =====================

func TestLedgerService_VoidInvoice(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	result, err := f.service.VoidInvoice(context.Background(), caller, VoidInvoiceRequest{
		SiteID:    f.siteID,
		InvoiceID: view.ID,
		Reason:    "duplicate visit entry",
	})
	require.NoError(t, err)
	assert.Equal(t, "void", result.Status)
	assert.Contains(t, f.publisher.eventTypes(), "InvoiceVoided")

	noVoid := Caller{UserID: uuid.New(), Permissions: billing.NewPermissionSet([]string{billing.PermissionViewAll})}
	_, err = f.service.VoidInvoice(context.Background(), noVoid, VoidInvoiceRequest{
		SiteID:    f.siteID,
		InvoiceID: view.ID,
		Reason:    "nope",
	})
	assert.ErrorIs(t, err, shared.ErrForbidden)
}

func TestLedgerService_SetDiscount_ClampLogged(t *testing.T) {
	f := newLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	result, err := f.service.SetDiscount(context.Background(), caller, SetDiscountRequest{
		SiteID:             f.siteID,
		InvoiceID:          view.ID,
		DiscountMinorUnits: 999_999,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), result.Summary.Discount)
	assert.Equal(t, int64(0), result.Summary.Total)
}

// ===================== View Cache Tests =====================

type fakeViewCache struct {
	mu      sync.Mutex
	entries map[string]*InvoiceView
	gets    int
	sets    int
}

func newFakeViewCache() *fakeViewCache {
	return &fakeViewCache{entries: map[string]*InvoiceView{}}
}

func (c *fakeViewCache) Get(_ context.Context, siteID, invoiceID uuid.UUID) (*InvoiceView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	return c.entries[siteID.String()+invoiceID.String()], nil
}

func (c *fakeViewCache) Set(_ context.Context, siteID, invoiceID uuid.UUID, view *InvoiceView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[siteID.String()+invoiceID.String()] = view
	return nil
}

func (c *fakeViewCache) Invalidate(_ context.Context, siteID, invoiceID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, siteID.String()+invoiceID.String())
	return nil
}

func newCachedLedgerFixture(t *testing.T) (*ledgerFixture, *fakeViewCache) {
	t.Helper()
	repo := newMemInvoiceRepo()
	cache := newFakeViewCache()
	service := NewLedgerService(LedgerServiceConfig{
		InvoiceRepo: repo,
		PriceResolver: &fixedPriceResolver{prices: map[string]int64{
			"CONS-01": 15_000,
		}},
		Coverage:        &fixedCoverageResolver{},
		Gate:            billing.NewPermissionGate(billing.DefaultGateTable()),
		EventPublisher:  &capturingPublisher{},
		ViewCache:       cache,
		Logger:          zap.NewNop(),
		DefaultCurrency: valueobject.CurrencyXOF,
	})
	return &ledgerFixture{
		service: service,
		repo:    repo,
		siteID:  uuid.New(),
	}, cache
}

func TestLedgerService_GetInvoice_ServedFromCache(t *testing.T) {
	f, cache := newCachedLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	first, err := f.service.GetInvoice(context.Background(), caller, f.siteID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	loadsAfterFirst := f.repo.loadCount
	second, err := f.service.GetInvoice(context.Background(), caller, f.siteID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, loadsAfterFirst, f.repo.loadCount, "cache hit must not touch the repository")
	assert.Equal(t, first.Summary.Total, second.Summary.Total)
}

func TestLedgerService_Mutation_InvalidatesCachedView(t *testing.T) {
	f, cache := newCachedLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	stale, err := f.service.GetInvoice(context.Background(), caller, f.siteID, view.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), stale.Summary.AmountPaid)

	_, err = f.service.CollectPayment(context.Background(), caller, CollectPaymentRequest{
		SiteID:          f.siteID,
		InvoiceID:       view.ID,
		ItemID:          view.Items[0].ID,
		Method:          billing.PaymentMethodCash,
		CollectionPoint: billing.PointReception,
	})
	require.NoError(t, err)

	fresh, err := f.service.GetInvoice(context.Background(), caller, f.siteID, view.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(15_000), fresh.Summary.AmountPaid)
	assert.Equal(t, "paid", fresh.Status)
	assert.Equal(t, 2, cache.sets, "fresh view is re-cached after invalidation")
}

func TestLedgerService_FilteredCallerBypassesCache(t *testing.T) {
	f, cache := newCachedLedgerFixture(t)
	caller := allPermsCaller()
	view := f.addItem(t, caller, uuid.New(), billing.CategoryConsultation, "CONS-01")

	scoped := Caller{UserID: uuid.New(), Permissions: billing.NewPermissionSet([]string{
		"invoices.view.consultation",
	})}
	filtered, err := f.service.GetInvoice(context.Background(), scoped, f.siteID, view.ID)
	require.NoError(t, err)
	assert.True(t, filtered.Filtered)
	assert.Equal(t, 0, cache.gets)
	assert.Equal(t, 0, cache.sets)
}
