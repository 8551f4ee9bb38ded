package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appbilling "github.com/medflow/backend/internal/application/billing"
	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared"
	"github.com/medflow/backend/internal/domain/shared/valueobject"
	"github.com/medflow/backend/internal/interfaces/http/middleware"
)

// httpInvoiceRepo is a minimal in-memory InvoiceRepository for routing tests
type httpInvoiceRepo struct {
	mu       sync.Mutex
	byID     map[uuid.UUID]*billing.Invoice
	sequence int
}

func newHTTPInvoiceRepo() *httpInvoiceRepo {
	return &httpInvoiceRepo{byID: make(map[uuid.UUID]*billing.Invoice)}
}

func cloneStoredInvoice(inv *billing.Invoice) *billing.Invoice {
	copied := *inv
	copied.Items = append(billing.InvoiceItems{}, inv.Items...)
	copied.Payments = append(billing.Payments{}, inv.Payments...)
	copied.ClearDomainEvents()
	return &copied
}

func (r *httpInvoiceRepo) FindByID(_ context.Context, siteID, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byID[id]
	if !ok || inv.SiteID != siteID {
		return nil, shared.ErrNotFound
	}
	return cloneStoredInvoice(inv), nil
}

func (r *httpInvoiceRepo) FindByVisit(_ context.Context, siteID, visitID uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == siteID && inv.VisitID == visitID {
			return cloneStoredInvoice(inv), nil
		}
	}
	return nil, nil
}

func (r *httpInvoiceRepo) FindByInvoiceNumber(_ context.Context, siteID uuid.UUID, number string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == siteID && inv.InvoiceNumber == number {
			return cloneStoredInvoice(inv), nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *httpInvoiceRepo) FindAll(_ context.Context, siteID uuid.UUID, _ billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []billing.Invoice
	for _, inv := range r.byID {
		if inv.SiteID == siteID {
			result = append(result, *cloneStoredInvoice(inv))
		}
	}
	return result, nil
}

func (r *httpInvoiceRepo) Count(_ context.Context, siteID uuid.UUID, _ billing.InvoiceFilter) (int64, error) {
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

func (r *httpInvoiceRepo) Save(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.byID {
		if inv.SiteID == invoice.SiteID && inv.VisitID == invoice.VisitID {
			return shared.ErrAlreadyExists
		}
	}
	r.byID[invoice.ID] = cloneStoredInvoice(invoice)
	return nil
}

func (r *httpInvoiceRepo) SaveWithLock(_ context.Context, invoice *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[invoice.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != invoice.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.byID[invoice.ID] = cloneStoredInvoice(invoice)
	return nil
}

func (r *httpInvoiceRepo) GenerateInvoiceNumber(_ context.Context, _ uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	return fmt.Sprintf("INV-%s-%05d", time.Now().Format("20060102"), r.sequence), nil
}

// staticPriceResolver prices every catalog code at the same amount
type staticPriceResolver struct {
	price valueobject.Money
}

func (r staticPriceResolver) ResolvePrice(_ context.Context, _ uuid.UUID, _ string) (valueobject.Money, error) {
	return r.price, nil
}

type invoiceRouterFixture struct {
	engine *gin.Engine
	siteID uuid.UUID
	userID uuid.UUID
}

// newInvoiceRouter builds a router around a real LedgerService with the
// given caller permissions injected as if the JWT middleware had run
func newInvoiceRouter(t *testing.T, permissions []string) *invoiceRouterFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	siteID := uuid.New()
	userID := uuid.New()

	service := appbilling.NewLedgerService(appbilling.LedgerServiceConfig{
		InvoiceRepo:   newHTTPInvoiceRepo(),
		PriceResolver: staticPriceResolver{price: valueobject.MustNewMoney(15_000, valueobject.CurrencyXOF)},
		Gate:          billing.NewPermissionGate(billing.DefaultGateTable()),
	})

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(middleware.JWTUserIDKey, userID.String())
		c.Set(middleware.JWTSiteIDKey, siteID.String())
		c.Set(middleware.JWTPermissions, permissions)
		c.Next()
	})
	group := engine.Group("/api/v1")
	NewInvoiceHandler(service).RegisterRoutes(group)

	return &invoiceRouterFixture{engine: engine, siteID: siteID, userID: userID}
}

func (f *invoiceRouterFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func allPermissions() []string {
	perms := []string{billing.PermissionViewAll, billing.PermissionCollectAll,
		appbilling.PermissionVoid, appbilling.PermissionDiscount}
	for _, c := range billing.AllCategories() {
		perms = append(perms,
			fmt.Sprintf("invoices.complete.%s", c),
			fmt.Sprintf("invoices.mark-external.%s", c),
		)
	}
	return perms
}

func TestInvoiceHandler_AddItem(t *testing.T) {
	f := newInvoiceRouter(t, allPermissions())

	w := f.do(t, http.MethodPost, "/api/v1/invoices/items", gin.H{
		"visit_id":     uuid.New().String(),
		"patient_id":   uuid.New().String(),
		"category":     "consultation",
		"catalog_code": "CONS-01",
		"quantity":     1,
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Success bool                   `json:"success"`
		Data    appbilling.InvoiceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Contains(t, resp.Data.InvoiceNumber, "INV-")
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, int64(15_000), resp.Data.Items[0].UnitPrice)
	assert.Equal(t, int64(15_000), resp.Data.Summary.AmountDue)
}

func TestInvoiceHandler_AddItem_UnknownCategory(t *testing.T) {
	f := newInvoiceRouter(t, allPermissions())

	w := f.do(t, http.MethodPost, "/api/v1/invoices/items", gin.H{
		"visit_id":     uuid.New().String(),
		"patient_id":   uuid.New().String(),
		"category":     "spa-treatment",
		"catalog_code": "SPA-01",
		"quantity":     1,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_PaymentFlow(t *testing.T) {
	f := newInvoiceRouter(t, allPermissions())

	visitID := uuid.New().String()
	created := f.do(t, http.MethodPost, "/api/v1/invoices/items", gin.H{
		"visit_id":     visitID,
		"patient_id":   uuid.New().String(),
		"category":     "consultation",
		"catalog_code": "CONS-01",
		"quantity":     1,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	var createResp struct {
		Data appbilling.InvoiceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &createResp))
	invoiceID := createResp.Data.ID
	itemID := createResp.Data.Items[0].ID

	w := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/invoices/%s/items/%s/payments", invoiceID, itemID),
		gin.H{"method": "cash", "collection_point": "reception"},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var payResp struct {
		Data appbilling.InvoiceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payResp))
	assert.Equal(t, "paid", payResp.Data.Status)
	assert.Equal(t, int64(0), payResp.Data.Summary.AmountDue)
	require.Len(t, payResp.Data.Payments, 1)
	assert.Equal(t, int64(15_000), payResp.Data.Payments[0].Amount)
}

func TestInvoiceHandler_PaymentRejectsUnknownMethod(t *testing.T) {
	f := newInvoiceRouter(t, allPermissions())

	w := f.do(t, http.MethodPost,
		fmt.Sprintf("/api/v1/invoices/%s/items/%s/payments", uuid.New(), uuid.New()),
		gin.H{"method": "barter", "collection_point": "reception"},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_GetInvoiceByVisit(t *testing.T) {
	f := newInvoiceRouter(t, allPermissions())

	visitID := uuid.New().String()
	created := f.do(t, http.MethodPost, "/api/v1/invoices/items", gin.H{
		"visit_id":     visitID,
		"patient_id":   uuid.New().String(),
		"category":     "consultation",
		"catalog_code": "CONS-01",
		"quantity":     2,
	})
	require.Equal(t, http.StatusCreated, created.Code)

	w := f.do(t, http.MethodGet, "/api/v1/visits/"+visitID+"/invoice", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data appbilling.InvoiceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Data.Filtered)
	assert.Equal(t, int64(30_000), resp.Data.Summary.Subtotal)
}

func TestInvoiceHandler_MissingIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	service := appbilling.NewLedgerService(appbilling.LedgerServiceConfig{
		InvoiceRepo:   newHTTPInvoiceRepo(),
		PriceResolver: staticPriceResolver{price: valueobject.MustNewMoney(1_000, valueobject.CurrencyXOF)},
		Gate:          billing.NewPermissionGate(billing.DefaultGateTable()),
	})
	engine := gin.New()
	NewInvoiceHandler(service).RegisterRoutes(engine.Group("/api/v1"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
