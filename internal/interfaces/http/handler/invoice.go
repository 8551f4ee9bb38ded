package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appbilling "github.com/medflow/backend/internal/application/billing"
	"github.com/medflow/backend/internal/domain/billing"
	"github.com/medflow/backend/internal/domain/shared"
)

// InvoiceHandler exposes the visit invoice ledger over HTTP
type InvoiceHandler struct {
	BaseHandler
	service *appbilling.LedgerService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service *appbilling.LedgerService) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// RegisterRoutes registers invoice routes on the given router group
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	{
		invoices.GET("", h.ListInvoices)
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/items", h.AddItem)
		invoices.POST("/:id/items/:itemID/complete", h.CompleteItem)
		invoices.POST("/:id/items/:itemID/mark-external", h.MarkItemExternal)
		invoices.POST("/:id/items/:itemID/payments", h.CollectPayment)
		invoices.POST("/:id/void", h.VoidInvoice)
		invoices.PUT("/:id/discount", h.SetDiscount)
	}
	rg.GET("/visits/:visitID/invoice", h.GetInvoiceByVisit)
}

// AddItem godoc
// @Summary      Add a billable item to a visit's invoice
// @Description  Resolves the site price for the catalog code and appends the
// @Description  item, opening the visit's invoice if it does not exist yet
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Router       /invoices/items [post]
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.AddItem(c.Request.Context(), caller, appbilling.AddItemRequest{
		SiteID:      siteID,
		VisitID:     uuid.MustParse(req.VisitID),
		PatientID:   uuid.MustParse(req.PatientID),
		Category:    billing.Category(req.Category),
		CatalogCode: req.CatalogCode,
		Description: req.Description,
		Quantity:    req.Quantity,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, view)
}

// CompleteItem godoc
// @Summary      Mark an item's service as delivered
// @Tags         invoices
// @Produce      json
// @Router       /invoices/{id}/items/{itemID}/complete [post]
func (h *InvoiceHandler) CompleteItem(c *gin.Context) {
	var uri invoiceItemURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.CompleteItem(c.Request.Context(), caller, appbilling.CompleteItemRequest{
		SiteID:    siteID,
		InvoiceID: uuid.MustParse(uri.ID),
		ItemID:    uuid.MustParse(uri.ItemID),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// MarkItemExternal godoc
// @Summary      Exclude an item from collection
// @Description  Marks an item as settled outside the clinic, removing it
// @Description  from the amount due
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Router       /invoices/{id}/items/{itemID}/mark-external [post]
func (h *InvoiceHandler) MarkItemExternal(c *gin.Context) {
	var uri invoiceItemURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	var req MarkExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.MarkItemExternal(c.Request.Context(), caller, appbilling.MarkExternalRequest{
		SiteID:    siteID,
		InvoiceID: uuid.MustParse(uri.ID),
		ItemID:    uuid.MustParse(uri.ItemID),
		Reason:    req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// CollectPayment godoc
// @Summary      Record a payment against an invoice item
// @Description  A zero or omitted amount settles the item's remaining balance
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Router       /invoices/{id}/items/{itemID}/payments [post]
func (h *InvoiceHandler) CollectPayment(c *gin.Context) {
	var uri invoiceItemURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	var req CollectPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.CollectPayment(c.Request.Context(), caller, appbilling.CollectPaymentRequest{
		SiteID:           siteID,
		InvoiceID:        uuid.MustParse(uri.ID),
		ItemID:           uuid.MustParse(uri.ItemID),
		AmountMinorUnits: req.AmountMinorUnits,
		Method:           billing.PaymentMethod(req.Method),
		CollectionPoint:  billing.CollectionPoint(req.CollectionPoint),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// VoidInvoice godoc
// @Summary      Void an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Router       /invoices/{id}/void [post]
func (h *InvoiceHandler) VoidInvoice(c *gin.Context) {
	var uri invoiceIDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	var req VoidInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.VoidInvoice(c.Request.Context(), caller, appbilling.VoidInvoiceRequest{
		SiteID:    siteID,
		InvoiceID: uuid.MustParse(uri.ID),
		Reason:    req.Reason,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// SetDiscount godoc
// @Summary      Apply an invoice-level discount
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Router       /invoices/{id}/discount [put]
func (h *InvoiceHandler) SetDiscount(c *gin.Context) {
	var uri invoiceIDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	var req SetDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.SetDiscount(c.Request.Context(), caller, appbilling.SetDiscountRequest{
		SiteID:             siteID,
		InvoiceID:          uuid.MustParse(uri.ID),
		DiscountMinorUnits: req.DiscountMinorUnits,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// GetInvoice godoc
// @Summary      Get an invoice
// @Description  Returns the caller's view of the invoice; counters without
// @Description  the universal view grant see only their permitted categories
// @Tags         invoices
// @Produce      json
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	var uri invoiceIDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.GetInvoice(c.Request.Context(), caller, siteID, uuid.MustParse(uri.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// GetInvoiceByVisit godoc
// @Summary      Get the invoice for a visit
// @Tags         invoices
// @Produce      json
// @Router       /visits/{visitID}/invoice [get]
func (h *InvoiceHandler) GetInvoiceByVisit(c *gin.Context) {
	var uri visitIDURI
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	view, err := h.service.GetInvoiceByVisit(c.Request.Context(), caller, siteID, uuid.MustParse(uri.VisitID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, view)
}

// ListInvoices godoc
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Router       /invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	var query ListInvoicesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	siteID, caller, ok := h.identity(c)
	if !ok {
		return
	}

	req := appbilling.ListInvoicesRequest{
		SiteID: siteID,
		Filter: shared.Filter{
			Page:     query.Page,
			PageSize: query.PageSize,
			OrderBy:  query.OrderBy,
			OrderDir: query.OrderDir,
			Search:   query.Search,
		},
	}
	if query.PatientID != "" {
		id := uuid.MustParse(query.PatientID)
		req.PatientID = &id
	}
	if query.VisitID != "" {
		id := uuid.MustParse(query.VisitID)
		req.VisitID = &id
	}
	if query.Status != "" {
		status := billing.InvoiceStatus(query.Status)
		if !status.IsValid() {
			h.BadRequest(c, "unknown invoice status: "+query.Status)
			return
		}
		req.Status = &status
	}
	if query.FromDate != "" {
		from, _ := time.Parse("2006-01-02", query.FromDate)
		req.FromDate = &from
	}
	if query.ToDate != "" {
		to, _ := time.Parse("2006-01-02", query.ToDate)
		// Inclusive upper bound: the whole day counts.
		to = to.Add(24*time.Hour - time.Nanosecond)
		req.ToDate = &to
	}

	result, err := h.service.ListInvoices(c.Request.Context(), caller, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// identity extracts the site and caller from the request context, writing
// a 401 response when either is missing
func (h *InvoiceHandler) identity(c *gin.Context) (uuid.UUID, appbilling.Caller, bool) {
	siteID, err := getSiteID(c)
	if err != nil {
		h.Unauthorized(c, "Site identity required")
		return uuid.Nil, appbilling.Caller{}, false
	}
	caller, err := getCaller(c)
	if err != nil {
		h.Unauthorized(c, "User identity required")
		return uuid.Nil, appbilling.Caller{}, false
	}
	return siteID, caller, true
}
