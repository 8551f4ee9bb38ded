package handler

// AddItemRequest is the payload for adding a billable item to a visit
type AddItemRequest struct {
	VisitID     string `json:"visit_id" binding:"required,uuid"`
	PatientID   string `json:"patient_id" binding:"required,uuid"`
	Category    string `json:"category" binding:"required,billing_category"`
	CatalogCode string `json:"catalog_code" binding:"required"`
	Description string `json:"description"`
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
}

// MarkExternalRequest is the payload for excluding an item from collection
type MarkExternalRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CollectPaymentRequest is the payload for recording a payment against an
// item. A zero or omitted amount settles the item's remaining balance.
type CollectPaymentRequest struct {
	AmountMinorUnits int64  `json:"amount_minor_units" binding:"omitempty,min=0"`
	Method           string `json:"method" binding:"required,payment_method"`
	CollectionPoint  string `json:"collection_point" binding:"required,collection_point"`
}

// VoidInvoiceRequest is the payload for voiding an invoice
type VoidInvoiceRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// SetDiscountRequest is the payload for applying an invoice-level discount
type SetDiscountRequest struct {
	DiscountMinorUnits int64 `json:"discount_minor_units" binding:"min=0"`
}

// ListInvoicesQuery holds the query parameters for listing invoices
type ListInvoicesQuery struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	OrderBy   string `form:"order_by"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
	Search    string `form:"search"`
	PatientID string `form:"patient_id" binding:"omitempty,uuid"`
	VisitID   string `form:"visit_id" binding:"omitempty,uuid"`
	Status    string `form:"status"`
	FromDate  string `form:"from_date" binding:"omitempty,datetime=2006-01-02"`
	ToDate    string `form:"to_date" binding:"omitempty,datetime=2006-01-02"`
}

// invoiceIDURI binds the invoice ID path parameter
type invoiceIDURI struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// invoiceItemURI binds the invoice and item ID path parameters
type invoiceItemURI struct {
	ID     string `uri:"id" binding:"required,uuid"`
	ItemID string `uri:"itemID" binding:"required,uuid"`
}

// visitIDURI binds the visit ID path parameter
type visitIDURI struct {
	VisitID string `uri:"visitID" binding:"required,uuid"`
}
