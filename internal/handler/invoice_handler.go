package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type InvoiceHandler struct {
	invoiceService service.InvoiceService
	revenueService service.RevenueService
}

func NewInvoiceHandler(invoiceService service.InvoiceService, revenueService service.RevenueService) *InvoiceHandler {
	return &InvoiceHandler{
		invoiceService: invoiceService,
		revenueService: revenueService,
	}
}

func (h *InvoiceHandler) RegisterRoutes(router *gin.RouterGroup) {
	invoices := router.Group("/api/invoices")
	{
		invoices.POST("", middleware.RequirePermission("invoices.write"), h.CreateInvoice)
		invoices.POST("/proforma", middleware.RequirePermission("invoices.write"), h.CreateProforma)
		invoices.GET("", middleware.RequirePermission("invoices.read"), h.ListInvoices)
		invoices.GET("/:id", middleware.RequirePermission("invoices.read"), h.GetInvoice)
		invoices.PUT("/:id/lines", middleware.RequirePermission("invoices.write"), h.UpdateLines)
		invoices.GET("/:id/validate", middleware.RequirePermission("invoices.read"), h.ValidateInvoice)
		invoices.PUT("/:id/status", middleware.RequirePermission("invoices.post"), h.TransitionInvoice)
		invoices.POST("/:id/payments", middleware.RequirePermission("payments.write"), h.AddPayment)
		invoices.POST("/:id/payments/:paymentId/reverse", middleware.RequirePermission("payments.write"), h.ReversePayment)
		invoices.POST("/:id/notes", middleware.RequirePermission("invoices.post"), h.IssueNote)
		invoices.GET("/:id/audit-trail", middleware.RequirePermission("invoices.read"), h.GetAuditTrail)
	}

	// Revenue statistics — separate route group
	stats := router.Group("/api/statistics")
	{
		stats.GET("/revenue", middleware.RequirePermission("revenue.read"), h.GetRevenueStatistics)
		stats.GET("/revenue/departments", middleware.RequirePermission("revenue.read"), h.GetDepartmentRevenue)
	}
}

// CreateInvoice creates a new invoice from a folio
// @Summary      Create invoice
// @Description  Creates a draft invoice by pulling charges from a folio, applying taxes, service charge and discounts
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateInvoiceRequest  true  "Create Invoice Payload"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateFromFolio(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// CreateProforma creates a proforma invoice from explicit lines
// @Summary      Create proforma invoice
// @Description  Creates a proforma invoice from explicit line items. Proforma invoices can never be posted.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProformaRequest  true  "Create Proforma Payload"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/proforma [post]
func (h *InvoiceHandler) CreateProforma(c *gin.Context) {
	var req service.CreateProformaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.CreateProforma(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ListInvoices returns a paginated list of invoices
// @Summary      List invoices
// @Description  Retrieves a paginated list of invoices, optionally filtered by status and folio
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        status    query     string  false  "Filter by status (DRAFT, INTERIM, FINAL, POSTED, CANCELLED, PARTIALLY_REFUNDED, REFUNDED)"
// @Param        folio_id  query     string  false  "Filter by source folio ID"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Failure      500       {object}  response.Response
// @Router       /api/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.InvoiceFilter{
		Status:  c.Query("status"),
		FolioID: c.Query("folio_id"),
		Page:    p.Page,
		Limit:   p.Limit,
	}

	invoices, total, err := h.invoiceService.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"invoices": invoices,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
	}))
}

// GetInvoice returns an invoice with lines, taxes, discounts and payments
// @Summary      Get invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=model.Invoice}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// UpdateLines replaces the line items of an editable invoice
// @Summary      Update invoice lines
// @Description  Replaces line items and discounts on a DRAFT or INTERIM invoice and recomputes totals
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Invoice ID"
// @Param        payload  body      service.UpdateInvoiceLinesRequest  true  "Lines Payload"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/{id}/lines [put]
func (h *InvoiceHandler) UpdateLines(c *gin.Context) {
	var req service.UpdateInvoiceLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.UpdateLines(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// ValidateInvoice reports everything blocking an invoice from being posted
// @Summary      Validate invoice
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=service.ValidationResult}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/validate [get]
func (h *InvoiceHandler) ValidateInvoice(c *gin.Context) {
	result, err := h.invoiceService.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// TransitionInvoice moves an invoice through its lifecycle
// @Summary      Transition invoice status
// @Description  Moves an invoice along DRAFT → INTERIM → FINAL → POSTED, or cancels a pre-posted invoice
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Invoice ID"
// @Param        payload  body      service.TransitionInvoiceRequest  true  "Transition Payload"
// @Success      200      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/{id}/status [put]
func (h *InvoiceHandler) TransitionInvoice(c *gin.Context) {
	var req service.TransitionInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.Transition(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// AddPayment records a payment against a finalized invoice
// @Summary      Add invoice payment
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                            true  "Invoice ID"
// @Param        payload  body      service.AddInvoicePaymentRequest  true  "Payment Payload"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/{id}/payments [post]
func (h *InvoiceHandler) AddPayment(c *gin.Context) {
	var req service.AddInvoicePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.AddPayment(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, invoice))
}

// ReversePayment reverses a payment on a posted invoice
// @Summary      Reverse invoice payment
// @Description  Reverses a payment by posting a negated entry. This is the only refund path on a posted invoice.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id         path      string                          true  "Invoice ID"
// @Param        paymentId  path      string                          true  "Payment ID"
// @Param        payload    body      service.ReversePaymentRequest   true  "Reversal Payload"
// @Success      200        {object}  response.Response{data=model.Invoice}
// @Failure      400        {object}  response.Response
// @Router       /api/invoices/{id}/payments/{paymentId}/reverse [post]
func (h *InvoiceHandler) ReversePayment(c *gin.Context) {
	var req service.ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	invoice, err := h.invoiceService.ReversePayment(c.Request.Context(), c.Param("id"), c.Param("paymentId"), req.Reason, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, invoice))
}

// IssueNote issues a credit or debit note against a posted invoice
// @Summary      Issue credit/debit note
// @Description  Issues a credit or debit note referencing a posted invoice. Credit note amounts are negated.
// @Tags         invoices
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                    true  "Invoice ID"
// @Param        payload  body      service.IssueNoteRequest  true  "Note Payload"
// @Success      201      {object}  response.Response{data=model.Invoice}
// @Failure      400      {object}  response.Response
// @Router       /api/invoices/{id}/notes [post]
func (h *InvoiceHandler) IssueNote(c *gin.Context) {
	var req service.IssueNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	note, err := h.invoiceService.IssueNote(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, note))
}

// GetAuditTrail returns the append-only audit trail of an invoice
// @Summary      Get invoice audit trail
// @Tags         invoices
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  response.Response{data=[]model.InvoiceAuditEntry}
// @Failure      404  {object}  response.Response
// @Router       /api/invoices/{id}/audit-trail [get]
func (h *InvoiceHandler) GetAuditTrail(c *gin.Context) {
	entries, err := h.invoiceService.GetAuditTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, entries))
}

// GetRevenueStatistics returns revenue aggregated from posted invoices
// @Summary      Get revenue statistics
// @Description  Aggregates posted invoices by period (day, week, month, quarter, year)
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        group_by    query     string  false  "Grouping period (default month)"
// @Param        start_date  query     string  false  "Start date (RFC3339)"
// @Param        end_date    query     string  false  "End date (RFC3339)"
// @Success      200         {object}  response.Response{data=[]service.RevenueDataPoint}
// @Failure      500         {object}  response.Response
// @Router       /api/statistics/revenue [get]
func (h *InvoiceHandler) GetRevenueStatistics(c *gin.Context) {
	filter := service.RevenueFilter{
		GroupBy:   c.Query("group_by"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}

	points, err := h.revenueService.GetRevenueStatistics(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, points))
}

// GetDepartmentRevenue returns posted revenue broken down by department
// @Summary      Get department revenue
// @Tags         statistics
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "Start date (RFC3339)"
// @Param        end_date    query     string  false  "End date (RFC3339)"
// @Success      200         {object}  response.Response{data=[]service.DepartmentRevenuePoint}
// @Failure      500         {object}  response.Response
// @Router       /api/statistics/revenue/departments [get]
func (h *InvoiceHandler) GetDepartmentRevenue(c *gin.Context) {
	filter := service.RevenueFilter{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
	}

	points, err := h.revenueService.GetDepartmentRevenue(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, points))
}
