package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type FolioHandler struct {
	folioService   service.FolioService
	catalogService service.CatalogService
}

func NewFolioHandler(folioService service.FolioService, catalogService service.CatalogService) *FolioHandler {
	return &FolioHandler{
		folioService:   folioService,
		catalogService: catalogService,
	}
}

func (h *FolioHandler) RegisterRoutes(router *gin.RouterGroup) {
	folios := router.Group("/api/folios")
	{
		folios.POST("", middleware.RequirePermission("folios.write"), h.OpenFolio)
		folios.GET("", middleware.RequirePermission("folios.read"), h.ListFolios)
		folios.GET("/:id", middleware.RequirePermission("folios.read"), h.GetFolio)
		folios.POST("/:id/charges", middleware.RequirePermission("folios.write"), h.PostCharge)
		folios.POST("/:id/payments", middleware.RequirePermission("payments.write"), h.PostPayment)
		folios.POST("/:id/services", middleware.RequirePermission("folios.write"), h.PostExtraService)
		folios.POST("/:id/reconcile", middleware.RequirePermission("folios.write"), h.ReconcileFolio)
		folios.PUT("/:id/close", middleware.RequirePermission("folios.close"), h.CloseFolio)
	}

	services := router.Group("/api/extra-services")
	{
		services.POST("", middleware.RequirePermission("services.write"), h.CreateExtraService)
		services.GET("", middleware.RequirePermission("services.read"), h.ListExtraServices)
		services.GET("/:id", middleware.RequirePermission("services.read"), h.GetExtraService)
		services.PUT("/:id", middleware.RequirePermission("services.write"), h.UpdateExtraService)
		services.DELETE("/:id", middleware.RequirePermission("services.write"), h.DeleteExtraService)
	}
}

// currentUserID pulls the authenticated user's id from the gin context.
// Middleware always sets it; an empty string means a system action.
func currentUserID(c *gin.Context) string {
	v, _ := c.Get("userID")
	s, _ := v.(string)
	return s
}

// OpenFolio opens a new guest folio
// @Summary      Open folio
// @Description  Opens a new folio for a guest, optionally tied to a reservation
// @Tags         folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.OpenFolioRequest  true  "Open Folio Payload"
// @Success      201      {object}  response.Response{data=model.Folio}
// @Failure      400      {object}  response.Response
// @Router       /api/folios [post]
func (h *FolioHandler) OpenFolio(c *gin.Context) {
	var req service.OpenFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	folio, err := h.folioService.OpenFolio(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, folio))
}

// ListFolios returns a paginated list of folios
// @Summary      List folios
// @Description  Retrieves a paginated list of folios, optionally filtered by status and guest
// @Tags         folios
// @Security     BearerAuth
// @Produce      json
// @Param        status    query     string  false  "Filter by status (OPEN, CLOSED)"
// @Param        guest_id  query     string  false  "Filter by guest ID"
// @Param        page      query     int     false  "Page number (default 1)"
// @Param        limit     query     int     false  "Number of items per page (default 20)"
// @Success      200       {object}  response.Response{data=object}
// @Failure      500       {object}  response.Response
// @Router       /api/folios [get]
func (h *FolioHandler) ListFolios(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.FolioFilter{
		Status:  c.Query("status"),
		GuestID: c.Query("guest_id"),
		Page:    p.Page,
		Limit:   p.Limit,
	}

	folios, total, err := h.folioService.ListFolios(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"folios": folios,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	}))
}

// GetFolio returns a folio with its charges and payments
// @Summary      Get folio
// @Description  Retrieves a folio by ID with its full ledger
// @Tags         folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Folio ID"
// @Success      200  {object}  response.Response{data=model.Folio}
// @Failure      404  {object}  response.Response
// @Router       /api/folios/{id} [get]
func (h *FolioHandler) GetFolio(c *gin.Context) {
	folio, err := h.folioService.GetFolio(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, folio))
}

// PostCharge posts a charge to a folio
// @Summary      Post charge
// @Description  Posts a charge to an open folio. The charge may be routed to a master folio according to active routing rules.
// @Tags         folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Folio ID"
// @Param        payload  body      service.PostChargeRequest  true  "Charge Payload"
// @Success      201      {object}  response.Response{data=service.PostChargeResult}
// @Failure      400      {object}  response.Response
// @Router       /api/folios/{id}/charges [post]
func (h *FolioHandler) PostCharge(c *gin.Context) {
	var req service.PostChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.folioService.PostCharge(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// PostPayment posts a payment to a folio
// @Summary      Post payment
// @Description  Posts a payment against an open folio
// @Tags         folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Folio ID"
// @Param        payload  body      service.PostPaymentRequest  true  "Payment Payload"
// @Success      201      {object}  response.Response{data=model.FolioPayment}
// @Failure      400      {object}  response.Response
// @Router       /api/folios/{id}/payments [post]
func (h *FolioHandler) PostPayment(c *gin.Context) {
	var req service.PostPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.folioService.PostPayment(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// PostExtraService posts a priced catalog service to a folio
// @Summary      Post extra service
// @Description  Posts an extra service charge to an open folio using the catalog price
// @Tags         folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Folio ID"
// @Param        payload  body      service.PostExtraServiceRequest  true  "Extra Service Payload"
// @Success      201      {object}  response.Response{data=service.PostChargeResult}
// @Failure      400      {object}  response.Response
// @Router       /api/folios/{id}/services [post]
func (h *FolioHandler) PostExtraService(c *gin.Context) {
	var req service.PostExtraServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.folioService.PostExtraService(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, result))
}

// ReconcileFolio recomputes the folio balance from its ledger entries
// @Summary      Reconcile folio
// @Description  Recomputes the folio balance from charges and payments and reports any drift from the stored value
// @Tags         folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Folio ID"
// @Success      200  {object}  response.Response{data=service.ReconcileResult}
// @Failure      400  {object}  response.Response
// @Router       /api/folios/{id}/reconcile [post]
func (h *FolioHandler) ReconcileFolio(c *gin.Context) {
	result, err := h.folioService.ReconcileFolio(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CloseFolio closes a settled folio
// @Summary      Close folio
// @Description  Closes a folio. The ledger must balance to zero.
// @Tags         folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Folio ID"
// @Success      200  {object}  response.Response{data=model.Folio}
// @Failure      400  {object}  response.Response
// @Router       /api/folios/{id}/close [put]
func (h *FolioHandler) CloseFolio(c *gin.Context) {
	folio, err := h.folioService.CloseFolio(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, folio))
}

// CreateExtraService adds a service to the catalog
// @Summary      Create extra service
// @Description  Adds a priced extra service to the catalog
// @Tags         extra-services
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateExtraServiceRequest  true  "Extra Service Payload"
// @Success      201      {object}  response.Response{data=model.ExtraService}
// @Failure      400      {object}  response.Response
// @Router       /api/extra-services [post]
func (h *FolioHandler) CreateExtraService(c *gin.Context) {
	var req service.CreateExtraServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	svc, err := h.catalogService.CreateExtraService(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, svc))
}

// ListExtraServices lists catalog services
// @Summary      List extra services
// @Description  Retrieves a paginated list of catalog services
// @Tags         extra-services
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool  false  "Only active services"
// @Param        page    query     int   false  "Page number (default 1)"
// @Param        limit   query     int   false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Router       /api/extra-services [get]
func (h *FolioHandler) ListExtraServices(c *gin.Context) {
	p := pagination.Parse(c)
	activeOnly := c.Query("active") == "true"

	services, total, err := h.catalogService.ListExtraServices(c.Request.Context(), activeOnly, p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"services": services,
		"total":    total,
		"page":     p.Page,
		"limit":    p.Limit,
	}))
}

// GetExtraService returns a single catalog service
// @Summary      Get extra service
// @Tags         extra-services
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  response.Response{data=model.ExtraService}
// @Failure      404  {object}  response.Response
// @Router       /api/extra-services/{id} [get]
func (h *FolioHandler) GetExtraService(c *gin.Context) {
	svc, err := h.catalogService.GetExtraService(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, svc))
}

// UpdateExtraService updates a catalog service
// @Summary      Update extra service
// @Tags         extra-services
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                             true  "Service ID"
// @Param        payload  body      service.UpdateExtraServiceRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.ExtraService}
// @Failure      400      {object}  response.Response
// @Router       /api/extra-services/{id} [put]
func (h *FolioHandler) UpdateExtraService(c *gin.Context) {
	var req service.UpdateExtraServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	svc, err := h.catalogService.UpdateExtraService(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, svc))
}

// DeleteExtraService removes a catalog service
// @Summary      Delete extra service
// @Tags         extra-services
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Service ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/extra-services/{id} [delete]
func (h *FolioHandler) DeleteExtraService(c *gin.Context) {
	if err := h.catalogService.DeleteExtraService(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}
