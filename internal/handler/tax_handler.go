package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	taxService service.TaxService
}

func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	taxes := router.Group("/api/tax-definitions")
	{
		taxes.GET("", middleware.RequirePermission("taxes.read"), h.ListTaxDefinitions)
		taxes.GET("/:id", middleware.RequirePermission("taxes.read"), h.GetTaxDefinition)
		taxes.POST("", middleware.RequirePermission("taxes.write"), h.CreateTaxDefinition)
		taxes.PUT("/:id", middleware.RequirePermission("taxes.write"), h.UpdateTaxDefinition)
		taxes.DELETE("/:id", middleware.RequirePermission("taxes.write"), h.DeleteTaxDefinition)
	}

	sc := router.Group("/api/service-charge")
	{
		sc.GET("", middleware.RequirePermission("taxes.read"), h.GetServiceCharge)
		sc.PUT("", middleware.RequirePermission("taxes.write"), h.UpdateServiceCharge)
	}
}

// ListTaxDefinitions lists tax definitions in calculation order
// @Summary      List tax definitions
// @Tags         taxes
// @Security     BearerAuth
// @Produce      json
// @Param        active  query     bool  false  "Only active definitions"
// @Success      200     {object}  response.Response{data=[]model.TaxDefinition}
// @Failure      500     {object}  response.Response
// @Router       /api/tax-definitions [get]
func (h *TaxHandler) ListTaxDefinitions(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	taxes, err := h.taxService.ListTaxDefinitions(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, taxes))
}

// GetTaxDefinition returns a single tax definition
// @Summary      Get tax definition
// @Tags         taxes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Tax Definition ID"
// @Success      200  {object}  response.Response{data=model.TaxDefinition}
// @Failure      404  {object}  response.Response
// @Router       /api/tax-definitions/{id} [get]
func (h *TaxHandler) GetTaxDefinition(c *gin.Context) {
	tax, err := h.taxService.GetTaxDefinition(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tax))
}

// CreateTaxDefinition creates a tax definition
// @Summary      Create tax definition
// @Description  Creates a tax definition with rate, calculation order, compounding and inclusive flags
// @Tags         taxes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateTaxDefinitionRequest  true  "Tax Definition Payload"
// @Success      201      {object}  response.Response{data=model.TaxDefinition}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-definitions [post]
func (h *TaxHandler) CreateTaxDefinition(c *gin.Context) {
	var req service.CreateTaxDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tax, err := h.taxService.CreateTaxDefinition(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tax))
}

// UpdateTaxDefinition updates a tax definition
// @Summary      Update tax definition
// @Tags         taxes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                              true  "Tax Definition ID"
// @Param        payload  body      service.UpdateTaxDefinitionRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.TaxDefinition}
// @Failure      400      {object}  response.Response
// @Router       /api/tax-definitions/{id} [put]
func (h *TaxHandler) UpdateTaxDefinition(c *gin.Context) {
	var req service.UpdateTaxDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tax, err := h.taxService.UpdateTaxDefinition(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, tax))
}

// DeleteTaxDefinition removes a tax definition
// @Summary      Delete tax definition
// @Tags         taxes
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Tax Definition ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/tax-definitions/{id} [delete]
func (h *TaxHandler) DeleteTaxDefinition(c *gin.Context) {
	if err := h.taxService.DeleteTaxDefinition(c.Request.Context(), c.Param("id"), currentUserID(c)); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// GetServiceCharge returns the active service charge rule
// @Summary      Get service charge rule
// @Tags         taxes
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=model.ServiceChargeRule}
// @Failure      500  {object}  response.Response
// @Router       /api/service-charge [get]
func (h *TaxHandler) GetServiceCharge(c *gin.Context) {
	rule, err := h.taxService.GetServiceCharge(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}

// UpdateServiceCharge replaces the service charge rule
// @Summary      Update service charge rule
// @Tags         taxes
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.UpdateServiceChargeRequest  true  "Service Charge Payload"
// @Success      200      {object}  response.Response{data=model.ServiceChargeRule}
// @Failure      400      {object}  response.Response
// @Router       /api/service-charge [put]
func (h *TaxHandler) UpdateServiceCharge(c *gin.Context) {
	var req service.UpdateServiceChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rule, err := h.taxService.UpdateServiceCharge(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rule))
}
