package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type MasterFolioHandler struct {
	masterService service.MasterFolioService
}

func NewMasterFolioHandler(masterService service.MasterFolioService) *MasterFolioHandler {
	return &MasterFolioHandler{masterService: masterService}
}

func (h *MasterFolioHandler) RegisterRoutes(router *gin.RouterGroup) {
	masters := router.Group("/api/master-folios")
	{
		masters.POST("", middleware.RequirePermission("master_folios.write"), h.CreateMasterFolio)
		masters.GET("", middleware.RequirePermission("master_folios.read"), h.ListMasterFolios)
		masters.GET("/:id", middleware.RequirePermission("master_folios.read"), h.GetMasterFolio)
		masters.PUT("/:id/folios/:folioId", middleware.RequirePermission("master_folios.write"), h.LinkFolio)
		masters.DELETE("/:id/folios/:folioId", middleware.RequirePermission("master_folios.write"), h.UnlinkFolio)
		masters.PUT("/:id/routing-rules", middleware.RequirePermission("master_folios.write"), h.SetRoutingRules)
		masters.POST("/:id/charges", middleware.RequirePermission("master_folios.write"), h.PostMasterCharge)
		masters.POST("/:id/payments", middleware.RequirePermission("payments.write"), h.PostMasterPayment)
		masters.POST("/:id/recompute", middleware.RequirePermission("master_folios.write"), h.RecomputeBalance)
		masters.PUT("/:id/close", middleware.RequirePermission("master_folios.write"), h.CloseMasterFolio)
		masters.PUT("/:id/reopen", middleware.RequirePermission("master_folios.write"), h.ReopenMasterFolio)
		masters.PUT("/:id/suspend", middleware.RequirePermission("master_folios.write"), h.SuspendMasterFolio)
	}
}

// CreateMasterFolio creates a master folio for group or corporate billing
// @Summary      Create master folio
// @Tags         master-folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateMasterFolioRequest  true  "Create Master Folio Payload"
// @Success      201      {object}  response.Response{data=model.MasterFolio}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios [post]
func (h *MasterFolioHandler) CreateMasterFolio(c *gin.Context) {
	var req service.CreateMasterFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	master, err := h.masterService.CreateMasterFolio(c.Request.Context(), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, master))
}

// ListMasterFolios returns a paginated list of master folios
// @Summary      List master folios
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (ACTIVE, SUSPENDED, CLOSED)"
// @Param        type    query     string  false  "Filter by master type (GROUP, CORPORATE, EVENT, TRAVEL_AGENCY)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/master-folios [get]
func (h *MasterFolioHandler) ListMasterFolios(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.MasterFolioFilter{
		Status:     c.Query("status"),
		MasterType: c.Query("type"),
		Page:       p.Page,
		Limit:      p.Limit,
	}

	masters, total, err := h.masterService.ListMasterFolios(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"master_folios": masters,
		"total":         total,
		"page":          p.Page,
		"limit":         p.Limit,
	}))
}

// GetMasterFolio returns a master folio with children, rules and ledger
// @Summary      Get master folio
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Master Folio ID"
// @Success      200  {object}  response.Response{data=model.MasterFolio}
// @Failure      404  {object}  response.Response
// @Router       /api/master-folios/{id} [get]
func (h *MasterFolioHandler) GetMasterFolio(c *gin.Context) {
	master, err := h.masterService.GetMasterFolio(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// LinkFolio attaches a guest folio to a master folio
// @Summary      Link folio
// @Description  Atomically links a folio to the master and recomputes the rolled-up balance
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id       path      string  true  "Master Folio ID"
// @Param        folioId  path      string  true  "Folio ID"
// @Success      200      {object}  response.Response{data=model.MasterFolio}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/folios/{folioId} [put]
func (h *MasterFolioHandler) LinkFolio(c *gin.Context) {
	master, err := h.masterService.LinkFolio(c.Request.Context(), c.Param("id"), c.Param("folioId"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// UnlinkFolio detaches a guest folio from a master folio
// @Summary      Unlink folio
// @Description  Atomically unlinks a folio from the master and recomputes the rolled-up balance. Already routed charges stay on the master.
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id       path      string  true  "Master Folio ID"
// @Param        folioId  path      string  true  "Folio ID"
// @Success      200      {object}  response.Response{data=model.MasterFolio}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/folios/{folioId} [delete]
func (h *MasterFolioHandler) UnlinkFolio(c *gin.Context) {
	master, err := h.masterService.UnlinkFolio(c.Request.Context(), c.Param("id"), c.Param("folioId"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// SetRoutingRules replaces the routing rules of a master folio
// @Summary      Set routing rules
// @Description  Replaces the ordered routing rule list. Charges match the first active rule by priority.
// @Tags         master-folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Master Folio ID"
// @Param        payload  body      service.SetRoutingRulesRequest  true  "Routing Rules Payload"
// @Success      200      {object}  response.Response{data=[]model.RoutingRule}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/routing-rules [put]
func (h *MasterFolioHandler) SetRoutingRules(c *gin.Context) {
	var req service.SetRoutingRulesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	rules, err := h.masterService.SetRoutingRules(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rules))
}

// PostMasterCharge posts a charge directly on the master folio
// @Summary      Post master charge
// @Tags         master-folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                     true  "Master Folio ID"
// @Param        payload  body      service.PostChargeRequest  true  "Charge Payload"
// @Success      201      {object}  response.Response{data=model.FolioCharge}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/charges [post]
func (h *MasterFolioHandler) PostMasterCharge(c *gin.Context) {
	var req service.PostChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	charge, err := h.masterService.PostMasterCharge(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, charge))
}

// PostMasterPayment posts a payment on the master folio
// @Summary      Post master payment
// @Tags         master-folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Master Folio ID"
// @Param        payload  body      service.PostPaymentRequest  true  "Payment Payload"
// @Success      201      {object}  response.Response{data=model.FolioPayment}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/payments [post]
func (h *MasterFolioHandler) PostMasterPayment(c *gin.Context) {
	var req service.PostPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	payment, err := h.masterService.PostMasterPayment(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, payment))
}

// RecomputeBalance rebuilds the master balance from all linked ledgers
// @Summary      Recompute master balance
// @Description  Fully recomputes the balance of every linked folio and the master's own ledger
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Master Folio ID"
// @Success      200  {object}  response.Response{data=model.MasterFolio}
// @Failure      400  {object}  response.Response
// @Router       /api/master-folios/{id}/recompute [post]
func (h *MasterFolioHandler) RecomputeBalance(c *gin.Context) {
	master, err := h.masterService.RecomputeBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// CloseMasterFolio closes a master folio
// @Summary      Close master folio
// @Description  Closes a master folio. A non-zero balance blocks closing unless override is set.
// @Tags         master-folios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Master Folio ID"
// @Param        payload  body      service.CloseMasterFolioRequest  true  "Close Payload"
// @Success      200      {object}  response.Response{data=model.MasterFolio}
// @Failure      400      {object}  response.Response
// @Router       /api/master-folios/{id}/close [put]
func (h *MasterFolioHandler) CloseMasterFolio(c *gin.Context) {
	var req service.CloseMasterFolioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	master, err := h.masterService.CloseMasterFolio(c.Request.Context(), c.Param("id"), req, currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// ReopenMasterFolio reopens a closed or suspended master folio
// @Summary      Reopen master folio
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Master Folio ID"
// @Success      200  {object}  response.Response{data=model.MasterFolio}
// @Failure      400  {object}  response.Response
// @Router       /api/master-folios/{id}/reopen [put]
func (h *MasterFolioHandler) ReopenMasterFolio(c *gin.Context) {
	master, err := h.masterService.ReopenMasterFolio(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}

// SuspendMasterFolio suspends an active master folio
// @Summary      Suspend master folio
// @Tags         master-folios
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Master Folio ID"
// @Success      200  {object}  response.Response{data=model.MasterFolio}
// @Failure      400  {object}  response.Response
// @Router       /api/master-folios/{id}/suspend [put]
func (h *MasterFolioHandler) SuspendMasterFolio(c *gin.Context) {
	master, err := h.masterService.SuspendMasterFolio(c.Request.Context(), c.Param("id"), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, master))
}
