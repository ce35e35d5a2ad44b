package handler

import (
	"net/http"

	"backend/internal/middleware"
	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type GuestHandler struct {
	guestService service.GuestService
}

func NewGuestHandler(guestService service.GuestService) *GuestHandler {
	return &GuestHandler{guestService: guestService}
}

func (h *GuestHandler) RegisterRoutes(router *gin.RouterGroup) {
	guests := router.Group("/api/guests")
	{
		guests.POST("", middleware.RequirePermission("guests.write"), h.CreateGuest)
		guests.GET("", middleware.RequirePermission("guests.read"), h.ListGuests)
		guests.GET("/:id", middleware.RequirePermission("guests.read"), h.GetGuest)
		guests.PUT("/:id", middleware.RequirePermission("guests.write"), h.UpdateGuest)
		guests.DELETE("/:id", middleware.RequirePermission("guests.write"), h.DeleteGuest)
	}

	reservations := router.Group("/api/reservations")
	{
		reservations.POST("", middleware.RequirePermission("guests.write"), h.CreateReservation)
		reservations.GET("", middleware.RequirePermission("guests.read"), h.ListReservations)
		reservations.GET("/:id", middleware.RequirePermission("guests.read"), h.GetReservation)
		reservations.PUT("/:id/status", middleware.RequirePermission("guests.write"), h.UpdateReservationStatus)
	}

	rooms := router.Group("/api/rooms")
	{
		rooms.GET("", middleware.RequirePermission("guests.read"), h.ListRooms)
	}
}

// CreateGuest creates a guest profile
// @Summary      Create guest
// @Tags         guests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateGuestRequest  true  "Guest Payload"
// @Success      201      {object}  response.Response{data=model.Guest}
// @Failure      400      {object}  response.Response
// @Router       /api/guests [post]
func (h *GuestHandler) CreateGuest(c *gin.Context) {
	var req service.CreateGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	guest, err := h.guestService.CreateGuest(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, guest))
}

// ListGuests returns a paginated guest list
// @Summary      List guests
// @Tags         guests
// @Security     BearerAuth
// @Produce      json
// @Param        search  query     string  false  "Search by name or email"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/guests [get]
func (h *GuestHandler) ListGuests(c *gin.Context) {
	p := pagination.Parse(c)

	filter := service.GuestFilter{
		Search: c.Query("search"),
		Page:   p.Page,
		Limit:  p.Limit,
	}

	guests, total, err := h.guestService.ListGuests(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"guests": guests,
		"total":  total,
		"page":   p.Page,
		"limit":  p.Limit,
	}))
}

// GetGuest returns a guest profile
// @Summary      Get guest
// @Tags         guests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Guest ID"
// @Success      200  {object}  response.Response{data=model.Guest}
// @Failure      404  {object}  response.Response
// @Router       /api/guests/{id} [get]
func (h *GuestHandler) GetGuest(c *gin.Context) {
	guest, err := h.guestService.GetGuest(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, guest))
}

// UpdateGuest updates a guest profile
// @Summary      Update guest
// @Tags         guests
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Guest ID"
// @Param        payload  body      service.UpdateGuestRequest  true  "Update Payload"
// @Success      200      {object}  response.Response{data=model.Guest}
// @Failure      400      {object}  response.Response
// @Router       /api/guests/{id} [put]
func (h *GuestHandler) UpdateGuest(c *gin.Context) {
	var req service.UpdateGuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	guest, err := h.guestService.UpdateGuest(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, guest))
}

// DeleteGuest removes a guest profile
// @Summary      Delete guest
// @Tags         guests
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Guest ID"
// @Success      200  {object}  response.Response
// @Failure      400  {object}  response.Response
// @Router       /api/guests/{id} [delete]
func (h *GuestHandler) DeleteGuest(c *gin.Context) {
	if err := h.guestService.DeleteGuest(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

// CreateReservation books a room for a guest
// @Summary      Create reservation
// @Tags         reservations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateReservationRequest  true  "Reservation Payload"
// @Success      201      {object}  response.Response{data=model.Reservation}
// @Failure      400      {object}  response.Response
// @Router       /api/reservations [post]
func (h *GuestHandler) CreateReservation(c *gin.Context) {
	var req service.CreateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	resv, err := h.guestService.CreateReservation(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, resv))
}

// ListReservations returns a paginated reservation list
// @Summary      List reservations
// @Tags         reservations
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (BOOKED, CHECKED_IN, CHECKED_OUT, CANCELLED)"
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Success      200     {object}  response.Response{data=object}
// @Failure      500     {object}  response.Response
// @Router       /api/reservations [get]
func (h *GuestHandler) ListReservations(c *gin.Context) {
	p := pagination.Parse(c)

	reservations, total, err := h.guestService.ListReservations(c.Request.Context(), c.Query("status"), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"reservations": reservations,
		"total":        total,
		"page":         p.Page,
		"limit":        p.Limit,
	}))
}

// GetReservation returns a reservation with its room and guest
// @Summary      Get reservation
// @Tags         reservations
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Reservation ID"
// @Success      200  {object}  response.Response{data=model.Reservation}
// @Failure      404  {object}  response.Response
// @Router       /api/reservations/{id} [get]
func (h *GuestHandler) GetReservation(c *gin.Context) {
	resv, err := h.guestService.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, resv))
}

// UpdateReservationStatus moves a reservation through its lifecycle
// @Summary      Update reservation status
// @Tags         reservations
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                                   true  "Reservation ID"
// @Param        payload  body      service.UpdateReservationStatusRequest  true  "Status Payload"
// @Success      200      {object}  response.Response{data=model.Reservation}
// @Failure      400      {object}  response.Response
// @Router       /api/reservations/{id}/status [put]
func (h *GuestHandler) UpdateReservationStatus(c *gin.Context) {
	var req service.UpdateReservationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	resv, err := h.guestService.UpdateReservationStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, resv))
}

// ListRooms returns all rooms
// @Summary      List rooms
// @Tags         rooms
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]model.Room}
// @Failure      500  {object}  response.Response
// @Router       /api/rooms [get]
func (h *GuestHandler) ListRooms(c *gin.Context) {
	rooms, err := h.guestService.ListRooms(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, rooms))
}
