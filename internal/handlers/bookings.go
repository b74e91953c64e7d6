package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marquee/internal/models"
)

// CreateBooking - POST /api/bookings
// Бронирует корзину и выпускает билеты. 202 означает, что бронь сохранена,
// а билеты будут выпущены фоновым процессом.
func (h *Handlers) CreateBooking(c *gin.Context) {
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	resp, err := h.bookings.Create(c.Request.Context(), actor(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.TicketsPending {
		status = http.StatusAccepted
	}
	respond(c, status, resp)
}

// ListBookings - GET /api/bookings
func (h *Handlers) ListBookings(c *gin.Context) {
	bookings, err := h.bookings.ListForUser(c.Request.Context(), actor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	respond(c, http.StatusOK, bookings)
}

// GetBooking - GET /api/bookings/:id
func (h *Handlers) GetBooking(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	details, err := h.bookings.TransactionDetails(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, details)
}

// ConfirmPayment - POST /api/bookings/:id/payment
func (h *Handlers) ConfirmPayment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	booking, err := h.bookings.ConfirmPayment(c.Request.Context(), actor(c), id, req.Outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, booking)
}
