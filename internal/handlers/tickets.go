package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marquee/internal/models"
)

// ListTickets - GET /api/tickets
func (h *Handlers) ListTickets(c *gin.Context) {
	tickets, err := h.tickets.ListForUser(c.Request.Context(), actor(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if tickets == nil {
		tickets = []models.Ticket{}
	}
	respond(c, http.StatusOK, tickets)
}

// GetTicket - GET /api/tickets/:ref
// ref: id билета или его номер
func (h *Handlers) GetTicket(c *gin.Context) {
	ticket, err := h.tickets.Get(c.Request.Context(), actor(c), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ticket)
}

// TicketQRCode - GET /api/tickets/:ref/qr
func (h *Handlers) TicketQRCode(c *gin.Context) {
	png, err := h.tickets.QRCode(c.Request.Context(), actor(c), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.Data(http.StatusOK, "image/png", png)
}

// RedeemTicket - POST /api/admin/tickets/redeem
// Погашение билета на входе: id, номер или отсканированный QR
func (h *Handlers) RedeemTicket(c *gin.Context) {
	var req models.RedeemTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	ticket, err := h.tickets.Redeem(c.Request.Context(), req.Reference, actor(c).UserID.String())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ticket)
}

// CancelTicket - POST /api/admin/tickets/:ref/cancel
func (h *Handlers) CancelTicket(c *gin.Context) {
	ticket, err := h.tickets.Cancel(c.Request.Context(), c.Param("ref"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, ticket)
}
