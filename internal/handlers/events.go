package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marquee/internal/models"
)

// ListEvents - GET /api/events
// Фильтры: q, category, status, location, hot, popular, limit, offset
func (h *Handlers) ListEvents(c *gin.Context) {
	var f models.EventFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		badRequest(c, err.Error())
		return
	}
	if f.Limit < 0 || f.Offset < 0 {
		badRequest(c, "limit and offset must not be negative")
		return
	}

	events, err := h.events.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, events)
}

// GetEvent - GET /api/events/:id
func (h *Handlers) GetEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	event, err := h.events.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, event)
}

// HotEvents - GET /api/events/hot?location=&limit=
func (h *Handlers) HotEvents(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	events, err := h.events.Hot(c.Request.Context(), c.Query("location"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, events)
}

// PopularEvents - GET /api/events/popular?location=&limit=
func (h *Handlers) PopularEvents(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}

	events, err := h.events.Popular(c.Request.Context(), c.Query("location"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, events)
}

// CreateEvent - POST /api/admin/events
// Создать событие вместе с уровнями билетов
func (h *Handlers) CreateEvent(c *gin.Context) {
	var req models.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	event, err := h.events.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, event)
}

// UpdateEvent - PATCH /api/admin/events/:id
func (h *Handlers) UpdateEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	event, err := h.events.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, event)
}

// UpsertTier - PUT /api/admin/events/:id/tiers
func (h *Handlers) UpsertTier(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.TicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	tier, err := h.events.UpsertTier(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, tier)
}

// DeleteEvent - DELETE /api/admin/events/:id
func (h *Handlers) DeleteEvent(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.events.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id})
}
