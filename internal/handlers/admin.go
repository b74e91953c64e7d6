package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marquee/internal/logger"
	"marquee/internal/models"
)

// GetSettings - GET /api/settings
func (h *Handlers) GetSettings(c *gin.Context) {
	settings, err := h.settings.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, settings)
}

// UpdateSettings - PATCH /api/admin/settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req models.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	settings, err := h.settings.Update(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, settings)
}

// ListCities - GET /api/cities
func (h *Handlers) ListCities(c *gin.Context) {
	cities, err := h.settings.ListCities(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cities)
}

// AddCity - POST /api/admin/cities
func (h *Handlers) AddCity(c *gin.Context) {
	var req models.AddCityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	city, err := h.settings.AddCity(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, city)
}

// DeleteCity - DELETE /api/admin/cities/:id
// Удаление идемпотентно: несуществующий id тоже дает 200
func (h *Handlers) DeleteCity(c *gin.Context) {
	id := c.Param("id")
	if err := h.settings.DeleteCity(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"id": id})
}

// RecalculateStatuses - POST /api/admin/events/recalculate
func (h *Handlers) RecalculateStatuses(c *gin.Context) {
	logger.WithContext(c.Request.Context()).Info("Manual event status refresh requested")

	summary, err := h.status.RecalculateAll(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, summary)
}
