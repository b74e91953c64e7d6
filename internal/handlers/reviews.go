package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"marquee/internal/models"
)

// SubmitReview - POST /api/reviews
func (h *Handlers) SubmitReview(c *gin.Context) {
	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	review, err := h.reviews.Submit(c.Request.Context(), actor(c).UserID, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, review)
}

// EventReviews - GET /api/events/:id/reviews
// Сводка по проверенным отзывам и сами отзывы
func (h *Handlers) EventReviews(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	summary, err := h.reviews.Summary(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	reviews, err := h.reviews.List(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}

	respond(c, http.StatusOK, gin.H{"summary": summary, "reviews": reviews})
}
