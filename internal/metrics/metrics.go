// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_http_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marquee_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	bookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	ticketsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_tickets_issued_total",
			Help: "Tickets minted",
		},
	)

	ticketCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_ticket_number_collisions_total",
			Help: "Ticket inserts retried after a unique clash",
		},
	)

	redemptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_ticket_redemptions_total",
			Help: "Ticket redemption attempts by outcome",
		},
		[]string{"outcome"},
	)

	recalculations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marquee_status_recalculations_total",
			Help: "Per-event hot/popular recalculations by outcome",
		},
		[]string{"outcome"},
	)

	recalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marquee_status_refresh_duration_seconds",
			Help:    "Duration of a full status refresh pass",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	recoveredBookings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marquee_bookings_recovered_total",
			Help: "Bookings whose ticket issuance was re-driven by the recovery sweep",
		},
	)
)

func BookingOutcome(outcome string) { bookingsTotal.WithLabelValues(outcome).Inc() }

func TicketsIssued(n int) { ticketsIssued.Add(float64(n)) }

func TicketCollision() { ticketCollisions.Inc() }

func Redemption(outcome string) { redemptions.WithLabelValues(outcome).Inc() }

func Recalculation(outcome string) { recalculations.WithLabelValues(outcome).Inc() }

func ObserveRefresh(d time.Duration) { recalculationDuration.Observe(d.Seconds()) }

func BookingRecovered() { recoveredBookings.Inc() }

// Middleware records request count and latency per matched route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
