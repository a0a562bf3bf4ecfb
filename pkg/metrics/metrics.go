package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_webhook_events_total",
			Help: "Provider webhook callbacks by event type and result",
		},
		[]string{"event_type", "result"}, // result: reconciled, ignored, rejected, error
	)

	callPlacementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_call_placements_total",
			Help: "Outbound call placement attempts by result",
		},
		[]string{"result"}, // initiated, failed, agent_not_found, throttled
	)

	callOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voice_call_outcomes_total",
			Help: "Classified call outcomes",
		},
		[]string{"outcome"},
	)

	classificationErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_classification_errors_total",
		Help: "LLM classification failures resolved to neutral",
	})

	usageMinutesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_usage_minutes_recorded_total",
		Help: "Billable minutes submitted to usage accounting",
	})
)

// Middleware records request counts and latencies using the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		httpRequestsTotal.With(labels).Inc()
		httpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }

func WebhookEvent(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func CallPlacement(result string) { callPlacementsTotal.WithLabelValues(result).Inc() }

func CallOutcome(outcome string) { callOutcomesTotal.WithLabelValues(outcome).Inc() }

func ClassificationError() { classificationErrorsTotal.Inc() }

func UsageMinutes(n int) {
	if n > 0 {
		usageMinutesTotal.Add(float64(n))
	}
}
