// Package metrics defines the Prometheus collectors shared across the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeRetry     = "retry"
	OutcomeExhausted = "exhausted"
)

// Metrics stores the Prometheus collectors used across the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ProviderRequests  *prometheus.CounterVec
	ProviderLatency   *prometheus.HistogramVec
	TokenRefreshes    *prometheus.CounterVec
	WebhooksReceived  *prometheus.CounterVec
	WebhooksProcessed *prometheus.CounterVec
	WebhooksPurged    prometheus.Counter
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the process-wide metrics singleton on the default registerer
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = New(namespace, prometheus.DefaultRegisterer)
	})
	return metricsInstance
}

// New builds a metrics set and registers it on reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Delivery provider API calls by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency distribution for delivery provider API calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation"}),
		TokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_token_refreshes_total",
			Help:      "OAuth token acquisitions by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WebhooksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_received_total",
			Help:      "Inbound webhooks persisted to the queue.",
		}, []string{"provider"}),
		WebhooksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_processed_total",
			Help:      "Webhook processing attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		WebhooksPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_purged_total",
			Help:      "Processed webhook entries removed by retention.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status class.",
		}, []string{"method", "route", "status"}),
		HTTPLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		m.ProviderRequests,
		m.ProviderLatency,
		m.TokenRefreshes,
		m.WebhooksReceived,
		m.WebhooksProcessed,
		m.WebhooksPurged,
		m.HTTPRequests,
		m.HTTPLatency,
	)
	return m
}

// ObserveProviderCall records one provider API call
func (m *Metrics) ObserveProviderCall(provider, operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.ProviderRequests.WithLabelValues(provider, operation, outcome).Inc()
	m.ProviderLatency.WithLabelValues(provider, operation).Observe(seconds)
}

// ObserveTokenRefresh records one token acquisition attempt
func (m *Metrics) ObserveTokenRefresh(provider, outcome string) {
	if m == nil {
		return
	}
	m.TokenRefreshes.WithLabelValues(provider, outcome).Inc()
}

// WebhookReceived records a persisted inbound webhook
func (m *Metrics) WebhookReceived(provider string) {
	if m == nil {
		return
	}
	m.WebhooksReceived.WithLabelValues(provider).Inc()
}

// WebhookProcessed records a processing attempt outcome
func (m *Metrics) WebhookProcessed(provider, outcome string) {
	if m == nil {
		return
	}
	m.WebhooksProcessed.WithLabelValues(provider, outcome).Inc()
}

// WebhooksPurgedAdd records purged entries
func (m *Metrics) WebhooksPurgedAdd(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.WebhooksPurged.Add(float64(n))
}

// ObserveHTTP records one served HTTP request
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPLatency.WithLabelValues(method, route).Observe(seconds)
}
