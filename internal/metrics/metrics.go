// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IntakeQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intake_queue_depth",
		Help: "Uploads waiting for a processing worker",
	})

	IntakeJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "intake_jobs_total",
		Help: "Upload jobs by outcome (created, duplicate, no_event, failed, dropped)",
	}, []string{"outcome"})

	IntakeJobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "intake_job_duration_seconds",
		Help:    "Wall time from dequeue to completion of one upload job",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activitypub_deliveries_total",
		Help: "Outbound activity deliveries by result",
	}, []string{"result"})

	DeliveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "activitypub_delivery_duration_seconds",
		Help:    "Latency of one signed POST to a remote inbox",
		Buckets: prometheus.DefBuckets,
	})

	InboxActivitiesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activitypub_inbox_activities_total",
		Help: "Accepted inbound activities by type",
	}, []string{"type"})

	InboxRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "activitypub_inbox_rejected_total",
		Help: "Inbound activities rejected before storage, by reason",
	}, []string{"reason"})

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "upstream_circuit_breaker_state",
		Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open)",
	}, []string{"upstream"})

	GeocodeCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_cache_lookups_total",
		Help: "Geocode cache lookups by result (hit, miss)",
	}, []string{"result"})
)

// Job outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeNoEvent   = "no_event"
	OutcomeFailed    = "failed"
	OutcomeDropped   = "dropped"
)

func RecordJob(outcome string, took time.Duration) {
	IntakeJobsTotal.WithLabelValues(outcome).Inc()
	if took > 0 {
		IntakeJobDuration.Observe(took.Seconds())
	}
}

func RecordDelivery(ok bool, took time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	DeliveriesTotal.WithLabelValues(result).Inc()
	DeliveryDuration.Observe(took.Seconds())
}

func RecordInbox(activityType string) {
	InboxActivitiesTotal.WithLabelValues(activityType).Inc()
}

func RecordInboxRejected(reason string) {
	InboxRejectedTotal.WithLabelValues(reason).Inc()
}

func SetBreakerState(upstream string, state int) {
	BreakerState.WithLabelValues(upstream).Set(float64(state))
}

func RecordGeocodeCache(hit bool) {
	if hit {
		GeocodeCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	GeocodeCacheTotal.WithLabelValues("miss").Inc()
}
