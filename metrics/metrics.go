// Package metrics holds the prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "structura",
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome and matched account kind.",
	}, []string{"outcome", "kind"})

	Conflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "structura",
		Name:      "conflicts_total",
		Help:      "Rejected writes that would have broken a uniqueness or assignment invariant.",
	}, []string{"kind"})

	TxRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "structura",
		Name:      "tx_retries_total",
		Help:      "Transactions retried after lock contention or serialization failure.",
	})

	TxFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "structura",
		Name:      "tx_failures_total",
		Help:      "Transactions that exhausted their retry budget.",
	})

	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "structura",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	}, []string{"route"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "structura",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

const (
	ConflictAssignment = "assignment"
	ConflictProject    = "project_assignee"
	ConflictAttendance = "attendance"
	ConflictEmail      = "email"
)
