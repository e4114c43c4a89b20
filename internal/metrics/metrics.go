// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolevents",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "registrations_total",
		Help:      "Event registration attempts by outcome (created, duplicate).",
	}, []string{"outcome"})

	AttendanceToggles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "attendance_toggles_total",
		Help:      "Attendance flag flips performed by admins.",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "logins_total",
		Help:      "Login attempts by outcome (success, failure).",
	}, []string{"outcome"})

	SeedRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "seed_runs_total",
		Help:      "Bulk seeding runs by kind and outcome.",
	}, []string{"kind", "outcome"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolevents",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
