package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "eventattend"

var (
	// AttendanceSubmitted counts attendance upserts by status.
	AttendanceSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "attendance_submissions_total",
		Help:      "Attendance entries written, by status.",
	}, []string{"status"})

	// RegistrationChanges counts register and unregister calls.
	RegistrationChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_changes_total",
		Help:      "Registration changes, by action.",
	}, []string{"action"})

	// ReportsComputed counts reports built from storage, by kind.
	ReportsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_computed_total",
		Help:      "Reports computed, by kind.",
	}, []string{"kind"})

	// ReportCacheLookups counts cache hits and misses.
	ReportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "report_cache_lookups_total",
		Help:      "Instance report cache lookups, by result.",
	}, []string{"result"})

	// ReportDuration observes instance report computation time.
	ReportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "report_duration_seconds",
		Help:      "Time spent computing an instance report.",
		Buckets:   prometheus.DefBuckets,
	})

	// ActiveInstances is the number of instances active on the last computed dashboard day.
	ActiveInstances = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_instances",
		Help:      "Instances active on the most recently computed dashboard date.",
	})

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	// QueueMessages counts consumed queue messages by type and result.
	QueueMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "queue_messages_total",
		Help:      "Queue messages consumed, by type and result.",
	}, []string{"type", "result"})
)
