// Package metrics defines and registers all custom Prometheus metrics for the
// membership API. It is the single source of truth for metric names, labels,
// and help strings; everything registers with the default registry at import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "membership"

// ── Magic link metrics ────────────────────────────────────────────────────────

// MagicLinksRequestedTotal counts issued links.
// Labels:
//   - purpose: login, verify_email, verify_phone, reset_password
//   - channel: "email" or "phone"
var MagicLinksRequestedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magic_links_requested_total",
		Help:      "Total number of magic links issued, by purpose and channel.",
	},
	[]string{"purpose", "channel"},
)

// MagicLinkRedemptionsTotal counts redemption attempts.
// Label:
//   - result: "success" or "invalid"
var MagicLinkRedemptionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "magic_link_redemptions_total",
		Help:      "Total number of magic link redemption attempts, by result.",
	},
	[]string{"result"},
)

// RateLimitedRequestsTotal counts link requests rejected by the cooldown.
var RateLimitedRequestsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_requests_total",
		Help:      "Total number of magic link requests rejected while the per-destination cooldown held.",
	},
)

// NotifierFailuresTotal counts failed outbound deliveries. Delivery failures
// never fail the issuing operation, so this counter is the only trace.
var NotifierFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifier_failures_total",
		Help:      "Total number of magic link deliveries that failed after the link was persisted.",
	},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsCreatedTotal counts new login sessions.
// Label:
//   - method: "magic_link" or "anonymous"
var SessionsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_created_total",
		Help:      "Total number of login sessions created, by login method.",
	},
	[]string{"method"},
)

// SessionRefreshesTotal counts refresh attempts.
// Label:
//   - result: "success" or "unauthorized"
var SessionRefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_refreshes_total",
		Help:      "Total number of token refresh attempts, by result.",
	},
	[]string{"result"},
)

// ── Privacy metrics ───────────────────────────────────────────────────────────

// AnonymizationsTotal counts anonymization runs.
// Labels:
//   - mode: "anonymize", "soft_delete", or "hard_delete"
//   - result: "success" or "error"
var AnonymizationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "anonymizations_total",
		Help:      "Total number of anonymization/deletion runs, by mode and result.",
	},
	[]string{"mode", "result"},
)

// AnonymizationDuration measures a full anonymization transaction.
var AnonymizationDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "anonymization_duration_seconds",
		Help:      "Duration of the anonymization transaction from start to commit.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditWriteFailuresTotal counts audit entries that could not be appended.
// Audit writes are best-effort; this counter plus a log line is the report.
var AuditWriteFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_write_failures_total",
		Help:      "Total number of audit log entries that failed to persist.",
	},
)
