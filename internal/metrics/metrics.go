package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuggestion = "suggestion"
	OutcomeAnswer     = "answer"
	OutcomeError      = "error"

	ResultApplied      = "applied"
	ResultExpired      = "expired"
	ResultInvalidState = "invalid_state"
	ResultNotFound     = "not_found"
	ResultInvalid      = "invalid_action"
)

var (
	pipelineRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aimee",
			Name:      "pipeline_runs_total",
			Help:      "Advisor pipeline runs, partitioned by entry point and outcome.",
		},
		[]string{"entry", "outcome"},
	)

	pipelineDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aimee",
			Name:      "pipeline_seconds",
			Help:      "Advisor pipeline latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"entry"},
	)

	approvalActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aimee",
			Name:      "approval_actions_total",
			Help:      "Approval actions, partitioned by requested action and result.",
		},
		[]string{"action", "result"},
	)

	auditFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "aimee",
			Name:      "approval_audit_failures_total",
			Help:      "Approval history writes that failed after the status change was applied.",
		},
	)

	upstreamFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aimee",
			Name:      "upstream_failures_total",
			Help:      "Collaborator calls that failed open, partitioned by collaborator.",
		},
		[]string{"upstream"},
	)

	alertsRaisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aimee",
			Name:      "alerts_raised_total",
			Help:      "Alerts produced by rule evaluation, partitioned by alert type.",
		},
		[]string{"type"},
	)
)

// Register attaches the advisor collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pipelineRunsTotal,
		pipelineDurationSeconds,
		approvalActionsTotal,
		auditFailuresTotal,
		upstreamFailuresTotal,
		alertsRaisedTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

func ObservePipeline(entry string, duration time.Duration, outcome string) {
	pipelineRunsTotal.WithLabelValues(entry, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	pipelineDurationSeconds.WithLabelValues(entry).Observe(duration.Seconds())
}

func ObserveApprovalAction(action, result string) {
	if action != "approve" && action != "reject" {
		action = "other"
	}
	approvalActionsTotal.WithLabelValues(action, result).Inc()
}

func ObserveAuditFailure() {
	auditFailuresTotal.Inc()
}

func ObserveUpstreamFailure(upstream string) {
	upstreamFailuresTotal.WithLabelValues(upstream).Inc()
}

func ObserveAlert(alertType string) {
	alertsRaisedTotal.WithLabelValues(alertType).Inc()
}
