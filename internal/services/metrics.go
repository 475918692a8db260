// Package services – Prometheus collectors for the vote pipeline and the
// expiry sweeper. Label cardinality is bounded by the number of live polls
// (shareable ids are 8 hex chars and short-lived).
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// votesApplied counts successfully applied votes per poll.
	votesApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_votes_total",
			Help: "Total number of votes applied, by poll.",
		},
		[]string{"shareable_id"},
	)

	// sweeperExpired counts polls the sweeper flipped to inactive.
	sweeperExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_sweeper_expired_total",
			Help: "Total number of polls deactivated by the expiry sweeper.",
		},
	)

	// sweeperErrors counts per-poll sweep failures (sweeps continue past them).
	sweeperErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "poll_sweeper_errors_total",
			Help: "Total number of per-poll errors during expiry sweeps.",
		},
	)
)

func init() {
	prometheus.MustRegister(votesApplied, sweeperExpired, sweeperErrors)
}
