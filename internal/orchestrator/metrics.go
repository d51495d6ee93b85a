// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for one orchestrator.
//
// All metrics are prefixed with "repochat_":
//   - repochat_turns_total{kind} - chat turns and commands handled
//   - repochat_turn_duration_seconds{kind} - turn latency
//   - repochat_provider_failures_total - failed provider calls
//   - repochat_commits_total{op} - successful repository writes
//   - repochat_commit_failures_total{op} - rejected repository writes
//   - repochat_validation_rejections_total - blocks refused by the validator
//   - repochat_persistence_failures_total - swallowed store errors
//   - repochat_pending_operations - current pending operation count
type Metrics struct {
	TurnsTotal                *prometheus.CounterVec
	TurnDuration              *prometheus.HistogramVec
	ProviderFailuresTotal     prometheus.Counter
	CommitsTotal              *prometheus.CounterVec
	CommitFailuresTotal       *prometheus.CounterVec
	ValidationRejectionsTotal prometheus.Counter
	PersistenceFailuresTotal  prometheus.Counter
	PendingOperations         prometheus.Gauge
}

// Turn kinds.
const (
	turnChat    = "chat"
	turnCommand = "command"
)

// NewMetrics creates the collectors and registers them with reg. A nil reg
// selects a private registry, so collectors never collide across instances.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		TurnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repochat_turns_total",
				Help: "Total number of conversation turns handled",
			},
			[]string{"kind"}, // "chat" or "command"
		),

		TurnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "repochat_turn_duration_seconds",
				Help:    "Duration of conversation turns in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"kind"},
		),

		ProviderFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "repochat_provider_failures_total",
				Help: "Total number of failed AI provider calls",
			},
		),

		CommitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repochat_commits_total",
				Help: "Total number of repository writes committed",
			},
			[]string{"op"}, // "create", "update", "delete"
		),

		CommitFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "repochat_commit_failures_total",
				Help: "Total number of repository writes that failed",
			},
			[]string{"op"},
		),

		ValidationRejectionsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "repochat_validation_rejections_total",
				Help: "Total number of code blocks rejected by the validator",
			},
		),

		PersistenceFailuresTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "repochat_persistence_failures_total",
				Help: "Total number of message store failures",
			},
		),

		PendingOperations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "repochat_pending_operations",
				Help: "Current number of pending file operations",
			},
		),
	}
}
