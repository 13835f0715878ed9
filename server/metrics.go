package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	battlesStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "battles_started_total",
		Help:      "Battle sessions created.",
	})
	battlesResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "battles_resolved_total",
		Help:      "Battles resolved, by winner tag.",
	}, []string{"winner"})
	battleErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "arena",
		Name:      "battle_errors_total",
		Help:      "Battle requests answered with an error result.",
	})
	relayDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "arena",
		Name:      "relay_duration_seconds",
		Help:      "Latency of generation backend calls.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	})
)
