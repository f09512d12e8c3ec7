// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package metrics exposes cleanup run metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trimmarr"

// Run outcomes
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
)

// Collector owns a private registry with every trimmarr metric.
type Collector struct {
	registry *prometheus.Registry

	runsTotal           *prometheus.CounterVec
	runDuration         *prometheus.HistogramVec
	filesDeleted        *prometheus.CounterVec
	episodesUnmonitored *prometheus.CounterVec
	failuresTotal       *prometheus.CounterVec
	lastRunTimestamp    prometheus.Gauge
	seriesPlanned       prometheus.Gauge
}

// NewCollector creates and registers the metrics.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cleanup_runs_total",
				Help:      "Total number of cleanup runs by source, mode and outcome",
			},
			[]string{"source", "dry_run", "outcome"},
		),

		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cleanup_run_duration_seconds",
				Help:      "Duration of cleanup runs",
				Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"source"},
		),

		filesDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "episode_files_deleted_total",
				Help:      "Episode files deleted (or that would have been, in dry run)",
			},
			[]string{"dry_run"},
		),

		episodesUnmonitored: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "episodes_unmonitored_total",
				Help:      "Episodes unmonitored (or that would have been, in dry run)",
			},
			[]string{"dry_run"},
		),

		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_failures_total",
				Help:      "Failed Sonarr calls during cleanup by operation",
			},
			[]string{"op"},
		),

		lastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last cleanup run finished",
		}),

		seriesPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "series_planned",
			Help:      "Series with at least one action in the most recent plan",
		}),
	}

	c.registry.MustRegister(
		c.runsTotal,
		c.runDuration,
		c.filesDeleted,
		c.episodesUnmonitored,
		c.failuresTotal,
		c.lastRunTimestamp,
		c.seriesPlanned,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// RunResult is what the collector needs to know about a finished run.
type RunResult struct {
	Source          string
	DryRun          bool
	Outcome         string
	Duration        time.Duration
	SeriesProcessed int
	Deleted         int
	Unmonitored     int
	FailuresByOp    map[string]int
}

// RecordRun records a finished run.
func (c *Collector) RecordRun(r RunResult) {
	dry := strconv.FormatBool(r.DryRun)

	c.runsTotal.WithLabelValues(r.Source, dry, r.Outcome).Inc()
	if r.Outcome == OutcomeSkipped {
		return
	}

	c.runDuration.WithLabelValues(r.Source).Observe(r.Duration.Seconds())
	c.filesDeleted.WithLabelValues(dry).Add(float64(r.Deleted))
	c.episodesUnmonitored.WithLabelValues(dry).Add(float64(r.Unmonitored))
	for op, n := range r.FailuresByOp {
		c.failuresTotal.WithLabelValues(op).Add(float64(n))
	}
	c.lastRunTimestamp.SetToCurrentTime()
	c.seriesPlanned.Set(float64(r.SeriesProcessed))
}

// Registry returns the private registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
