// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package rcftelemetry registers the Prometheus collectors the point store
// and error handler update as they run. Instrumentation is optional: every
// method on a nil *Metrics is a no-op, so components work unmodified
// without a registry.
package rcftelemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared across component instances
// registered against a single prometheus.Registerer.
type Metrics struct {
	liveHandles      prometheus.Gauge
	compactions      prometheus.Counter
	capacityGrowths  prometheus.Counter
	calibrations     prometheus.Counter
	intervalAccuracy *prometheus.GaugeVec
}

// New registers and returns a Metrics bound to reg. Pass a
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across parallel tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rcf",
			Subsystem: "pointstore",
			Name:      "live_handles",
			Help:      "Number of handles currently holding a positive reference count.",
		}),
		compactions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rcf",
			Subsystem: "pointstore",
			Name:      "compactions_total",
			Help:      "Number of times the point store's flat array was compacted.",
		}),
		capacityGrowths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rcf",
			Subsystem: "pointstore",
			Name:      "capacity_growths_total",
			Help:      "Number of times the point store grew currentStoreCapacity.",
		}),
		calibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rcf",
			Subsystem: "errorhandler",
			Name:      "calibrations_total",
			Help:      "Number of calibrate() invocations.",
		}),
		intervalAccuracy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rcf",
			Subsystem: "errorhandler",
			Name:      "interval_precision",
			Help:      "Fraction of past forecast intervals that contained the realized actual, by leadtime*baseDimension position.",
		}, []string{"pos"}),
	}
	reg.MustRegister(m.liveHandles, m.compactions, m.capacityGrowths, m.calibrations, m.intervalAccuracy)
	return m
}

func (m *Metrics) SetLiveHandles(n int) {
	if m == nil {
		return
	}
	m.liveHandles.Set(float64(n))
}

func (m *Metrics) IncCompactions() {
	if m == nil {
		return
	}
	m.compactions.Inc()
}

func (m *Metrics) IncCapacityGrowths() {
	if m == nil {
		return
	}
	m.capacityGrowths.Inc()
}

func (m *Metrics) IncCalibrations() {
	if m == nil {
		return
	}
	m.calibrations.Inc()
}

func (m *Metrics) SetIntervalPrecision(pos int, value float64) {
	if m == nil {
		return
	}
	m.intervalAccuracy.WithLabelValues(strconv.Itoa(pos)).Set(value)
}
