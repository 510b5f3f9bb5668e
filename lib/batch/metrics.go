// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package batch

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type processorMetrics struct {
	queued         prometheus.Counter
	dropped        prometheus.Counter
	exported       prometheus.Counter
	failed         prometheus.Counter
	batches        prometheus.Counter
	exportFailures prometheus.Counter
	queueLength    prometheus.GaugeFunc
}

func newProcessorMetrics(pipeline string, queueLength func() float64) *processorMetrics {
	labels := prometheus.Labels{"pipeline": pipeline}
	return &processorMetrics{
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_records_queued_total",
			Help:        "Total number of records accepted into the export queue.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_records_dropped_total",
			Help:        "Total number of records rejected because the export queue was full.",
			ConstLabels: labels,
		}),
		exported: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_records_exported_total",
			Help:        "Total number of records exported successfully.",
			ConstLabels: labels,
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_records_export_failed_total",
			Help:        "Total number of records discarded by failed exports.",
			ConstLabels: labels,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_batches_exported_total",
			Help:        "Total number of batches exported successfully.",
			ConstLabels: labels,
		}),
		exportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "beacon_export_failures_total",
			Help:        "Total number of export calls that failed, timed out, or panicked.",
			ConstLabels: labels,
		}),
		queueLength: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "beacon_queue_length",
			Help:        "Number of records waiting in the export queue.",
			ConstLabels: labels,
		}, queueLength),
	}
}

func (m *processorMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.queued,
		m.dropped,
		m.exported,
		m.failed,
		m.batches,
		m.exportFailures,
		m.queueLength,
	}
}

// register adds the collectors to reg. A collector that is already
// registered (a second processor with the same pipeline name) is left
// in place.
func (m *processorMetrics) register(reg prometheus.Registerer) error {
	for _, collector := range m.collectors() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
