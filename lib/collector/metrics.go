// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type collectorMetrics struct {
	chunks         prometheus.Counter
	rejectedChunks *prometheus.CounterVec
	batches        prometheus.Counter
	records        *prometheus.CounterVec
	sequenceGaps   prometheus.Counter
}

func newCollectorMetrics() *collectorMetrics {
	return &collectorMetrics{
		chunks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_collector_chunks_received_total",
			Help: "Total number of chunks accepted.",
		}),
		rejectedChunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_collector_chunks_rejected_total",
			Help: "Total number of chunks rejected, by reason.",
		}, []string{"reason"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_collector_batches_received_total",
			Help: "Total number of batches reassembled and delivered.",
		}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "beacon_collector_records_received_total",
			Help: "Total number of records delivered, by kind.",
		}, []string{"kind"}),
		sequenceGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "beacon_collector_sequence_gaps_total",
			Help: "Total number of missing batch sequence numbers observed.",
		}),
	}
}

func (m *collectorMetrics) register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		m.chunks, m.rejectedChunks, m.batches, m.records, m.sequenceGaps,
	} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return err
			}
		}
	}
	return nil
}
