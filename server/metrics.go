// File: server/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Prometheus collectors for connection, packet and failure accounting.

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	connections    *prometheus.CounterVec // result: accepted|rejected|dropped
	disconnects    *prometheus.CounterVec // reason: graceful|error
	packets        *prometheus.CounterVec // direction: in|out
	bytes          *prometheus.CounterVec // direction: in|out
	protocolErrors prometheus.Counter
	acceptErrors   prometheus.Counter
	queueOverflows prometheus.Counter
	handlerPanics  prometheus.Counter
	lifecycle      *prometheus.CounterVec // event: started|start_failed|closed|closed_by_error
}

// newMetrics builds the collectors. With a nil registerer they are created
// but not registered, which keeps multiple servers in one process independent.
func newMetrics(reg prometheus.Registerer, namespace string, clients func() float64) *metrics {
	factory := promauto.With(reg)

	m := &metrics{
		connections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Accepted TCP connections by outcome",
		}, []string{"result"}),

		disconnects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Client disconnects by reason",
		}, []string{"reason"}),

		packets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Framed packets transferred",
		}, []string{"direction"}),

		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Raw bytes transferred including headers",
		}, []string{"direction"}),

		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Inbound headers rejected by length validation",
		}),

		acceptErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_errors_total",
			Help:      "Transient accept failures that were retried",
		}),

		queueOverflows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_queue_overflows_total",
			Help:      "Clients disconnected because their send queue was full",
		}),

		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Panics recovered from owner callbacks",
		}),

		lifecycle: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_events_total",
			Help:      "Server lifecycle transitions",
		}, []string{"event"}),
	}

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_clients",
		Help:      "Currently registered client sessions",
	}, clients)

	return m
}
