// Package metrics holds the Prometheus collectors exported by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "luxpipe"

const (
	subsystemPipeline = "pipeline"
	subsystemSink     = "sink"
	subsystemBroker   = "broker"
)

// Metrics groups every collector the pipeline updates.
type Metrics struct {
	SamplesTotal        *prometheus.CounterVec
	ReadFailuresTotal   *prometheus.CounterVec
	PublishesTotal      *prometheus.CounterVec
	MeanLux             *prometheus.GaugeVec
	SinkDeliveriesTotal *prometheus.CounterVec
	SinkFailuresTotal   *prometheus.CounterVec
	BrokerDroppedTotal  prometheus.Counter
	BrokerConnected     prometheus.Gauge
}

// New creates unregistered collectors. Call MustRegister to export them.
func New() *Metrics {
	m := new(Metrics)

	m.SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "samples_total",
			Help:      "the number of raw samples ingested",
		},
		[]string{"channel"},
	)

	m.ReadFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "read_failures_total",
			Help:      "the number of failed sensor reads",
		},
		[]string{"channel"},
	)

	m.PublishesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "publishes_total",
			Help:      "the number of averaged values handed to sinks",
		},
		[]string{"channel"},
	)

	m.MeanLux = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemPipeline,
			Name:      "mean_lux",
			Help:      "the running mean over the sample window",
		},
		[]string{"channel"},
	)

	m.SinkDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSink,
			Name:      "deliveries_total",
			Help:      "the number of successful sink deliveries",
		},
		[]string{"sink", "channel"},
	)

	m.SinkFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSink,
			Name:      "failures_total",
			Help:      "the number of failed sink deliveries",
		},
		[]string{"sink", "channel"},
	)

	m.BrokerDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemBroker,
			Name:      "dropped_total",
			Help:      "the number of values dropped while the broker was disconnected",
		},
	)

	m.BrokerConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemBroker,
			Name:      "connected",
			Help:      "1 while the broker connection is up",
		},
	)

	return m
}

// MustRegister registers every collector with reg.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.SamplesTotal,
		m.ReadFailuresTotal,
		m.PublishesTotal,
		m.MeanLux,
		m.SinkDeliveriesTotal,
		m.SinkFailuresTotal,
		m.BrokerDroppedTotal,
		m.BrokerConnected,
	)
}
