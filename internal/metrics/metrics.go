// Package metrics exposes Prometheus instrumentation for brokerd,
// grounded on packetd-packetd/controller/metrics.go's promauto-backed
// package-level var block.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "brokerd"

var (
	ConnectionsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_accepted_total",
		Help:      "TCP connections accepted by the listener.",
	})

	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections_active",
		Help:      "Accepted connections whose handler is still running.",
	})

	FramesDecoded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_decoded_total",
		Help:      "Frames successfully decoded, by performative name.",
	}, []string{"performative"})

	FramesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_rejected_total",
		Help:      "Frames rejected during decode, by condition.",
	}, []string{"condition"})

	FrameBusQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "frame_bus_queue_depth",
		Help:      "Current occupancy of a frame-bus queue.",
	}, []string{"connection", "direction"})

	FrameBusDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frame_bus_drops_total",
		Help:      "Frames dropped because a bounded queue was full.",
	}, []string{"connection", "direction"})

	LinkCreditExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_credit_exhausted_total",
		Help:      "Attempts to send on a link with zero link-credit remaining.",
	}, []string{"role"})

	DeliveriesDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_dispatched_total",
		Help:      "Transfers handed to a dispatch hook for routing.",
	})
)
