// SPDX-FileCopyrightText: 2026 Torchlite, Inc.
// SPDX-License-Identifier: Apache-2.0

package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xmidt-org/touchstone"
	"go.uber.org/fx"
)

// Names
const (
	DeliveryCounter    = "torchlite_deliveries_total"
	DroppedCounter     = "torchlite_dropped_notices_total"
	QueueDepthGauge    = "torchlite_queue_depth"
	ThrottleLevelGauge = "torchlite_throttle_level"
)

// Labels
const (
	OutcomeLabel = "outcome"
	ReasonLabel  = "reason"
)

// Label Values
const (
	SuccessOutcome = "success"
	FailureOutcome = "failure"

	ReasonQueueFull = "queue_full"
	ReasonShutdown  = "shutdown"
)

// ProvideMetrics returns the Metrics relevant to this package.
func ProvideMetrics() fx.Option {
	return fx.Options(
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: DeliveryCounter,
				Help: "Counter for delivery attempts (and their success/failure outcomes) drained from the queue.",
			},
			OutcomeLabel,
		),
		touchstone.CounterVec(
			prometheus.CounterOpts{
				Name: DroppedCounter,
				Help: "Counter for notices dropped without a delivery attempt, by reason.",
			},
			ReasonLabel,
		),
		touchstone.Gauge(
			prometheus.GaugeOpts{
				Name: QueueDepthGauge,
				Help: "The number of items currently buffered in the delivery queue.",
			},
		),
		touchstone.Gauge(
			prometheus.GaugeOpts{
				Name: ThrottleLevelGauge,
				Help: "The current exponential backoff level applied before sends.",
			},
		),
	)
}

// Measures describes the defined metrics that this queue will use.
type Measures struct {
	fx.In
	Deliveries *prometheus.CounterVec `name:"torchlite_deliveries_total"`
	Dropped    *prometheus.CounterVec `name:"torchlite_dropped_notices_total"`
	Depth      prometheus.Gauge       `name:"torchlite_queue_depth"`
	Throttle   prometheus.Gauge       `name:"torchlite_throttle_level"`
}

// NewMeasures builds the queue measures against a plain prometheus
// registerer, for use outside an fx app.
func NewMeasures(reg prometheus.Registerer) *Measures {
	m := &Measures{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DeliveryCounter,
			Help: "Counter for delivery attempts (and their success/failure outcomes) drained from the queue.",
		}, []string{OutcomeLabel}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: DroppedCounter,
			Help: "Counter for notices dropped without a delivery attempt, by reason.",
		}, []string{ReasonLabel}),
		Depth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: QueueDepthGauge,
			Help: "The number of items currently buffered in the delivery queue.",
		}),
		Throttle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ThrottleLevelGauge,
			Help: "The current exponential backoff level applied before sends.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Deliveries, m.Dropped, m.Depth, m.Throttle)
	}
	return m
}
