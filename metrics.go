// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package eos

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config load outcomes reported by eos_config_loads_total
const (
	LoadOutcomeCommitted = "committed"
	LoadOutcomeAborted   = "aborted"
	LoadOutcomeFailed    = "failed"
	LoadOutcomeFallback  = "fallback"
)

// Metrics holds the Prometheus collectors updated by a Client
//
// A nil *Metrics is valid and records nothing. One Metrics value may be
// shared by any number of clients.
//
// Example:
//
//	metrics := eos.NewMetrics(prometheus.DefaultRegisterer)
//	client, _ := eos.NewClient("leaf1", eos.WithMetrics(metrics))
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	loads    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg
//
// Registration panics if collectors with the same names are already
// registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eos_requests_total",
				Help: "Total number of client operations",
			},
			[]string{"transport", "operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "eos_request_duration_seconds",
				Help:    "Client operation duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"transport", "operation"},
		),
		loads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eos_config_loads_total",
				Help: "Total number of configuration loads by outcome",
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) observeRequest(kind TransportKind, op string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(string(kind), op, outcomeLabel(err)).Inc()
	m.duration.WithLabelValues(string(kind), op).Observe(elapsed.Seconds())
}

func (m *Metrics) observeLoad(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

// outcomeLabel maps an operation error to a low-cardinality label
func outcomeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var eosErr *EosError
	if !errors.As(err, &eosErr) {
		return "error"
	}
	switch eosErr.Kind {
	case KindTransport:
		return "transport_error"
	case KindAuthorization:
		return "unauthorized"
	case KindCommand:
		return "rejected"
	case KindDecode:
		return "decode_error"
	case KindUnsupported:
		return "unsupported"
	default:
		return "error"
	}
}
