// Copyright (c) 2024, The OTNS Authors.
// All rights reserved.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions are met:
// 1. Redistributions of source code must retain the above copyright
//    notice, this list of conditions and the following disclaimer.
// 2. Redistributions in binary form must reproduce the above copyright
//    notice, this list of conditions and the following disclaimer in the
//    documentation and/or other materials provided with the distribution.
// 3. Neither the name of the copyright holder nor the
//    names of its contributors may be used to endorse or promote products
//    derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS"
// AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
// IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
// ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE
// LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR
// CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF
// SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN
// CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE)
// ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE
// POSSIBILITY OF SUCH DAMAGE.

package registry

import "github.com/prometheus/client_golang/prometheus"

// metrics are ambient observability, not protocol state: they never appear
// on the wire and are not read back by any component. Each Registry gets
// its own prometheus.Registry so multiple Registry values (as used in
// tests) don't collide on metric registration.
type metrics struct {
	reg            *prometheus.Registry
	connectedNodes prometheus.Gauge
	inFlight       prometheus.Gauge
	txReceived     prometheus.Counter
	txDelivered    prometheus.Counter
	txDropped      *prometheus.CounterVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		reg: reg,
		connectedNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lorasim",
			Name:      "connected_nodes",
			Help:      "Number of nodes currently registered with the medium server.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "lorasim",
			Name:      "in_flight_transmissions",
			Help:      "Number of transmissions currently inside the dispatcher.",
		}),
		txReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasim",
			Name:      "tx_received_total",
			Help:      "Total tx frames accepted from sessions.",
		}),
		txDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lorasim",
			Name:      "tx_delivered_total",
			Help:      "Total per-receiver deliveries completed.",
		}),
		txDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lorasim",
			Name:      "tx_dropped_total",
			Help:      "Total per-receiver drops, labelled by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.connectedNodes, m.inFlight, m.txReceived, m.txDelivered, m.txDropped)
	return m
}

// Gatherer exposes the registry's metrics for an HTTP /metrics handler
// (wired in cmd/lorasim-server).
func (r *Registry) Gatherer() prometheus.Gatherer { return r.metrics.reg }
