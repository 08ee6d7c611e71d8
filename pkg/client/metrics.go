// Copyright 2025 Alexander Alten (novatechflow), NovaTechflow (novatechflow.com).
// This project is supported and financed by Scalytics, Inc. (www.scalytics.io).
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics is an optional bundle of Prometheus collectors a caller can wire
// into a Connection via Config.Metrics. A nil *Metrics disables
// instrumentation entirely -- every call site here is nil-checked, the same
// pattern the teacher uses for its optional produceRate/fetchRate
// throughput trackers in cmd/broker/main.go.
type Metrics struct {
	QueriesSent     prometheus.Counter
	RowsInserted    prometheus.Counter
	// BytesRead and BytesWritten are created and registered by NewMetrics,
	// but no Connection code path adds to them; they stay at zero.
	BytesRead       prometheus.Counter
	BytesWritten    prometheus.Counter
	Reconnects      prometheus.Counter
	PingFailures    prometheus.Counter
	ServerExceptions prometheus.Counter
}

// NewMetrics builds a Metrics bundle with the given Prometheus namespace
// and registers it against reg. Callers that don't want Prometheus at all
// simply never call this and leave Config.Metrics nil.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueriesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queries_sent_total",
			Help: "Number of queries sent to the server.",
		}),
		RowsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_inserted_total",
			Help: "Number of rows streamed in insert blocks.",
		}),
		BytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_read_total",
			Help: "Raw bytes read from the server connection.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bytes_written_total",
			Help: "Raw bytes written to the server connection.",
		}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reconnects_total",
			Help: "Number of times the connection was re-dialed after a failed ping.",
		}),
		PingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ping_failures_total",
			Help: "Number of liveness pings that did not receive a Pong.",
		}),
		ServerExceptions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "server_exceptions_total",
			Help: "Number of Exception packets received from the server.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.QueriesSent, m.RowsInserted, m.BytesRead, m.BytesWritten,
			m.Reconnects, m.PingFailures, m.ServerExceptions)
	}
	return m
}

func (m *Metrics) incQueriesSent() {
	if m != nil {
		m.QueriesSent.Inc()
	}
}

func (m *Metrics) addRowsInserted(n uint64) {
	if m != nil {
		m.RowsInserted.Add(float64(n))
	}
}

func (m *Metrics) incReconnects() {
	if m != nil {
		m.Reconnects.Inc()
	}
}

func (m *Metrics) incPingFailures() {
	if m != nil {
		m.PingFailures.Inc()
	}
}

func (m *Metrics) incServerExceptions() {
	if m != nil {
		m.ServerExceptions.Inc()
	}
}
