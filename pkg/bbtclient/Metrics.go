package bbtclient

import (
	gometrics "github.com/rcrowley/go-metrics"
)

// Metric names maintained by the connection
const (
	MetricSend         = "conn.send"     // frames transmitted
	MetricSendErrors   = "conn.send.err" // frames that failed to transmit
	MetricRecv         = "conn.recv"     // inbound messages
	MetricDrops        = "conn.drops"    // inbound messages without a subscribed channel
	MetricAuthFailures = "auth.failures"
	MetricChannels     = "channels"
)

// Metrics holds the counters of a single connection
type Metrics struct {
	reg gometrics.Registry
}

func (m *Metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m *Metrics) gauge(name string, v int64) {
	gometrics.GetOrRegisterGauge(name, m.reg).Update(v)
}

// Count returns the current value of a counter or gauge, 0 if it doesn't exist
func (m *Metrics) Count(name string) int64 {
	switch metric := m.reg.Get(name).(type) {
	case gometrics.Counter:
		return metric.Count()
	case gometrics.Gauge:
		return metric.Value()
	}
	return 0
}

// Registry returns the underlying registry, eg for periodic reporting
func (m *Metrics) Registry() gometrics.Registry {
	return m.reg
}

func newMetrics() *Metrics {
	return &Metrics{reg: gometrics.NewRegistry()}
}
