package dispatch

import (
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pjrmi/pjrmi-go/wire"
)

// Metrics instruments every message kind with a request counter, bumped on
// every call, and a latency histogram, sampled at a rate that favours rare
// control-plane
// kinds (lock/unlock, ref add/drop, lookups) over the high-volume method
// call path, so steady-state call traffic doesn't drown out the signal a
// rare kind's stats would otherwise give.
type Metrics struct {
	calls   *prometheus.CounterVec
	latency *prometheus.HistogramVec
	rates   map[wire.Kind]float64
}

// defaultControlPlaneRate samples control-plane kinds on every call;
// defaultValuePlaneRate subsamples the high-volume value-plane kinds.
const (
	defaultControlPlaneRate = 1.0
	defaultValuePlaneRate   = 0.01
)

func NewMetrics() *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pjrmi",
			Name:      "dispatch_requests_total",
			Help:      "Total requests handled by message kind.",
		}, []string{"kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pjrmi",
			Name:      "dispatch_request_seconds",
			Help:      "Sampled request handling latency by message kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		rates: make(map[wire.Kind]float64),
	}
	for k := range map[wire.Kind]struct{}{
		wire.KindCall: {}, wire.KindGetField: {}, wire.KindSetField: {},
		wire.KindToString: {}, wire.KindValueOf: {}, wire.KindArrayLength: {},
		wire.KindNewArray: {},
	} {
		m.rates[k] = defaultValuePlaneRate
	}
	return m
}

// Register adds this Metrics' collectors to reg, typically
// prometheus.DefaultRegisterer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := reg.Register(m.calls); err != nil {
		return err
	}
	return reg.Register(m.latency)
}

func (m *Metrics) rateFor(k wire.Kind) float64 {
	if r, ok := m.rates[k]; ok {
		return r
	}
	return defaultControlPlaneRate
}

// Sample counts one call of kind k and, when the call is sampled per
// rateFor(k), times it for the latency histogram. It always returns a function the caller must invoke on completion (the
// returned closure is a no-op when this call wasn't sampled).
func (m *Metrics) Sample(k wire.Kind) func() {
	m.calls.WithLabelValues(k.String()).Inc()
	if rand.Float64() > m.rateFor(k) {
		return func() {}
	}
	start := time.Now()
	label := k.String()
	return func() { m.latency.WithLabelValues(label).Observe(time.Since(start).Seconds()) }
}
