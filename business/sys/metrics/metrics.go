// Package metrics constructs the metrics the application will track.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// This holds the single instance of the metrics value needed for
// collecting metrics. Prometheus collectors are already safe for
// concurrent use.
var m = struct {
	requests prometheus.Counter
	errors   prometheus.Counter
	panics   prometheus.Counter
}{
	requests: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Name:      "requests_total",
		Help:      "Number of HTTP requests handled.",
	}),
	errors: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Name:      "errors_total",
		Help:      "Number of HTTP requests that failed.",
	}),
	panics: promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "powchain",
		Name:      "panics_total",
		Help:      "Number of panics recovered while handling HTTP requests.",
	}),
}

// AddRequests increments the request metric by 1.
func AddRequests() {
	m.requests.Inc()
}

// AddErrors increments the errors metric by 1.
func AddErrors() {
	m.errors.Inc()
}

// AddPanics increments the panics metric by 1.
func AddPanics() {
	m.panics.Inc()
}

// =============================================================================

// Ledger provides the values reported for the node's view of the network.
type Ledger interface {
	RetrieveChainLength() int
	RetrievePeerCount() int
}

// RegisterLedger adds gauges for the chain length and the number of
// connected peers. The values are read at scrape time.
func RegisterLedger(reg prometheus.Registerer, l Ledger) error {
	chain := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "powchain",
		Name:      "chain_length",
		Help:      "Number of blocks in the local chain.",
	}, func() float64 {
		return float64(l.RetrieveChainLength())
	})

	peers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "powchain",
		Name:      "peers",
		Help:      "Number of connected peers.",
	}, func() float64 {
		return float64(l.RetrievePeerCount())
	})

	for _, c := range []prometheus.Collector{chain, peers} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}

	return nil
}
