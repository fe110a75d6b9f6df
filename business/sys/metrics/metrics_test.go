package metrics_test

import (
	"testing"

	"github.com/ardanlabs/powchain/business/sys/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

type ledger struct {
	length int
	peers  int
}

func (l *ledger) RetrieveChainLength() int { return l.length }
func (l *ledger) RetrievePeerCount() int   { return l.peers }

func gauges(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("\t%s\tShould be able to gather the metrics: %v", failed, err)
	}

	values := make(map[string]float64)
	for _, mf := range mfs {
		values[mf.GetName()] = mf.GetMetric()[0].GetGauge().GetValue()
	}

	return values
}

func Test_RegisterLedger(t *testing.T) {
	t.Log("Given the need to report the ledger through prometheus.")
	{
		reg := prometheus.NewRegistry()
		l := ledger{length: 1}

		if err := metrics.RegisterLedger(reg, &l); err != nil {
			t.Fatalf("\t%s\tShould be able to register the gauges: %v", failed, err)
		}
		t.Logf("\t%s\tShould be able to register the gauges.", success)

		l.length = 5
		l.peers = 2

		values := gauges(t, reg)
		if values["powchain_chain_length"] != 5 || values["powchain_peers"] != 2 {
			t.Fatalf("\t%s\tShould read the values at scrape time: %v", failed, values)
		}
		t.Logf("\t%s\tShould read the values at scrape time.", success)

		if err := metrics.RegisterLedger(reg, &l); err == nil {
			t.Fatalf("\t%s\tShould not register the gauges twice.", failed)
		}
		t.Logf("\t%s\tShould not register the gauges twice.", success)
	}
}
