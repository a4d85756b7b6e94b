package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"ammQuote/internal/ammerr"
)

func TestObserveQuote(t *testing.T) {
	m := New()
	m.ObserveQuote("direct", time.Now(), 40, nil)
	m.ObserveQuote("direct", time.Now(), 0, ammerr.PairNotFound("quote", "A", "B"))
	m.ObserveQuote("multi_hop", time.Now(), 0, errTest{})

	if got := testutil.ToFloat64(m.quotes.WithLabelValues("direct", "ok")); got != 1 {
		t.Fatalf("ok quotes: %v", got)
	}
	if got := testutil.ToFloat64(m.quotes.WithLabelValues("direct", "pair_not_found")); got != 1 {
		t.Fatalf("pair not found quotes: %v", got)
	}
	if got := testutil.ToFloat64(m.quotes.WithLabelValues("multi_hop", "error")); got != 1 {
		t.Fatalf("untagged errors: %v", got)
	}
}

func TestObserveSample(t *testing.T) {
	m := New()
	m.ObserveSample("p1", true, 3)
	m.ObserveSample("p1", false, 3)
	m.ObserveEviction("p1")

	if got := testutil.ToFloat64(m.cachedSamples.WithLabelValues("p1")); got != 3 {
		t.Fatalf("cached gauge: %v", got)
	}
	if got := testutil.ToFloat64(m.evictions.WithLabelValues("p1")); got != 1 {
		t.Fatalf("evictions: %v", got)
	}
	if n := testutil.CollectAndCount(m.observations); n != 2 {
		t.Fatalf("observation series: %d", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveQuote("direct", time.Now(), 1, nil)
	m.ObserveSample("p", true, 1)
	m.ObserveEviction("p")
	m.ResetPool("p")
	m.ObserveProviderCall("getReserves", time.Now())
	if m.Registry() != nil {
		t.Fatalf("nil metrics should have no registry")
	}
}

type errTest struct{}

func (errTest) Error() string { return "boom" }
