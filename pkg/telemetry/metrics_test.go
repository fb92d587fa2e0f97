package telemetry

import (
	"testing"

	"github.com/opensqt/gridbot/internal/core"
	"github.com/opensqt/gridbot/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func TestNewMetricsRegistersAllInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.OrdersPlaced.WithLabelValues("BUY").Inc()
	m.OrdersFilled.WithLabelValues("SELL").Inc()
	m.FillsSimulated.Inc()
	m.ObserveBalance(core.BalanceSnapshot{
		QuoteBalance: decimal.NewFromInt(100),
		BaseBalance:  decimal.NewFromInt(1),
	})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestNewServerUsesIsolatedRegistry(t *testing.T) {
	s1, m1 := NewServer(0, logging.NewNop())
	s2, m2 := NewServer(0, logging.NewNop())
	if s1 == nil || s2 == nil || m1 == nil || m2 == nil {
		t.Fatal("expected non-nil server and metrics")
	}
	m1.OrdersPlaced.WithLabelValues("BUY").Inc()
}
