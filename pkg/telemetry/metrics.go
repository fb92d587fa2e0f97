// Package telemetry exposes the ambient Prometheus metrics surface for
// the grid engine: orders placed, orders filled, fills simulated, and
// balance snapshot values.
package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/opensqt/gridbot/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus instrument the package registers. The
// strategy loop sets AccountValue and the balance gauges; no engine
// component increments OrdersPlaced, OrdersFilled or FillsSimulated.
type Metrics struct {
	OrdersPlaced   *prometheus.CounterVec
	OrdersFilled   *prometheus.CounterVec
	FillsSimulated prometheus.Counter
	QuoteBalance   prometheus.Gauge
	BaseBalance    prometheus.Gauge
	ReservedQuote  prometheus.Gauge
	ReservedBase   prometheus.Gauge
	TotalFees      prometheus.Gauge
	AccountValue   prometheus.Gauge
}

// NewMetrics registers every instrument against reg and returns the
// handle components use to update them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_placed_total",
			Help: "Total orders placed, labeled by side.",
		}, []string{"side"}),
		OrdersFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridbot_orders_filled_total",
			Help: "Total orders filled, labeled by side.",
		}, []string{"side"}),
		FillsSimulated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gridbot_backtest_fills_simulated_total",
			Help: "Total fills synthesized by the backtest fill simulator.",
		}),
		QuoteBalance:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_quote_balance", Help: "Free quote-currency balance."}),
		BaseBalance:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_base_balance", Help: "Free base-currency balance."}),
		ReservedQuote: prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_reserved_quote", Help: "Quote currency reserved against open buy orders."}),
		ReservedBase:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_reserved_base", Help: "Base currency reserved against open sell orders."}),
		TotalFees:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_total_fees", Help: "Cumulative trading fees paid, in quote currency."}),
		AccountValue:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "gridbot_account_value", Help: "quote + base*last_price, sampled each tick/bar."}),
	}

	reg.MustRegister(m.OrdersPlaced, m.OrdersFilled, m.FillsSimulated,
		m.QuoteBalance, m.BaseBalance, m.ReservedQuote, m.ReservedBase, m.TotalFees, m.AccountValue)
	return m
}

// ObserveBalance updates the balance gauges from a snapshot.
func (m *Metrics) ObserveBalance(snap core.BalanceSnapshot) {
	m.QuoteBalance.Set(snap.QuoteBalance.InexactFloat64())
	m.BaseBalance.Set(snap.BaseBalance.InexactFloat64())
	m.ReservedQuote.Set(snap.ReservedQuote.InexactFloat64())
	m.ReservedBase.Set(snap.ReservedBase.InexactFloat64())
	m.TotalFees.Set(snap.TotalFees.InexactFloat64())
}

// Server exposes /metrics over HTTP for Prometheus to scrape.
type Server struct {
	port   int
	logger core.Logger
	srv    *http.Server
	reg    *prometheus.Registry
}

// NewServer returns a Server bound to port, registering its own isolated
// registry so tests can instantiate many without collisions.
func NewServer(port int, logger core.Logger) (*Server, *Metrics) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	return &Server{
		port:   port,
		logger: logger.WithField("component", "metrics_server"),
		reg:    reg,
	}, metrics
}

// Start begins serving /metrics in the background.
func (s *Server) Start() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	s.srv = &http.Server{Addr: fmt.Sprintf(":%d", s.port), Handler: mux}
	go func() {
		s.logger.Info("starting metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server failed", "error", err)
		}
	}()
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
