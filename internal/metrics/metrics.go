// Package metrics exposes Prometheus instruments for the settlement vault.
package metrics

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "liquidity_vault"
	subsystem = "vault"
)

// Session outcomes.
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
	OutcomeQuery     = "query"
)

// Metrics holds the vault instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	Sessions        *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	SessionErrors   *prometheus.CounterVec

	Swaps        *prometheus.CounterVec
	SwapVolume   *prometheus.CounterVec
	LiquidityOps *prometheus.CounterVec
	FeesCharged  *prometheus.CounterVec
}

// New registers the vault instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Sessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_total",
				Help:      "Sessions closed, by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_duration_seconds",
				Help:      "Wall time from unlock to close",
				Buckets:   prometheus.DefBuckets,
			},
		),
		SessionErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "session_errors_total",
				Help:      "Aborted sessions, by error category",
			},
			[]string{"category"},
		),
		Swaps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swaps_total",
				Help:      "Committed swaps",
			},
			[]string{"pool", "token_in", "token_out"},
		),
		SwapVolume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "swap_volume_raw_total",
				Help:      "Committed swap volume in raw token units",
			},
			[]string{"pool", "token", "side"},
		),
		LiquidityOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "liquidity_operations_total",
				Help:      "Committed add/remove liquidity operations",
			},
			[]string{"pool", "op", "kind"},
		),
		FeesCharged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "fees_charged_raw_total",
				Help:      "Swap fees charged in raw token units",
			},
			[]string{"pool", "token"},
		),
	}
}

// ObserveSession records a closed session.
func (m *Metrics) ObserveSession(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(outcome).Inc()
	m.SessionDuration.Observe(elapsed.Seconds())
}

// ObserveError counts an aborted session by category.
func (m *Metrics) ObserveError(category string) {
	if m == nil {
		return
	}
	m.SessionErrors.WithLabelValues(category).Inc()
}

// ObserveSwap records one committed swap.
func (m *Metrics) ObserveSwap(pool, tokenIn, tokenOut string, amountIn, amountOut, fee *big.Int) {
	if m == nil {
		return
	}
	m.Swaps.WithLabelValues(pool, tokenIn, tokenOut).Inc()
	m.SwapVolume.WithLabelValues(pool, tokenIn, "in").Add(toFloat(amountIn))
	m.SwapVolume.WithLabelValues(pool, tokenOut, "out").Add(toFloat(amountOut))
	m.FeesCharged.WithLabelValues(pool, tokenIn).Add(toFloat(fee))
}

// ObserveLiquidity records one committed add or remove.
func (m *Metrics) ObserveLiquidity(pool, op, kind string, tokens []string, fees []*big.Int) {
	if m == nil {
		return
	}
	m.LiquidityOps.WithLabelValues(pool, op, kind).Inc()
	for i, token := range tokens {
		if i < len(fees) {
			m.FeesCharged.WithLabelValues(pool, token).Add(toFloat(fees[i]))
		}
	}
}

func toFloat(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

// WriteTextfile dumps every metric gathered by g in the node-exporter
// textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
