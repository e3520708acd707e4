package metrics

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSwap(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSwap("0xpool", "0xa", "0xb", big.NewInt(100), big.NewInt(97), big.NewInt(3))
	m.ObserveSwap("0xpool", "0xa", "0xb", big.NewInt(50), big.NewInt(48), big.NewInt(0))

	if got := testutil.ToFloat64(m.Swaps.WithLabelValues("0xpool", "0xa", "0xb")); got != 2 {
		t.Fatalf("swaps = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SwapVolume.WithLabelValues("0xpool", "0xa", "in")); got != 150 {
		t.Fatalf("volume in = %v, want 150", got)
	}
	if got := testutil.ToFloat64(m.FeesCharged.WithLabelValues("0xpool", "0xa")); got != 3 {
		t.Fatalf("fees = %v, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveSession(OutcomeCommitted, time.Second)
	m.ObserveError("limit")
	m.ObserveSwap("p", "a", "b", big.NewInt(1), big.NewInt(1), nil)
	m.ObserveLiquidity("p", "add", "proportional", []string{"a"}, []*big.Int{big.NewInt(1)})
}

func TestWriteTextfile(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveSession(OutcomeAborted, 10*time.Millisecond)

	path := filepath.Join(t.TempDir(), "out", "vault.prom")
	if err := WriteTextfile(path, reg); err != nil {
		t.Fatalf("write textfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), `liquidity_vault_vault_sessions_total{outcome="aborted"} 1`) {
		t.Fatalf("missing session counter in:\n%s", data)
	}
}
