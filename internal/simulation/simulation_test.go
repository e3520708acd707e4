package simulation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/metrics"
	"liquidityVault/internal/vault"
)

var testVault = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func runFixture(t *testing.T, cfg Config) Report {
	t.Helper()
	sc, err := Load("testdata/scenarios.yaml")
	require.NoError(t, err)
	cfg.VaultAddress = testVault
	report, err := NewRunner(cfg, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	return report
}

func outcome(t *testing.T, report Report, name string) Outcome {
	t.Helper()
	for _, out := range report.Outcomes {
		if out.Name == name {
			return out
		}
	}
	t.Fatalf("no outcome named %q", name)
	return Outcome{}
}

func TestRunScenarioFixture(t *testing.T) {
	sink := &vault.MemorySink{}
	report := runFixture(t, Config{Sink: sink})

	require.Zero(t, report.Mismatches)
	require.Len(t, report.Outcomes, 10)

	swap := outcome(t, report, "swap exact in")
	require.True(t, swap.Committed)
	require.Equal(t, []StepResult{{
		Op:         OpSwapExactIn,
		Pool:       "sum",
		Tokens:     []string{"X", "Y"},
		AmountsIn:  []string{"100"},
		AmountsOut: []string{"99.7"},
		Fees:       []string{"0.3"},
	}}, swap.Steps)

	add := outcome(t, report, "add proportional").Steps[0]
	require.Equal(t, []string{"10", "10"}, add.AmountsIn)
	require.Equal(t, []string{"0", "0"}, add.Fees)
	require.Equal(t, "10", add.Shares)

	roundTrip := outcome(t, report, "add then remove").Steps[1]
	for _, fee := range roundTrip.Fees {
		require.NotEqual(t, "0", fee)
	}
	alone := outcome(t, report, "remove alone").Steps[0]
	require.Equal(t, []string{"0", "0"}, alone.Fees)

	unsettled := outcome(t, report, "unsettled send")
	require.False(t, unsettled.Committed)
	require.Equal(t, "settlement", unsettled.Category)
	require.Empty(t, unsettled.Steps)

	require.Equal(t, "access", outcome(t, report, "pause by stranger").Category)
	require.True(t, outcome(t, report, "pause").Committed)
	require.Equal(t, "precondition", outcome(t, report, "swap while paused").Category)

	// Session ids only advance on committed sessions.
	require.Equal(t, uint64(0), outcome(t, report, "seed sum").SessionID)
	require.Equal(t, uint64(1), outcome(t, report, "seed product").SessionID)
	require.Equal(t, uint64(2), swap.SessionID)

	require.NotEmpty(t, sink.Batches)
	require.Len(t, report.Snapshot.Pools, 2)
}

func TestRunCountsMismatches(t *testing.T) {
	const doc = `
tokens:
  - {symbol: A, decimals: 18}
  - {symbol: B, decimals: 18}
accounts:
  - name: alice
    balances:
      - {token: A, amount: "10"}
      - {token: B, amount: "10"}
  - name: bob
    balances:
      - {token: A, amount: "1"}
pools:
  - {name: p, pricing: constant_sum, tokens: [A, B]}
sessions:
  - name: seed
    sender: alice
    expect_error: ErrPoolNotInitialized
    steps:
      - {op: initialize, pool: p, amounts: ["5", "5"]}
  - name: overspend
    sender: bob
    steps:
      - {op: swap_exact_in, pool: p, token_in: A, token_out: B, amount: "2"}
`
	sc, err := LoadReader(strings.NewReader(doc), "yaml")
	require.NoError(t, err)

	report, err := NewRunner(Config{}, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, 2, report.Mismatches)
	require.True(t, report.Outcomes[0].Committed)
	require.False(t, report.Outcomes[0].Matched)
	require.Contains(t, report.Outcomes[1].Error, "insufficient balance")
}

func TestQuoteSessionDiscardsState(t *testing.T) {
	const doc = `
tokens:
  - {symbol: A, decimals: 18}
  - {symbol: B, decimals: 18}
accounts:
  - name: alice
    balances:
      - {token: A, amount: "1000"}
      - {token: B, amount: "1000"}
pools:
  - {name: p, pricing: constant_product, tokens: [A, B], swap_fee: "0.01"}
sessions:
  - sender: alice
    steps:
      - {op: initialize, pool: p, amounts: ["100", "100"]}
  - sender: alice
    quote: true
    steps:
      - {op: swap_exact_in, pool: p, token_in: A, token_out: B, amount: "10"}
`
	sc, err := LoadReader(strings.NewReader(doc), "yaml")
	require.NoError(t, err)

	report, err := NewRunner(Config{}, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Zero(t, report.Mismatches)

	quote := report.Outcomes[1]
	require.False(t, quote.Committed)
	require.Len(t, quote.Steps, 1)
	require.NotEmpty(t, quote.Steps[0].AmountsOut[0])

	for _, tk := range report.Snapshot.Pools[0].Tokens {
		require.Equal(t, "100000000000000000000", tk.Raw)
	}
}

type fixedDecimals struct {
	calls int
	value uint8
}

func (f *fixedDecimals) Decimals(context.Context, common.Address) (uint8, error) {
	f.calls++
	return f.value, nil
}

func TestDecimalsResolver(t *testing.T) {
	const doc = `
tokens:
  - {symbol: USDC, address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"}
  - {symbol: DAI, decimals: 18}
accounts:
  - name: alice
    balances:
      - {token: USDC, amount: "1.5"}
`
	sc, err := LoadReader(strings.NewReader(doc), "yaml")
	require.NoError(t, err)

	_, err = NewRunner(Config{}, nil).Run(context.Background(), sc)
	require.ErrorContains(t, err, "no resolver")

	resolver := &fixedDecimals{value: 6}
	_, err = NewRunner(Config{Decimals: resolver}, nil).Run(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, 1, resolver.calls)
}

func TestSessionMetricsRecorded(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	runFixture(t, Config{Metrics: m})

	require.Equal(t, 6.0, testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeCommitted)))
	require.Equal(t, 2.0, testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeAborted)))
}

func TestValidate(t *testing.T) {
	base := func() Scenario {
		decimals := uint8(18)
		return Scenario{
			Tokens:   []TokenSpec{{Symbol: "A", Decimals: &decimals}, {Symbol: "B", Decimals: &decimals}},
			Accounts: []AccountSpec{{Name: "alice"}},
			Pools:    []PoolSpec{{Name: "p", Pricing: PricingConstantSum, Tokens: []string{"A", "B"}}},
			Sessions: []SessionSpec{{Sender: "alice", Steps: []StepSpec{{Op: OpInitialize, Pool: "p"}}}},
		}
	}
	require.NoError(t, base().Validate())

	cases := []struct {
		name   string
		mutate func(sc *Scenario)
		want   string
	}{
		{"duplicate token", func(sc *Scenario) { sc.Tokens = append(sc.Tokens, TokenSpec{Symbol: "a"}) }, "duplicate symbol"},
		{"unknown admin", func(sc *Scenario) { sc.Admin = "bob" }, "not a declared account"},
		{"unknown pricing", func(sc *Scenario) { sc.Pools[0].Pricing = "weighted" }, "unknown pricing"},
		{"unknown sender", func(sc *Scenario) { sc.Sessions[0].Sender = "bob" }, "unknown sender"},
		{"unknown op", func(sc *Scenario) { sc.Sessions[0].Steps[0].Op = "flash_loan" }, "unknown op"},
		{"unknown sentinel", func(sc *Scenario) { sc.Sessions[0].ExpectError = "ErrNope" }, "unknown expected error"},
		{"mixed admin", func(sc *Scenario) {
			sc.Sessions[0].Steps = append(sc.Sessions[0].Steps, StepSpec{Op: OpPause, Pool: "p"})
		}, "cannot run inside a session"},
		{"unsettled admin", func(sc *Scenario) {
			settle := false
			sc.Sessions[0].Steps = []StepSpec{{Op: OpPause, Pool: "p"}}
			sc.Sessions[0].Settle = &settle
		}, "cannot be quoted or left unsettled"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sc := base()
			tc.mutate(&sc)
			require.ErrorContains(t, sc.Validate(), tc.want)
		})
	}
}

func TestParseUnits(t *testing.T) {
	got, err := parseUnits("1.5", 6)
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(1_500_000), got)

	got, err = parseUnits("max", 6)
	require.NoError(t, err)
	require.Equal(t, vault.MaxAllowance(), got)

	_, err = parseUnits("0.0000001", 6)
	require.ErrorContains(t, err, "more than 6 decimals")
	_, err = parseUnits("-1", 6)
	require.Error(t, err)

	require.Equal(t, "1.5", formatUnits(uint256.NewInt(1_500_000), 6))
}

func TestMatches(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), vault.ErrPoolPaused)
	require.True(t, matches("ErrPoolPaused", wrapped))
	require.False(t, matches("ErrSwapLimit", wrapped))
	require.False(t, matches("", wrapped))
	require.True(t, matches("", nil))
}
